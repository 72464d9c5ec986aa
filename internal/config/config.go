// Package config loads the pipeline configuration from a YAML file, with
// sane defaults when no file is given.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the knobs of the compliance pipeline. Flag values override
// anything loaded from file.
type Config struct {
	// Units is the floor plan's linear unit ("mm", "cm", "m" or "in");
	// the DXF header wins when it states units itself.
	Units string `yaml:"units"`
	// FloorCount multiplies footprint area into gross floor area when the
	// drawing has no per-floor data.
	FloorCount int `yaml:"floor_count"`
	// DefaultHeightM is the fallback building height for drawings without
	// any height source.
	DefaultHeightM float64 `yaml:"default_height_m"`

	// LLMAssist enables Ollama-backed extraction of by-law thresholds the
	// deterministic parser could not find.
	LLMAssist  bool   `yaml:"llm_assist"`
	OllamaHost string `yaml:"ollama_host"`
	Model      string `yaml:"model"`

	// PostgresDSN enables the run-history store when non-empty.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Units:          "mm",
		FloorCount:     1,
		DefaultHeightM: 10.0,
		Model:          "phi3-mini",
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Units {
	case "mm", "cm", "m", "in":
	default:
		return fmt.Errorf("invalid units %q (want mm, cm, m or in)", c.Units)
	}
	if c.FloorCount < 1 {
		return fmt.Errorf("floor_count must be at least 1, got %d", c.FloorCount)
	}
	if c.DefaultHeightM <= 0 {
		return fmt.Errorf("default_height_m must be positive, got %v", c.DefaultHeightM)
	}
	return nil
}
