// Package llm provides optional Ollama-assisted extraction of by-law
// thresholds from document text, for documents whose layout defeats the
// deterministic table/pattern parsing.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// Assistant extracts numeric thresholds with a local Ollama model.
type Assistant struct {
	Client *api.Client
	Model  string
}

// NewAssistant creates an Ollama-backed assistant. An empty host falls back
// to the OLLAMA_HOST environment configuration.
func NewAssistant(host string, model string) (*Assistant, error) {
	hostURL := envconfig.Host()
	if host != "" {
		parsed, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
		}
		hostURL = parsed
	}
	client := api.NewClient(hostURL, http.DefaultClient)

	return &Assistant{
		Client: client,
		Model:  model,
	}, nil
}

// ExtractThresholds asks the model for the missing rule thresholds. Only the
// requested keys are returned; anything else in the response is discarded.
func (a *Assistant) ExtractThresholds(ctx context.Context, text string, missing []string) (map[string]float64, error) {
	prompt := buildPrompt(text, missing)

	req := api.GenerateRequest{
		Model:  a.Model,
		Prompt: prompt,
		Options: map[string]interface{}{
			"temperature": 0.0,
			"num_predict": 256,
		},
	}

	var responseBuilder strings.Builder
	err := a.Client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		_, err := responseBuilder.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	return parseThresholds(responseBuilder.String(), missing)
}

func buildPrompt(text string, missing []string) string {
	var promptBuilder strings.Builder

	promptBuilder.WriteString("You are a zoning regulation analyst. ")
	promptBuilder.WriteString("Read the by-law document below and find the numeric value for each requested rule. ")
	promptBuilder.WriteString("Respond with a single JSON object whose keys are the requested rule names and whose values are plain numbers. ")
	promptBuilder.WriteString("Lengths must be in meters and ratios as fractions (40% becomes 0.4). ")
	promptBuilder.WriteString("Omit any rule the document does not state. Do not add commentary.\n\n")

	promptBuilder.WriteString("Requested rules: " + strings.Join(missing, ", ") + "\n\n")
	promptBuilder.WriteString("Document:\n")
	promptBuilder.WriteString(text)
	promptBuilder.WriteString("\n\nJSON: ")

	return promptBuilder.String()
}

// parseThresholds pulls the JSON object out of a model response, tolerating
// code fences and surrounding chatter, and keeps only requested keys with
// numeric values.
func parseThresholds(response string, missing []string) (map[string]float64, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode model response: %w", err)
	}

	requested := make(map[string]bool, len(missing))
	for _, key := range missing {
		requested[key] = true
	}

	thresholds := make(map[string]float64)
	for key, value := range raw {
		if !requested[key] {
			continue
		}
		switch v := value.(type) {
		case float64:
			thresholds[key] = v
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err == nil {
				thresholds[key] = parsed
			}
		}
	}

	return thresholds, nil
}
