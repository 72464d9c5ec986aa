package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"bylaw-check/internal/boundary"
	"bylaw-check/internal/compliance"
	"bylaw-check/internal/config"
	"bylaw-check/internal/database"
	"bylaw-check/internal/drawing"
	"bylaw-check/internal/llm"
	"bylaw-check/internal/models"
	"bylaw-check/internal/regulation"
	"bylaw-check/internal/report"
)

// Exit codes: 0 approved, 1 rejected, 2 pipeline error.
const (
	exitApproved = 0
	exitRejected = 1
	exitError    = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command line flags
	bylawsPath := flag.String("bylaws", "", "Path to by-law PDF (required)")
	planPath := flag.String("plan", "", "Path to DXF floor plan (required)")
	plotPath := flag.String("plot", "", "Path to plot boundary (.shp, .geojson or .json; required)")
	configPath := flag.String("config", "", "Path to YAML config file")
	units := flag.String("units", "", "Drawing units: mm, cm, m or in (overrides config)")
	floors := flag.Int("floors", 0, "Number of floors for gross floor area (overrides config)")
	jsonOut := flag.Bool("json", false, "Print the full run record as JSON instead of the report")
	pgConnString := flag.String("pg", "", "PostgreSQL connection string for run history (overrides config)")
	history := flag.Int("history", 0, "List the N most recent stored runs and exit")
	llmAssist := flag.Bool("llm-assist", false, "Use Ollama to fill by-law gaps the parser missed")
	ollamaHost := flag.String("ollama", "", "Ollama host (default uses OLLAMA_HOST env var)")
	model := flag.String("model", "", "Ollama model for assisted extraction (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return exitError
	}
	applyFlagOverrides(&cfg, *units, *floors, *pgConnString, *llmAssist, *ollamaHost, *model)

	ctx := context.Background()

	// Connect to the run-history store if configured
	var db *database.DB
	if cfg.PostgresDSN != "" {
		db, err = database.NewDB(cfg.PostgresDSN)
		if err != nil {
			log.Printf("Failed to connect to database: %v", err)
			return exitError
		}
		defer db.Close()

		if err := db.Initialize(ctx); err != nil {
			log.Printf("Failed to initialize database: %v", err)
			return exitError
		}
	}

	// List run history if requested
	if *history > 0 {
		if db == nil {
			log.Print("Run history requires a PostgreSQL connection (-pg or postgres_dsn)")
			return exitError
		}
		if err := printHistory(ctx, db, *history); err != nil {
			log.Printf("Failed to list runs: %v", err)
			return exitError
		}
		return exitApproved
	}

	// Validate required flags
	if *bylawsPath == "" || *planPath == "" || *plotPath == "" {
		log.Print("All of -bylaws, -plan and -plot are required")
		flag.Usage()
		return exitError
	}

	startTime := time.Now()

	// 1. Extract by-laws
	log.Printf("Extracting by-laws from %s", *bylawsPath)
	extractor := regulation.NewExtractor()
	if cfg.LLMAssist {
		assistant, err := llm.NewAssistant(cfg.OllamaHost, cfg.Model)
		if err != nil {
			log.Printf("Failed to create LLM assistant: %v", err)
			return exitError
		}
		extractor.Assist = assistant
		log.Printf("LLM assist enabled (model: %s)", cfg.Model)
	}
	rules, err := extractor.ExtractByLaws(ctx, *bylawsPath)
	if err != nil {
		log.Printf("Failed to extract by-laws: %v", err)
		return exitError
	}
	if stated := rules.Stated(); len(stated) > 0 {
		log.Printf("Extracted %d rules: %v", len(stated), stated)
	} else {
		log.Print("Warning: no rules found in by-law document; only the boundary check will run")
	}

	// 2. Parse floor plan
	log.Printf("Processing floor plan %s", *planPath)
	opts := drawing.Options{
		Units:          cfg.Units,
		FloorCount:     cfg.FloorCount,
		DefaultHeightM: cfg.DefaultHeightM,
	}
	metrics, err := drawing.ParseFloorPlan(*planPath, opts)
	if err != nil {
		log.Printf("Failed to parse floor plan: %v", err)
		return exitError
	}
	log.Printf("Footprint %.2f m², total %.2f m², height %.2f m",
		metrics.FootprintAreaM2, metrics.TotalAreaM2, metrics.HeightM)

	// 3. Validate plot boundary
	log.Printf("Validating plot boundary %s", *plotPath)
	plot, err := boundary.LoadPlot(*plotPath)
	if err != nil {
		log.Printf("Failed to load plot: %v", err)
		return exitError
	}
	boundaryResult := boundary.Validate(plot, metrics)
	log.Printf("Within plot: %v, plot area %.2f m²", boundaryResult.WithinPlot, boundaryResult.PlotAreaM2)

	// 4. Run compliance checks
	verdict, err := compliance.Evaluate(rules, metrics, boundaryResult)
	if err != nil {
		log.Printf("Compliance evaluation failed: %v", err)
		return exitError
	}
	for _, skipped := range verdict.Skipped {
		log.Printf("Check %s skipped: %s", skipped.Check, skipped.Reason)
	}
	log.Printf("Compliance checks finished in %v", time.Since(startTime))

	rec := models.RunRecord{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		BylawsPath: *bylawsPath,
		PlanPath:   *planPath,
		PlotPath:   *plotPath,
		Rules:      rules,
		Metrics:    metrics,
		Boundary:   boundaryResult,
		Verdict:    verdict,
	}

	// 5. Persist and report
	if db != nil {
		if err := db.StoreRun(ctx, rec); err != nil {
			log.Printf("Warning: failed to store run: %v", err)
		}
	}

	if *jsonOut {
		data, err := report.RenderJSON(rec)
		if err != nil {
			log.Printf("Failed to render report: %v", err)
			return exitError
		}
		fmt.Println(string(data))
	} else {
		fmt.Println()
		fmt.Print(report.Render(rec))
	}

	if verdict.Approved {
		return exitApproved
	}
	return exitRejected
}

func applyFlagOverrides(cfg *config.Config, units string, floors int, pg string, llmAssist bool, ollamaHost, model string) {
	if units != "" {
		cfg.Units = units
	}
	if floors > 0 {
		cfg.FloorCount = floors
	}
	if pg != "" {
		cfg.PostgresDSN = pg
	}
	if llmAssist {
		cfg.LLMAssist = true
	}
	if ollamaHost != "" {
		cfg.OllamaHost = ollamaHost
	}
	if model != "" {
		cfg.Model = model
	}
}

func printHistory(ctx context.Context, db *database.DB, limit int) error {
	runs, err := db.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No stored runs")
		return nil
	}

	fmt.Println("Recent compliance runs:")
	for _, run := range runs {
		status := "APPROVED"
		if !run.Approved {
			status = fmt.Sprintf("REJECTED (%d violations)", run.ViolationCount)
		}
		fmt.Printf("  %s  %s  %s  %s\n",
			run.CreatedAt.Format(time.RFC3339), run.ID, status, run.PlanPath)
	}
	return nil
}
