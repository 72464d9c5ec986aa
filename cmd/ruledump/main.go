package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"bylaw-check/internal/regulation"
)

func main() {
	// Parse command line flags
	pdfPath := flag.String("pdf", "", "Path to by-law PDF file (required)")
	savePath := flag.String("save", "", "Optional: path to save JSON output")
	flag.Parse()

	// Validate required flags
	if *pdfPath == "" {
		log.Fatal("PDF path is required")
	}

	if _, err := os.Stat(*pdfPath); os.IsNotExist(err) {
		log.Fatalf("PDF file does not exist: %s", *pdfPath)
	}

	extractor := regulation.NewExtractor()
	text, err := extractor.ExtractText(*pdfPath)
	if err != nil {
		log.Fatalf("Failed to extract text: %v", err)
	}

	rules := regulation.ScanNumericRules(text)
	log.Printf("Found %d numeric rule candidates", len(rules))

	if *savePath != "" {
		data, err := json.MarshalIndent(rules, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode rules: %v", err)
		}
		if err := os.WriteFile(*savePath, data, 0o644); err != nil {
			log.Fatalf("Failed to save rules: %v", err)
		}
		log.Printf("Rules saved to %s", *savePath)
		return
	}

	fmt.Println("=== Extracted Numerical Rules ===")
	for _, rule := range rules {
		fmt.Printf("%s (Context: %s)\n", rule.Value, rule.Context)
	}
}
