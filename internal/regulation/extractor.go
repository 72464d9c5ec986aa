// Package regulation extracts zoning by-law thresholds from PDF documents
// and normalizes them into a sparse rule set. A rule missing from the
// document stays absent; it is never defaulted to zero or infinity.
package regulation

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"bylaw-check/internal/models"

	"github.com/ledongthuc/pdf"
)

// ThresholdAssist fills rule gaps that deterministic parsing left behind,
// typically backed by a local LLM. It must only be consulted for the keys
// it is given.
type ThresholdAssist interface {
	ExtractThresholds(ctx context.Context, text string, missing []string) (map[string]float64, error)
}

// keyword → rule key mapping for line-scoped parsing. Word boundaries keep
// "far" from matching inside unrelated words.
var ruleKeywords = []struct {
	re      *regexp.Regexp
	ruleKey string
}{
	{regexp.MustCompile(`front\s*setback`), models.RuleMinSetbackFront},
	{regexp.MustCompile(`rear\s*setback`), models.RuleMinSetbackRear},
	{regexp.MustCompile(`side\s*setback`), models.RuleMinSetbackSide},
	{regexp.MustCompile(`floor\s*area\s*ratio|\bfar\b`), models.RuleMaxFAR},
	{regexp.MustCompile(`\bcoverage\b`), models.RuleMaxCoverage},
	{regexp.MustCompile(`\bheight\b`), models.RuleMaxHeight},
}

// Fallback patterns over the whole document, for by-laws written as prose
// rather than tables.
var rulePatterns = map[string]*regexp.Regexp{
	models.RuleMinSetbackFront: regexp.MustCompile(`(?i)front\s*setback\D*?(\d+\.?\d*)\s*m`),
	models.RuleMinSetbackRear:  regexp.MustCompile(`(?i)rear\s*setback\D*?(\d+\.?\d*)\s*m`),
	models.RuleMinSetbackSide:  regexp.MustCompile(`(?i)side\s*setback\D*?(\d+\.?\d*)\s*m`),
	models.RuleMaxHeight:       regexp.MustCompile(`(?i)\bheight\b\D*?(\d+\.?\d*)\s*m`),
	models.RuleMaxFAR:          regexp.MustCompile(`(?i)(?:floor\s*area\s*ratio|\bfar\b)\D*?(\d+\.?\d*)`),
	models.RuleMaxCoverage:     regexp.MustCompile(`(?i)\bcoverage\b\D*?(\d+\.?\d*)\s*%`),
}

var numberRe = regexp.MustCompile(`(\d+\.?\d*)`)

// Extractor parses by-law PDFs into rule sets.
type Extractor struct {
	// Assist, when non-nil, is asked for thresholds that deterministic
	// parsing could not find. Parsed values are never overridden.
	Assist ThresholdAssist
}

// NewExtractor creates a by-law extractor without LLM assistance.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractText extracts plain text from a PDF file.
func (e *Extractor) ExtractText(filePath string) (string, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	b, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract plain text: %w", err)
	}

	if _, err := buf.ReadFrom(b); err != nil {
		return "", fmt.Errorf("failed to read text: %w", err)
	}

	return buf.String(), nil
}

// ExtractByLaws extracts the sparse rule set from a by-law PDF.
func (e *Extractor) ExtractByLaws(ctx context.Context, filePath string) (models.RuleSet, error) {
	text, err := e.ExtractText(filePath)
	if err != nil {
		return models.RuleSet{}, fmt.Errorf("failed to extract text: %w", err)
	}
	return e.extractFromText(ctx, text)
}

// extractFromText runs deterministic parsing and, when configured, asks the
// assistant for whatever is still missing.
func (e *Extractor) extractFromText(ctx context.Context, text string) (models.RuleSet, error) {
	rules := e.ParseRules(text)

	if e.Assist != nil {
		missing := missingKeys(rules)
		if len(missing) > 0 {
			assisted, err := e.Assist.ExtractThresholds(ctx, text, missing)
			if err != nil {
				return models.RuleSet{}, fmt.Errorf("llm-assisted extraction failed: %w", err)
			}
			mergeMissing(&rules, assisted, missing)
		}
	}

	return rules, nil
}

// ParseRules extracts thresholds from by-law text. Line-scoped keyword
// matching runs first (covers tabular layouts flattened to text), then the
// prose patterns fill whatever is still absent.
func (e *Extractor) ParseRules(text string) models.RuleSet {
	var rules models.RuleSet

	for _, line := range strings.Split(text, "\n") {
		e.parseLine(line, &rules)
	}

	for _, key := range models.RuleKeys {
		if _, ok := rules.Get(key); ok {
			continue
		}
		re, exists := rulePatterns[key]
		if !exists {
			continue
		}
		match := re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		rules.Set(key, normalizeRatio(key, value, strings.Contains(match[0], "%")))
	}

	return rules
}

// parseLine binds the first number that appears after a rule keyword. A
// keyword with no trailing number does not consume the line; another rule
// may still be stated on it. All index arithmetic happens on the lowered
// line: ToLower can change byte offsets (e.g. İ), so slicing the original
// with lowered indices would scan the wrong substring.
func (e *Extractor) parseLine(line string, rules *models.RuleSet) {
	lower := strings.ToLower(line)

	for _, mapping := range ruleKeywords {
		if _, ok := rules.Get(mapping.ruleKey); ok {
			continue
		}
		loc := mapping.re.FindStringIndex(lower)
		if loc == nil {
			continue
		}
		rest := lower[loc[1]:]
		match := numberRe.FindString(rest)
		if match == "" {
			continue
		}
		value, err := strconv.ParseFloat(match, 64)
		if err != nil {
			continue
		}
		rules.Set(mapping.ruleKey, normalizeRatio(mapping.ruleKey, value, strings.Contains(rest, "%")))
	}
}

// normalizeRatio converts percentage-sourced ratios to fractions before they
// leave this package. Coverage caps above 1 without an explicit % sign are
// still treated as percentages, matching how by-law tables state them.
func normalizeRatio(ruleKey string, value float64, percent bool) float64 {
	if ruleKey != models.RuleMaxCoverage {
		return value
	}
	if percent || value > 1 {
		return value / 100
	}
	return value
}

func missingKeys(rules models.RuleSet) []string {
	var missing []string
	for _, key := range models.RuleKeys {
		if _, ok := rules.Get(key); !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// mergeMissing fills only the listed keys; parsed thresholds always win over
// assisted ones.
func mergeMissing(rules *models.RuleSet, assisted map[string]float64, missing []string) {
	for _, key := range missing {
		value, ok := assisted[key]
		if !ok {
			continue
		}
		if _, present := rules.Get(key); present {
			continue
		}
		rules.Set(key, normalizeRatio(key, value, false))
	}
}
