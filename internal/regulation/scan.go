package regulation

import (
	"regexp"
	"strings"
)

// NumericRule is a raw numeric value found in by-law text, with the line it
// came from. Used by ruledump for manual review of what a document states.
type NumericRule struct {
	Value   string `json:"value"`
	Context string `json:"context"`
}

var numericWithUnitRe = regexp.MustCompile(`\d+\.?\d*\s*[mM%°]?`)

// ScanNumericRules finds every numeric value (with a trailing unit, if any)
// in the text, line by line.
func ScanNumericRules(text string) []NumericRule {
	var rules []NumericRule

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		for _, match := range numericWithUnitRe.FindAllString(trimmed, -1) {
			rules = append(rules, NumericRule{
				Value:   strings.TrimSpace(match),
				Context: trimmed,
			})
		}
	}

	return rules
}
