// Package report renders a compliance run for humans and machines. It is
// presentation only; all decisions happen in the compliance engine.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"bylaw-check/internal/models"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	approvedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	rejectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	skippedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Render formats the terminal compliance report.
func Render(rec models.RunRecord) string {
	var sb strings.Builder

	sb.WriteString(headerStyle.Render("=== COMPLIANCE REPORT ==="))
	sb.WriteString("\n")

	result := approvedStyle.Render("APPROVED")
	if !rec.Verdict.Approved {
		result = rejectedStyle.Render("REJECTED")
	}
	sb.WriteString("Result: " + result + "\n")

	fmt.Fprintf(&sb, "Plot Area: %.2f m²\n", rec.Boundary.PlotAreaM2)
	fmt.Fprintf(&sb, "Footprint Area: %.2f m²\n", rec.Metrics.FootprintAreaM2)
	fmt.Fprintf(&sb, "Total Built Area: %.2f m²\n", rec.Metrics.TotalAreaM2)
	fmt.Fprintf(&sb, "Building Height: %.2f m\n", rec.Metrics.HeightM)

	if stated := rec.Rules.Stated(); len(stated) > 0 {
		fmt.Fprintf(&sb, "Rules stated in by-laws: %s\n", strings.Join(stated, ", "))
	} else {
		sb.WriteString("Rules stated in by-laws: none\n")
	}

	if rec.Verdict.Approved {
		sb.WriteString("\nAll checks passed successfully!\n")
	} else {
		sb.WriteString("\n" + rejectedStyle.Render("VIOLATIONS DETECTED:") + "\n")
		for i, violation := range rec.Verdict.Violations {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, violation.Message)
		}
	}

	if len(rec.Verdict.Skipped) > 0 {
		sb.WriteString("\n" + skippedStyle.Render("UNCHECKED (not evaluated):") + "\n")
		for _, skipped := range rec.Verdict.Skipped {
			fmt.Fprintf(&sb, "- %s: %s\n", skipped.Check, skipped.Reason)
		}
	}

	return sb.String()
}

// RenderJSON formats the full run record as indented JSON.
func RenderJSON(rec models.RunRecord) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return data, nil
}
