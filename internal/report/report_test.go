package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bylaw-check/internal/models"
)

func sampleRecord(approved bool) models.RunRecord {
	verdict := models.Verdict{Approved: approved}
	if !approved {
		verdict.Violations = []models.Violation{
			{Check: models.CheckHeight, Severity: models.SeverityCritical, Message: "Height exceeds limit: 16.50m > 15.00m (+1.50m)"},
			{Check: models.CheckFAR, Severity: models.SeverityMajor, Message: "FAR exceeded: 2.25 > 2.00"},
		}
	}
	return models.RunRecord{
		ID:        "7a1f04a6-1a8f-4a2e-9d3e-0f6bb7c4e100",
		CreatedAt: time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
		PlanPath:  "floor_plan.dxf",
		Rules:     models.RuleSet{MaxHeightM: models.Threshold(15), MaxFAR: models.Threshold(2)},
		Metrics:   models.BuildingMetrics{HeightM: 16.5, FootprintAreaM2: 450, TotalAreaM2: 2700},
		Boundary:  models.BoundaryResult{WithinPlot: true, PlotAreaM2: 1200},
		Verdict:   verdict,
	}
}

func TestRenderRejected(t *testing.T) {
	out := Render(sampleRecord(false))

	assert.Contains(t, out, "=== COMPLIANCE REPORT ===")
	assert.Contains(t, out, "REJECTED")
	assert.Contains(t, out, "Plot Area: 1200.00 m²")
	assert.Contains(t, out, "1. Height exceeds limit: 16.50m > 15.00m (+1.50m)")
	assert.Contains(t, out, "2. FAR exceeded: 2.25 > 2.00")
	assert.NotContains(t, out, "All checks passed")
}

func TestRenderApproved(t *testing.T) {
	out := Render(sampleRecord(true))

	assert.Contains(t, out, "APPROVED")
	assert.Contains(t, out, "All checks passed successfully!")
	assert.NotContains(t, out, "VIOLATIONS DETECTED")
}

func TestRenderSkippedChecks(t *testing.T) {
	rec := sampleRecord(true)
	rec.Verdict.Skipped = []models.SkippedCheck{
		{Check: models.CheckFAR, Reason: "plot area zero or unavailable"},
	}

	out := Render(rec)

	assert.Contains(t, out, "UNCHECKED")
	assert.Contains(t, out, "far: plot area zero or unavailable")
}

func TestRenderJSONRoundTrips(t *testing.T) {
	rec := sampleRecord(false)

	data, err := RenderJSON(rec)
	require.NoError(t, err)

	var decoded models.RunRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rec.ID, decoded.ID)
	assert.False(t, decoded.Verdict.Approved)
	assert.Len(t, decoded.Verdict.Violations, 2)
	require.NotNil(t, decoded.Rules.MaxHeightM)
	assert.Equal(t, 15.0, *decoded.Rules.MaxHeightM)
}
