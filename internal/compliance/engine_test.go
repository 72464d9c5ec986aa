package compliance

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bylaw-check/internal/models"
)

func fullRules() models.RuleSet {
	return models.RuleSet{
		MaxHeightM:       models.Threshold(15),
		MinSetbackFrontM: models.Threshold(5),
		MinSetbackRearM:  models.Threshold(3),
		MinSetbackSideM:  models.Threshold(2),
		MaxFAR:           models.Threshold(2.0),
		MaxCoverage:      models.Threshold(0.4),
	}
}

func sampleMetrics() models.BuildingMetrics {
	return models.BuildingMetrics{
		HeightM:         16.5,
		SetbackFrontM:   4.8,
		SetbackRearM:    3.2,
		SetbackLeftM:    1.9,
		SetbackRightM:   2.1,
		FootprintAreaM2: 450,
		TotalAreaM2:     2700,
	}
}

func insidePlot() models.BoundaryResult {
	return models.BoundaryResult{WithinPlot: true, PlotAreaM2: 1200}
}

func TestEvaluateScenarioA(t *testing.T) {
	verdict, err := Evaluate(fullRules(), sampleMetrics(), insidePlot())
	require.NoError(t, err)

	assert.False(t, verdict.Approved)
	require.Len(t, verdict.Violations, 4)

	assert.Equal(t, models.CheckHeight, verdict.Violations[0].Check)
	assert.Equal(t, "Height exceeds limit: 16.50m > 15.00m (+1.50m)", verdict.Violations[0].Message)

	assert.Equal(t, models.CheckSetbackFront, verdict.Violations[1].Check)
	assert.Equal(t, "Insufficient front setback: 4.80m < 5.00m (missing 0.20m)", verdict.Violations[1].Message)

	assert.Equal(t, models.CheckSetbackLeft, verdict.Violations[2].Check)
	assert.Equal(t, "Insufficient left side setback: 1.90m < 2.00m (missing 0.10m)", verdict.Violations[2].Message)

	assert.Equal(t, models.CheckFAR, verdict.Violations[3].Check)
	assert.Equal(t, "FAR exceeded: 2.25 > 2.00", verdict.Violations[3].Message)

	// 37.5% coverage is under the 40% cap, so no coverage violation.
	for _, v := range verdict.Violations {
		assert.NotEqual(t, models.CheckCoverage, v.Check)
	}
	assert.Empty(t, verdict.Skipped)
}

func TestEvaluateScenarioBEqualityIsCompliant(t *testing.T) {
	metrics := sampleMetrics()
	metrics.HeightM = 15.0
	metrics.SetbackFrontM = 5.0

	verdict, err := Evaluate(fullRules(), metrics, insidePlot())
	require.NoError(t, err)

	require.Len(t, verdict.Violations, 2)
	assert.Equal(t, models.CheckSetbackLeft, verdict.Violations[0].Check)
	assert.Equal(t, models.CheckFAR, verdict.Violations[1].Check)
}

func TestEvaluateScenarioCBoundaryOnly(t *testing.T) {
	boundary := models.BoundaryResult{WithinPlot: false, PlotAreaM2: 1200, ViolationDistanceM: 3.7}

	verdict, err := Evaluate(models.RuleSet{}, sampleMetrics(), boundary)
	require.NoError(t, err)

	assert.False(t, verdict.Approved)
	require.Len(t, verdict.Violations, 1)
	assert.Equal(t, models.CheckBoundary, verdict.Violations[0].Check)
	assert.Equal(t, models.SeverityCritical, verdict.Violations[0].Severity)
	assert.Equal(t, "Plot boundary violation: 3.70m beyond plot", verdict.Violations[0].Message)
}

func TestEvaluateEmptyRuleSetFollowsBoundary(t *testing.T) {
	verdict, err := Evaluate(models.RuleSet{}, sampleMetrics(), insidePlot())
	require.NoError(t, err)
	assert.True(t, verdict.Approved)
	assert.Empty(t, verdict.Violations)
	assert.Empty(t, verdict.Skipped)
}

func TestEvaluateExactThresholdsProduceNoViolations(t *testing.T) {
	rules := fullRules()
	metrics := models.BuildingMetrics{
		HeightM:         15.0,
		SetbackFrontM:   5.0,
		SetbackRearM:    3.0,
		SetbackLeftM:    2.0,
		SetbackRightM:   2.0,
		FootprintAreaM2: 480,  // exactly 40% of 1200
		TotalAreaM2:     2400, // FAR exactly 2.0
	}

	verdict, err := Evaluate(rules, metrics, insidePlot())
	require.NoError(t, err)
	assert.True(t, verdict.Approved)
	assert.Empty(t, verdict.Violations)
}

func TestEvaluateDivisionGuard(t *testing.T) {
	boundary := models.BoundaryResult{WithinPlot: true, PlotAreaM2: 0}

	verdict, err := Evaluate(fullRules(), sampleMetrics(), boundary)
	require.NoError(t, err)

	for _, v := range verdict.Violations {
		assert.NotEqual(t, models.CheckFAR, v.Check)
		assert.NotEqual(t, models.CheckCoverage, v.Check)
	}

	require.Len(t, verdict.Skipped, 2)
	assert.Equal(t, models.CheckFAR, verdict.Skipped[0].Check)
	assert.Equal(t, models.CheckCoverage, verdict.Skipped[1].Check)
}

func TestEvaluateIdempotent(t *testing.T) {
	first, err := Evaluate(fullRules(), sampleMetrics(), insidePlot())
	require.NoError(t, err)
	second, err := Evaluate(fullRules(), sampleMetrics(), insidePlot())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEvaluateHeightMonotonicity(t *testing.T) {
	rules := models.RuleSet{MaxHeightM: models.Threshold(15)}

	metrics := sampleMetrics()
	metrics.HeightM = 14.9
	verdict, err := Evaluate(rules, metrics, insidePlot())
	require.NoError(t, err)
	assert.Empty(t, verdict.Violations)

	for _, excess := range []float64{0.01, 0.5, 1.5, 12.33} {
		metrics.HeightM = 15 + excess
		verdict, err = Evaluate(rules, metrics, insidePlot())
		require.NoError(t, err)
		require.Len(t, verdict.Violations, 1)
		expected := fmt.Sprintf("Height exceeds limit: %.2fm > 15.00m (+%.2fm)", metrics.HeightM, excess)
		assert.Equal(t, expected, verdict.Violations[0].Message)
	}
}

func TestEvaluateRightSideSetbackUsesSideRule(t *testing.T) {
	rules := models.RuleSet{MinSetbackSideM: models.Threshold(2.5)}
	metrics := sampleMetrics()
	metrics.SetbackLeftM = 2.5
	metrics.SetbackRightM = 2.1

	verdict, err := Evaluate(rules, metrics, insidePlot())
	require.NoError(t, err)
	require.Len(t, verdict.Violations, 1)
	assert.Equal(t, models.CheckSetbackRight, verdict.Violations[0].Check)
	assert.Equal(t, "Insufficient right side setback: 2.10m < 2.50m (missing 0.40m)", verdict.Violations[0].Message)
}

func TestEvaluateApprovedMatchesViolations(t *testing.T) {
	cases := []struct {
		name     string
		rules    models.RuleSet
		metrics  models.BuildingMetrics
		boundary models.BoundaryResult
	}{
		{"all pass", fullRules(), models.BuildingMetrics{
			HeightM: 10, SetbackFrontM: 6, SetbackRearM: 4, SetbackLeftM: 3, SetbackRightM: 3,
			FootprintAreaM2: 300, TotalAreaM2: 900,
		}, insidePlot()},
		{"all fail", fullRules(), sampleMetrics(), models.BoundaryResult{WithinPlot: false, PlotAreaM2: 1200, ViolationDistanceM: 1}},
		{"no rules", models.RuleSet{}, sampleMetrics(), insidePlot()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verdict, err := Evaluate(tc.rules, tc.metrics, tc.boundary)
			require.NoError(t, err)
			assert.Equal(t, len(verdict.Violations) == 0, verdict.Approved)
		})
	}
}

func TestEvaluateContractViolations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.BuildingMetrics, *models.BoundaryResult, *models.RuleSet)
		field  string
	}{
		{"NaN height", func(m *models.BuildingMetrics, _ *models.BoundaryResult, _ *models.RuleSet) {
			m.HeightM = math.NaN()
		}, "metrics.height_m"},
		{"negative setback", func(m *models.BuildingMetrics, _ *models.BoundaryResult, _ *models.RuleSet) {
			m.SetbackRearM = -1
		}, "metrics.setback_rear_m"},
		{"infinite total area", func(m *models.BuildingMetrics, _ *models.BoundaryResult, _ *models.RuleSet) {
			m.TotalAreaM2 = math.Inf(1)
		}, "metrics.total_area_m2"},
		{"NaN plot area", func(_ *models.BuildingMetrics, b *models.BoundaryResult, _ *models.RuleSet) {
			b.PlotAreaM2 = math.NaN()
		}, "boundary.plot_area_m2"},
		{"NaN threshold", func(_ *models.BuildingMetrics, _ *models.BoundaryResult, r *models.RuleSet) {
			r.MaxFAR = models.Threshold(math.NaN())
		}, "rules.max_far"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rules := fullRules()
			metrics := sampleMetrics()
			boundary := insidePlot()
			tc.mutate(&metrics, &boundary, &rules)

			_, err := Evaluate(rules, metrics, boundary)
			require.Error(t, err)

			var contractErr *ContractError
			require.ErrorAs(t, err, &contractErr)
			assert.Equal(t, tc.field, contractErr.Field)
		})
	}
}

func TestEvaluateZeroPlotAreaWithoutRatioRules(t *testing.T) {
	rules := models.RuleSet{MaxHeightM: models.Threshold(15)}
	boundary := models.BoundaryResult{WithinPlot: true, PlotAreaM2: 0}

	verdict, err := Evaluate(rules, sampleMetrics(), boundary)
	require.NoError(t, err)
	assert.Empty(t, verdict.Skipped)
	require.Len(t, verdict.Violations, 1)
	assert.Equal(t, models.CheckHeight, verdict.Violations[0].Check)
}
