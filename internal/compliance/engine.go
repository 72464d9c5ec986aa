// Package compliance derives a pass/fail verdict from normalized building
// metrics, by-law thresholds and a plot containment result. Evaluate is a
// pure function: no I/O, no logging, deterministic for identical inputs.
package compliance

import (
	"fmt"
	"math"

	"bylaw-check/internal/models"
)

// ContractError reports a malformed input: a field the engine depends on is
// NaN, infinite or out of its documented range. It is a caller bug, not a
// compliance outcome.
type ContractError struct {
	Field  string
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("compliance input contract violation: %s %s", e.Field, e.Reason)
}

const reasonPlotUnavailable = "plot area zero or unavailable"

// Evaluate checks the proposed building against the stated by-laws and the
// plot boundary and returns the verdict.
//
// Evaluation order, which is also violation order: boundary containment,
// height, front/rear/left/right setbacks, floor area ratio, site coverage.
// A check whose governing rule is absent is omitted entirely. FAR and
// coverage are additionally skipped, with a Skipped entry, when the plot
// area is zero, guarding the division.
//
// Comparisons are strict (> for caps, < for minimums) on plain float64
// values with no epsilon: a value exactly at its threshold is compliant.
func Evaluate(rules models.RuleSet, metrics models.BuildingMetrics, boundary models.BoundaryResult) (models.Verdict, error) {
	if err := validateInputs(rules, metrics, boundary); err != nil {
		return models.Verdict{}, err
	}

	ev := &evaluation{}
	ev.checkBoundary(boundary)
	ev.checkHeight(rules, metrics)
	ev.checkSetbacks(rules, metrics)
	ev.checkFAR(rules, metrics, boundary)
	ev.checkCoverage(rules, metrics, boundary)

	return models.Verdict{
		Approved:   len(ev.violations) == 0,
		Violations: ev.violations,
		Skipped:    ev.skipped,
	}, nil
}

type evaluation struct {
	violations []models.Violation
	skipped    []models.SkippedCheck
}

func (ev *evaluation) violate(check string, severity models.Severity, format string, args ...any) {
	ev.violations = append(ev.violations, models.Violation{
		Check:    check,
		Severity: severity,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (ev *evaluation) skip(check, reason string) {
	ev.skipped = append(ev.skipped, models.SkippedCheck{Check: check, Reason: reason})
}

// checkBoundary always runs: plot containment is a physical constraint, not
// a stated by-law.
func (ev *evaluation) checkBoundary(boundary models.BoundaryResult) {
	if boundary.WithinPlot {
		return
	}
	ev.violate(models.CheckBoundary, models.SeverityCritical,
		"Plot boundary violation: %.2fm beyond plot", boundary.ViolationDistanceM)
}

func (ev *evaluation) checkHeight(rules models.RuleSet, metrics models.BuildingMetrics) {
	max, ok := rules.Get(models.RuleMaxHeight)
	if !ok {
		return
	}
	if metrics.HeightM > max {
		ev.violate(models.CheckHeight, models.SeverityCritical,
			"Height exceeds limit: %.2fm > %.2fm (+%.2fm)", metrics.HeightM, max, metrics.HeightM-max)
	}
}

func (ev *evaluation) checkSetbacks(rules models.RuleSet, metrics models.BuildingMetrics) {
	setbacks := []struct {
		check   string
		name    string
		ruleKey string
		actual  float64
	}{
		{models.CheckSetbackFront, "front", models.RuleMinSetbackFront, metrics.SetbackFrontM},
		{models.CheckSetbackRear, "rear", models.RuleMinSetbackRear, metrics.SetbackRearM},
		{models.CheckSetbackLeft, "left side", models.RuleMinSetbackSide, metrics.SetbackLeftM},
		{models.CheckSetbackRight, "right side", models.RuleMinSetbackSide, metrics.SetbackRightM},
	}

	for _, s := range setbacks {
		required, ok := rules.Get(s.ruleKey)
		if !ok {
			continue
		}
		if s.actual < required {
			ev.violate(s.check, models.SeverityMajor,
				"Insufficient %s setback: %.2fm < %.2fm (missing %.2fm)",
				s.name, s.actual, required, required-s.actual)
		}
	}
}

func (ev *evaluation) checkFAR(rules models.RuleSet, metrics models.BuildingMetrics, boundary models.BoundaryResult) {
	max, ok := rules.Get(models.RuleMaxFAR)
	if !ok {
		return
	}
	if boundary.PlotAreaM2 <= 0 {
		ev.skip(models.CheckFAR, reasonPlotUnavailable)
		return
	}
	far := metrics.TotalAreaM2 / boundary.PlotAreaM2
	if far > max {
		ev.violate(models.CheckFAR, models.SeverityMajor,
			"FAR exceeded: %.2f > %.2f", far, max)
	}
}

func (ev *evaluation) checkCoverage(rules models.RuleSet, metrics models.BuildingMetrics, boundary models.BoundaryResult) {
	max, ok := rules.Get(models.RuleMaxCoverage)
	if !ok {
		return
	}
	if boundary.PlotAreaM2 <= 0 {
		ev.skip(models.CheckCoverage, reasonPlotUnavailable)
		return
	}
	coverage := metrics.FootprintAreaM2 / boundary.PlotAreaM2
	if coverage > max {
		ev.violate(models.CheckCoverage, models.SeverityMajor,
			"Coverage exceeded: %.1f%% > %.1f%%", coverage*100, max*100)
	}
}

func validateInputs(rules models.RuleSet, metrics models.BuildingMetrics, boundary models.BoundaryResult) error {
	metricFields := []struct {
		name  string
		value float64
	}{
		{"metrics.height_m", metrics.HeightM},
		{"metrics.setback_front_m", metrics.SetbackFrontM},
		{"metrics.setback_rear_m", metrics.SetbackRearM},
		{"metrics.setback_left_m", metrics.SetbackLeftM},
		{"metrics.setback_right_m", metrics.SetbackRightM},
		{"metrics.footprint_area_m2", metrics.FootprintAreaM2},
		{"metrics.total_area_m2", metrics.TotalAreaM2},
	}
	for _, f := range metricFields {
		if err := finiteNonNegative(f.name, f.value); err != nil {
			return err
		}
	}

	if err := finiteNonNegative("boundary.plot_area_m2", boundary.PlotAreaM2); err != nil {
		return err
	}
	if err := finiteNonNegative("boundary.violation_distance_m", boundary.ViolationDistanceM); err != nil {
		return err
	}

	for _, key := range rules.Stated() {
		v, _ := rules.Get(key)
		if err := finiteNonNegative("rules."+key, v); err != nil {
			return err
		}
	}
	return nil
}

func finiteNonNegative(field string, v float64) error {
	if math.IsNaN(v) {
		return &ContractError{Field: field, Reason: "is NaN"}
	}
	if math.IsInf(v, 0) {
		return &ContractError{Field: field, Reason: "is infinite"}
	}
	if v < 0 {
		return &ContractError{Field: field, Reason: fmt.Sprintf("is negative (%v)", v)}
	}
	return nil
}
