package models

import "time"

// Rule keys as they appear in by-law documents, LLM responses and the
// run-history store. Left and right side setbacks share a single key.
const (
	RuleMaxHeight       = "max_height_m"
	RuleMinSetbackFront = "min_setback_front_m"
	RuleMinSetbackRear  = "min_setback_rear_m"
	RuleMinSetbackSide  = "min_setback_side_m"
	RuleMaxFAR          = "max_far"
	RuleMaxCoverage     = "max_coverage"
)

// RuleKeys lists every supported rule key in evaluation order.
var RuleKeys = []string{
	RuleMaxHeight,
	RuleMinSetbackFront,
	RuleMinSetbackRear,
	RuleMinSetbackSide,
	RuleMaxFAR,
	RuleMaxCoverage,
}

// RuleSet holds the regulatory thresholds extracted from a by-law document.
// A nil field means the document does not state that rule; the engine skips
// the corresponding check instead of treating absence as zero or infinity.
// Ratio thresholds (MaxFAR, MaxCoverage) are fractions, never percentages.
type RuleSet struct {
	MaxHeightM       *float64 `json:"max_height_m,omitempty"`
	MinSetbackFrontM *float64 `json:"min_setback_front_m,omitempty"`
	MinSetbackRearM  *float64 `json:"min_setback_rear_m,omitempty"`
	MinSetbackSideM  *float64 `json:"min_setback_side_m,omitempty"`
	MaxFAR           *float64 `json:"max_far,omitempty"`
	MaxCoverage      *float64 `json:"max_coverage,omitempty"`
}

// Threshold returns a pointer to v, for building a RuleSet literal.
func Threshold(v float64) *float64 {
	return &v
}

// Get returns the threshold for a rule key and whether it is stated.
func (r RuleSet) Get(key string) (float64, bool) {
	var p *float64
	switch key {
	case RuleMaxHeight:
		p = r.MaxHeightM
	case RuleMinSetbackFront:
		p = r.MinSetbackFrontM
	case RuleMinSetbackRear:
		p = r.MinSetbackRearM
	case RuleMinSetbackSide:
		p = r.MinSetbackSideM
	case RuleMaxFAR:
		p = r.MaxFAR
	case RuleMaxCoverage:
		p = r.MaxCoverage
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Set stores a threshold for a rule key. Unknown keys are ignored.
func (r *RuleSet) Set(key string, v float64) {
	switch key {
	case RuleMaxHeight:
		r.MaxHeightM = &v
	case RuleMinSetbackFront:
		r.MinSetbackFrontM = &v
	case RuleMinSetbackRear:
		r.MinSetbackRearM = &v
	case RuleMinSetbackSide:
		r.MinSetbackSideM = &v
	case RuleMaxFAR:
		r.MaxFAR = &v
	case RuleMaxCoverage:
		r.MaxCoverage = &v
	}
}

// Stated returns the rule keys actually present, in evaluation order.
func (r RuleSet) Stated() []string {
	var keys []string
	for _, key := range RuleKeys {
		if _, ok := r.Get(key); ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// Empty reports whether no rule is stated at all.
func (r RuleSet) Empty() bool {
	return len(r.Stated()) == 0
}

// BuildingMetrics are the geometric facts extracted from the floor plan.
// All values are meters / square meters and non-negative regardless of the
// drawing's native units.
type BuildingMetrics struct {
	HeightM         float64 `json:"height_m"`
	SetbackFrontM   float64 `json:"setback_front_m"`
	SetbackRearM    float64 `json:"setback_rear_m"`
	SetbackLeftM    float64 `json:"setback_left_m"`
	SetbackRightM   float64 `json:"setback_right_m"`
	FootprintAreaM2 float64 `json:"footprint_area_m2"`
	TotalAreaM2     float64 `json:"total_area_m2"`
}

// BoundaryResult is the outcome of the footprint/plot containment check.
// ViolationDistanceM is zero when WithinPlot is true, otherwise the distance
// by which the footprint protrudes beyond the plot boundary.
type BoundaryResult struct {
	WithinPlot         bool    `json:"within_plot"`
	PlotAreaM2         float64 `json:"plot_area_m2"`
	ViolationDistanceM float64 `json:"violation_distance_m"`
}

// Severity classifies how serious a violation is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
)

// Check names used in violations and skipped-check entries.
const (
	CheckBoundary     = "boundary"
	CheckHeight       = "height"
	CheckSetbackFront = "setback_front"
	CheckSetbackRear  = "setback_rear"
	CheckSetbackLeft  = "setback_left"
	CheckSetbackRight = "setback_right"
	CheckFAR          = "far"
	CheckCoverage     = "coverage"
)

// Violation is a single failed compliance check.
type Violation struct {
	Check    string   `json:"check"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// SkippedCheck records a check that could not be evaluated, so callers can
// distinguish "compliant" from "unchecked".
type SkippedCheck struct {
	Check  string `json:"check"`
	Reason string `json:"reason"`
}

// Verdict is the engine output. Violations keep evaluation order.
// Approved is true exactly when Violations is empty.
type Verdict struct {
	Approved   bool           `json:"approved"`
	Violations []Violation    `json:"violations"`
	Skipped    []SkippedCheck `json:"skipped,omitempty"`
}

// Messages returns the violation descriptions in evaluation order.
func (v Verdict) Messages() []string {
	msgs := make([]string, len(v.Violations))
	for i, violation := range v.Violations {
		msgs[i] = violation.Message
	}
	return msgs
}

// RunRecord ties together the inputs and outcome of one compliance run.
type RunRecord struct {
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	BylawsPath string          `json:"bylaws_path"`
	PlanPath   string          `json:"plan_path"`
	PlotPath   string          `json:"plot_path"`
	Rules      RuleSet         `json:"rules"`
	Metrics    BuildingMetrics `json:"metrics"`
	Boundary   BoundaryResult  `json:"boundary"`
	Verdict    Verdict         `json:"verdict"`
}

// RunSummary is a condensed view of a stored run for history listings.
type RunSummary struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	PlanPath       string    `json:"plan_path"`
	Approved       bool      `json:"approved"`
	ViolationCount int       `json:"violation_count"`
}
