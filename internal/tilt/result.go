package tilt

import (
	"github.com/ironsheep/treetilt-mcp/internal/orientation"
)

// Result is the outcome of one Controller.Run.
type Result struct {
	// AngleDegrees is the combined tilt, positive for a right lean.
	AngleDegrees float64 `json:"angle_degrees"`

	Classification Classification `json:"classification"`
	Status         Status         `json:"status"`

	// IsValid is false only when a minor tilt line failed validation on
	// every attempt.
	IsValid bool `json:"is_valid"`

	// AccuracyScore is the validator accuracy of the returned attempt.
	// It is zero when Validated is false.
	AccuracyScore float64 `json:"accuracy_score"`

	// Validated reports whether the tilt line was checked against the mask.
	// Only minor tilts are validated.
	Validated bool `json:"validated"`

	// TrunkLineCount is the number of accepted trunk lines, zero when the
	// line estimator produced nothing.
	TrunkLineCount int `json:"trunk_line_count"`

	// Attempts is the number of detection attempts made.
	Attempts int `json:"attempts"`

	// Source tells which estimators contributed to AngleDegrees.
	Source orientation.Source `json:"source"`

	PCA        *orientation.PCAEstimate  `json:"pca,omitempty"`
	Lines      *orientation.LineEstimate `json:"lines,omitempty"`
	Sweep      SweepAnalysis             `json:"sweep"`
	Validation *Validation               `json:"validation,omitempty"`

	TrunkStart   int     `json:"trunk_start"`
	TrunkCenterX float64 `json:"trunk_center_x"`
}

// LineCount returns the trunk line count when the line estimator ran
// successfully. ok is false when the angle came from principal-axis
// analysis alone.
func (r *Result) LineCount() (n int, ok bool) {
	if r.Lines == nil {
		return 0, false
	}
	return r.TrunkLineCount, true
}
