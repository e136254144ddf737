package orientation

import (
	"errors"
	"log/slog"
)

var (
	// ErrNoLinesDetected is returned when the trunk region yields no
	// near-vertical segments.
	ErrNoLinesDetected = errors.New("no trunk lines detected")

	// ErrNoEstimate is returned by Combine when neither estimator produced
	// an angle.
	ErrNoEstimate = errors.New("no orientation estimate available")

	// ErrDegenerateMask is returned when the foreground has no spread to
	// fit an axis to, such as a single pixel.
	ErrDegenerateMask = errors.New("mask foreground is degenerate")
)

// Source identifies the estimator that produced an angle.
type Source string

const (
	SourcePrincipalAxis    Source = "PRINCIPAL_AXIS"
	SourceLineIntersection Source = "LINE_INTERSECTION"
	SourceCombined         Source = "COMBINED"
)

// Estimate is a signed trunk tilt. Positive angles are a right lean; see
// the package documentation for what that means per estimator.
type Estimate struct {
	AngleDegrees float64 `json:"angle_degrees"`

	// Confidence is the explained variance ratio for principal-axis
	// estimates, in [0, 1]. Line estimates carry none.
	Confidence *float64 `json:"confidence,omitempty"`

	Source Source `json:"source"`
}

func confidence(v float64) *float64 {
	return &v
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
