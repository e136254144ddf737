package orientation

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/ironsheep/treetilt-mcp/internal/detection"
	"github.com/ironsheep/treetilt-mcp/internal/mask"
)

// DefaultMinLineAngle is the angle from horizontal a segment must exceed to
// count as trunk-like.
const DefaultMinLineAngle = 30.0

// LineParams are the per-attempt parameters of the line-intersection
// estimator.
type LineParams struct {
	detection.Params

	// TrunkFraction is the fraction of the image height, measured from the
	// bottom, searched for trunk lines.
	TrunkFraction float64 `json:"trunk_fraction"`
}

// TrunkStart returns the first row of the trunk region of an image with
// the given height.
func (p LineParams) TrunkStart(height int) int {
	// The epsilon keeps fractions like 0.3 from truncating a row short.
	start := int((1-p.TrunkFraction)*float64(height) + 1e-9)
	return max(0, min(height, start))
}

// TrunkLine is an accepted trunk segment together with its crossing of the
// bottom row.
type TrunkLine struct {
	detection.Segment
	XAtBottom float64 `json:"x_at_bottom"`
}

// LineEstimate is the result of LineIntersection.Estimate.
type LineEstimate struct {
	Estimate

	// Lines are the accepted near-vertical segments.
	Lines []TrunkLine `json:"lines"`

	// DetectedCount counts every segment the detector returned, before
	// the angle filter.
	DetectedCount int `json:"detected_count"`

	// WeightedBottomX is the length-weighted mean crossing of the bottom row.
	WeightedBottomX float64 `json:"weighted_bottom_x"`

	TrunkStart int `json:"trunk_start"`
}

// LineCount is the number of accepted trunk lines.
func (e LineEstimate) LineCount() int {
	return len(e.Lines)
}

// LineIntersection estimates tilt from near-vertical segments in the lower
// part of the mask, extended to the bottom row. The offset of their
// length-weighted crossing from the frame center, over the image height,
// gives the angle: a crossing right of center is a positive angle.
type LineIntersection struct {
	Detector detection.LineDetector

	// MinAngle is the angle from horizontal a segment must exceed. Zero
	// uses DefaultMinLineAngle.
	MinAngle float64

	Logger *slog.Logger
}

// Estimate runs the detector over the trunk region of m.
//
// # Errors
//
//   - mask.ErrEmptyMask when m has no foreground
//   - ErrNoLinesDetected when no segment survives the angle filter
//   - Detector errors, wrapped
func (l *LineIntersection) Estimate(m *mask.Mask, p LineParams) (LineEstimate, error) {
	log := loggerOrDefault(l.Logger)

	if m.Empty() {
		return LineEstimate{}, mask.ErrEmptyMask
	}

	detector := l.Detector
	if detector == nil {
		detector = detection.NewHoughDetector()
	}
	minAngle := l.MinAngle
	if minAngle == 0 {
		minAngle = DefaultMinLineAngle
	}

	trunkStart := p.TrunkStart(m.Height)
	segments, err := detector.Detect(m.KeepRowsFrom(trunkStart), p.Params)
	if err != nil {
		return LineEstimate{}, fmt.Errorf("line detection failed: %w", err)
	}
	if len(segments) == 0 {
		log.Debug("no segments in trunk region", "trunk_start", trunkStart)
		return LineEstimate{}, ErrNoLinesDetected
	}

	bottom := float64(m.Height - 1)
	var (
		lines       []TrunkLine
		weightedSum float64
		totalWeight float64
	)
	for _, s := range segments {
		if s.AngleFromHorizontal <= minAngle {
			continue
		}
		x, ok := s.XAt(bottom)
		if !ok {
			continue
		}
		lines = append(lines, TrunkLine{Segment: s, XAtBottom: x})
		weightedSum += x * s.Length
		totalWeight += s.Length
	}
	if len(lines) == 0 || totalWeight == 0 {
		log.Debug("no near-vertical segments",
			"detected", len(segments),
			"min_angle", minAngle)
		return LineEstimate{}, fmt.Errorf("%w: %d segments, none steeper than %.0f degrees",
			ErrNoLinesDetected, len(segments), minAngle)
	}

	weightedBottomX := weightedSum / totalWeight
	center := float64(m.Width-1) / 2
	angle := math.Atan((weightedBottomX-center)/float64(m.Height)) * 180 / math.Pi

	log.Debug("line intersection estimate",
		"lines", len(lines),
		"weighted_bottom_x", weightedBottomX,
		"angle", angle)

	return LineEstimate{
		Estimate: Estimate{
			AngleDegrees: angle,
			Source:       SourceLineIntersection,
		},
		Lines:           lines,
		DetectedCount:   len(segments),
		WeightedBottomX: weightedBottomX,
		TrunkStart:      trunkStart,
	}, nil
}
