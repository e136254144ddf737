package tilt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/treetilt-mcp/internal/mask"
)

// Classification describes the overall shape of the trunk.
type Classification string

const (
	// NaturalSweep is a trunk that curves back toward vertical. Safe.
	NaturalSweep Classification = "NATURAL_SWEEP"

	// WholeTrunkTilt is a uniform lean along the whole trunk. A risk.
	WholeTrunkTilt Classification = "WHOLE_TRUNK_TILT"

	// MinorTilt is a straight trunk at a small angle, or a shape the
	// classifier could not decide on.
	MinorTilt Classification = "MINOR_TILT"
)

// Status is the advisory verdict shown to users.
type Status string

const (
	StatusSafe    Status = "SAFE"
	StatusCaution Status = "CAUTION"
	StatusRisk    Status = "RISK"
)

// StatusFor maps a classification and the estimated angle to a status.
// Minor tilts at or beyond threshold degrees get a caution.
func StatusFor(c Classification, angle, threshold float64) Status {
	switch c {
	case WholeTrunkTilt:
		return StatusRisk
	case NaturalSweep:
		return StatusSafe
	}
	if math.Abs(angle) >= threshold {
		return StatusCaution
	}
	return StatusSafe
}

// Sweep classifier defaults.
const (
	DefaultBandCount          = 10
	DefaultSweepTiltThreshold = 7.0
	MinSweepBands             = 5
	oppositeLeanSlope         = 0.1
	significantCurveSlope     = 0.3
	sweepDeviationFraction    = 0.05
)

// SweepOptions configures ClassifySweep.
type SweepOptions struct {
	// Bands is the number of horizontal bands. Zero uses DefaultBandCount.
	Bands int `json:"bands"`

	// TiltThreshold is the fitted centerline angle, in degrees, above which
	// a trunk without curvature counts as a whole-trunk tilt. Zero uses
	// DefaultSweepTiltThreshold.
	TiltThreshold float64 `json:"tilt_threshold_deg"`
}

func (o SweepOptions) bands() int {
	if o.Bands <= 0 {
		return DefaultBandCount
	}
	return o.Bands
}

func (o SweepOptions) tiltThreshold() float64 {
	if o.TiltThreshold <= 0 {
		return DefaultSweepTiltThreshold
	}
	return o.TiltThreshold
}

// BandCenter is the mean foreground column of one horizontal band.
type BandCenter struct {
	Index   int     `json:"band_index"`
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
}

// SweepAnalysis is the result of ClassifySweep.
//
// Slopes are dx/dy in image coordinates. Since y grows downward, a
// positive slope means the upper end of that stretch sits to the left.
type SweepAnalysis struct {
	// Sufficient is false when fewer than five bands held foreground. The
	// classification is then MinorTilt and no fit is reported.
	Sufficient bool `json:"sufficient"`

	Centers []BandCenter `json:"centers"`

	UpperSlope      float64 `json:"upper_slope"`
	LowerSlope      float64 `json:"lower_slope"`
	SlopeDifference float64 `json:"slope_difference"`

	// OverallSlope is the least-squares slope of center x against y, and
	// OverallAngle its unsigned angle from vertical in degrees.
	OverallSlope float64 `json:"overall_slope"`
	OverallAngle float64 `json:"overall_angle_deg"`

	MaxDeviation float64 `json:"max_deviation"`
	AvgDeviation float64 `json:"avg_deviation"`

	OppositeLean     bool `json:"opposite_lean"`
	SignificantCurve bool `json:"significant_curve"`
	HasSweep         bool `json:"has_sweep"`
	WholeTrunkTilt   bool `json:"whole_trunk_tilt"`

	Classification Classification `json:"classification"`
	Description    string         `json:"description"`
}

// ClassifySweep splits m into horizontal bands, follows the trunk
// centerline through them and decides between natural sweep, whole-trunk
// tilt and minor tilt.
func ClassifySweep(m *mask.Mask, opts SweepOptions) SweepAnalysis {
	centers := bandCenters(m, opts.bands())
	if len(centers) < MinSweepBands {
		return SweepAnalysis{
			Centers:        centers,
			Classification: MinorTilt,
			Description:    "insufficient data to assess sweep",
		}
	}

	a := SweepAnalysis{
		Sufficient: true,
		Centers:    centers,
	}

	mid := len(centers) / 2
	a.UpperSlope = endpointSlope(centers[:mid])
	a.LowerSlope = endpointSlope(centers[mid:])
	a.SlopeDifference = math.Abs(a.UpperSlope - a.LowerSlope)

	xs := make([]float64, len(centers))
	ys := make([]float64, len(centers))
	for i, c := range centers {
		xs[i] = c.CenterX
		ys[i] = c.CenterY
	}
	alpha, beta := stat.LinearRegression(ys, xs, nil, false)
	a.OverallSlope = beta
	a.OverallAngle = math.Abs(math.Atan(beta) * 180 / math.Pi)

	var sumDev float64
	for i := range xs {
		dev := math.Abs(xs[i] - (alpha + beta*ys[i]))
		sumDev += dev
		a.MaxDeviation = math.Max(a.MaxDeviation, dev)
	}
	a.AvgDeviation = sumDev / float64(len(xs))

	a.OppositeLean = a.UpperSlope*a.LowerSlope < 0 &&
		(math.Abs(a.UpperSlope) > oppositeLeanSlope || math.Abs(a.LowerSlope) > oppositeLeanSlope)
	a.SignificantCurve = a.SlopeDifference > significantCurveSlope
	a.HasSweep = a.OppositeLean || a.SignificantCurve ||
		a.MaxDeviation > sweepDeviationFraction*float64(m.Width)

	threshold := opts.tiltThreshold()
	a.WholeTrunkTilt = !a.OppositeLean && !a.SignificantCurve && a.OverallAngle > threshold

	switch {
	case a.HasSweep && !a.WholeTrunkTilt:
		a.Classification = NaturalSweep
	case a.WholeTrunkTilt:
		a.Classification = WholeTrunkTilt
	default:
		a.Classification = MinorTilt
	}
	a.Description = describeSweep(a, threshold)
	return a
}

// bandCenters returns the center of every band holding foreground, top to
// bottom. Rows past the last full band are ignored.
func bandCenters(m *mask.Mask, bands int) []BandCenter {
	bandHeight := m.Height / bands
	if bandHeight == 0 {
		return nil
	}

	var centers []BandCenter
	for i := 0; i < bands; i++ {
		start := i * bandHeight
		end := min(start+bandHeight, m.Height)

		var sum, n int
		for y := start; y < end; y++ {
			for x := 0; x < m.Width; x++ {
				if m.Pix[y*m.Width+x] {
					sum += x
					n++
				}
			}
		}
		if n == 0 {
			continue
		}
		centers = append(centers, BandCenter{
			Index:   i,
			CenterX: float64(sum) / float64(n),
			CenterY: float64(start+end) / 2,
		})
	}
	return centers
}

// endpointSlope is dx/dy between the first and last centers, or zero for
// fewer than two points.
func endpointSlope(c []BandCenter) float64 {
	if len(c) < 2 {
		return 0
	}
	dy := c[len(c)-1].CenterY - c[0].CenterY
	if dy == 0 {
		return 0
	}
	return (c[len(c)-1].CenterX - c[0].CenterX) / dy
}

func describeSweep(a SweepAnalysis, threshold float64) string {
	switch a.Classification {
	case NaturalSweep:
		switch {
		case a.OppositeLean && a.UpperSlope < 0 && a.LowerSlope > 0:
			return "natural sweep: lower trunk leans left, top curves back right"
		case a.OppositeLean && a.UpperSlope > 0 && a.LowerSlope < 0:
			return "natural sweep: lower trunk leans right, top curves back left"
		case a.SignificantCurve:
			return "natural sweep: significant curvature recovering toward vertical"
		default:
			return "natural sweep: trunk deviates from a straight line but curves back"
		}
	case WholeTrunkTilt:
		return fmt.Sprintf("whole-trunk tilt: entire trunk leans %.1f degrees (over %.0f)", a.OverallAngle, threshold)
	}
	if a.OverallAngle <= threshold {
		return fmt.Sprintf("minor tilt: %.1f degrees is within the safe range", a.OverallAngle)
	}
	return "no significant sweep or tilt detected"
}
