package orientation

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/treetilt-mcp/internal/mask"
)

// PCAEstimate is the result of PrincipalAxis.Estimate.
type PCAEstimate struct {
	Estimate

	// RotationDegrees is the pre-rotation candidate that won.
	RotationDegrees float64 `json:"rotation_degrees"`

	// Candidates holds one estimate per pre-rotation, in input order.
	Candidates []PCACandidate `json:"candidates,omitempty"`
}

// PCACandidate is the estimate obtained under one pre-rotation.
type PCACandidate struct {
	RotationDegrees float64 `json:"rotation_degrees"`
	AngleDegrees    float64 `json:"angle_degrees"`
	Confidence      float64 `json:"confidence"`
}

// PrincipalAxis estimates tilt from the dominant variance axis of the
// foreground pixel coordinates.
type PrincipalAxis struct {
	// Rotations are the candidate pre-rotations in degrees. Empty means {0}.
	Rotations []float64

	Logger *slog.Logger
}

// Estimate fits the principal axis under every candidate pre-rotation and
// returns the one with the highest explained variance ratio. Ties keep the
// earlier candidate.
func (p *PrincipalAxis) Estimate(m *mask.Mask) (PCAEstimate, error) {
	log := loggerOrDefault(p.Logger)

	xs, ys := foregroundCoords(m)
	if len(xs) == 0 {
		return PCAEstimate{}, mask.ErrEmptyMask
	}
	if len(xs) < 2 {
		return PCAEstimate{}, ErrDegenerateMask
	}

	rotations := p.Rotations
	if len(rotations) == 0 {
		rotations = []float64{0}
	}

	cx := float64(m.Width-1) / 2
	cy := float64(m.Height-1) / 2

	var (
		best       PCAEstimate
		found      bool
		candidates = make([]PCACandidate, 0, len(rotations))
	)
	for _, rot := range rotations {
		angle, ratio, err := principalAngle(xs, ys, cx, cy, rot)
		if err != nil {
			return PCAEstimate{}, err
		}
		log.Debug("principal axis candidate",
			"rotation", rot,
			"angle", angle,
			"explained_variance", ratio)

		candidates = append(candidates, PCACandidate{
			RotationDegrees: rot,
			AngleDegrees:    angle,
			Confidence:      ratio,
		})
		if !found || ratio > *best.Confidence {
			found = true
			best = PCAEstimate{
				Estimate: Estimate{
					AngleDegrees: angle,
					Confidence:   confidence(ratio),
					Source:       SourcePrincipalAxis,
				},
				RotationDegrees: rot,
			}
		}
	}
	best.Candidates = candidates
	return best, nil
}

func foregroundCoords(m *mask.Mask) (xs, ys []float64) {
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Pix[y*m.Width+x] {
				xs = append(xs, float64(x))
				ys = append(ys, float64(y))
			}
		}
	}
	return xs, ys
}

// principalAngle rotates the points by rot degrees about (cx, cy), fits the
// first principal component, rotates it back and measures its signed angle
// to the upward vertical.
func principalAngle(xs, ys []float64, cx, cy, rot float64) (angle, ratio float64, err error) {
	rad := rot * math.Pi / 180
	cosR, sinR := math.Cos(rad), math.Sin(rad)

	data := mat.NewDense(len(xs), 2, nil)
	for i := range xs {
		dx, dy := xs[i]-cx, ys[i]-cy
		data.Set(i, 0, dx*cosR-dy*sinR)
		data.Set(i, 1, dx*sinR+dy*cosR)
	}

	var pc stat.PC
	if !pc.PrincipalComponents(data, nil) {
		return 0, 0, fmt.Errorf("principal component analysis failed")
	}
	vars := pc.VarsTo(nil)
	total := vars[0] + vars[1]
	if total <= 0 {
		return 0, 0, ErrDegenerateMask
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vx, vy := vecs.At(0, 0), vecs.At(1, 0)

	// Undo the pre-rotation.
	ux := vx*cosR + vy*sinR
	uy := -vx*sinR + vy*cosR
	if n := math.Hypot(ux, uy); n > 0 {
		ux, uy = ux/n, uy/n
	}

	return signedAngleFromUp(ux, uy), vars[0] / total, nil
}

// signedAngleFromUp returns the angle in degrees between the axis (ux, uy)
// and the image's up vector (0, -1). The axis is first oriented upward, so
// the result lies in [-90, 90]; positive means the top leans right.
func signedAngleFromUp(ux, uy float64) float64 {
	if uy > 0 || (uy == 0 && ux < 0) {
		ux, uy = -ux, -uy
	}
	dot := math.Max(-1, math.Min(1, -uy))
	angle := math.Acos(dot) * 180 / math.Pi
	if ux < 0 {
		angle = -angle
	}
	return angle
}
