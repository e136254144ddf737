package tilt

import (
	"math"

	"github.com/ironsheep/treetilt-mcp/internal/mask"
)

// Validator defaults.
const (
	DefaultValidationThreshold = 0.4
	defaultLineThickness       = 3
	defaultNeighborhoodRadius  = 10
	defaultSamplePoints        = 20
	directOverlapWeight        = 0.6
	neighborhoodOverlapWeight  = 0.4
	trunkRowWidthFraction      = 0.05
)

// ValidateOptions configures ValidateLine.
type ValidateOptions struct {
	// Threshold is the accuracy a line must exceed to be valid. Zero uses
	// DefaultValidationThreshold.
	Threshold float64 `json:"threshold"`
}

func (o ValidateOptions) threshold() float64 {
	if o.Threshold <= 0 {
		return DefaultValidationThreshold
	}
	return o.Threshold
}

// Line is a straight candidate trunk line from the bottom row to the top
// row of the image.
type Line struct {
	BottomX int `json:"bottom_x"`
	BottomY int `json:"bottom_y"`
	TopX    int `json:"top_x"`
	TopY    int `json:"top_y"`
}

// LineFromAngle builds the candidate line through (bottomX, height-1) for a
// tilt of angle degrees. The top point is displaced by height*tan(angle)
// toward the left for positive angles, matching the line estimator, whose
// positive angles put the trunk base right of the frame center.
func LineFromAngle(bottomX, angle float64, width, height int) Line {
	shift := float64(height) * math.Tan(angle*math.Pi/180)
	// Keep near-horizontal angles from producing unbounded lines.
	limit := 10 * float64(width+height)
	shift = math.Max(-limit, math.Min(limit, shift))
	return Line{
		BottomX: int(bottomX),
		BottomY: height - 1,
		TopX:    int(bottomX - shift),
		TopY:    0,
	}
}

// Validation reports how well a candidate line follows the mask.
type Validation struct {
	Line Line `json:"line"`

	// DirectOverlap is the fraction of line pixels in the trunk region that
	// are foreground.
	DirectOverlap float64 `json:"direct_overlap"`

	// NeighborhoodOverlap is the fraction of sampled line points with any
	// foreground within the neighborhood radius.
	NeighborhoodOverlap float64 `json:"neighborhood_overlap"`

	Accuracy float64 `json:"accuracy"`
	Valid    bool    `json:"valid"`
}

// ValidateLine rasterizes line three pixels thick and scores it against m
// below trunkStart. Accuracy is 0.6 times the direct overlap plus 0.4
// times the neighborhood overlap.
func ValidateLine(m *mask.Mask, line Line, trunkStart int, opts ValidateOptions) Validation {
	v := Validation{Line: line}

	drawn := drawLine(m.Width, m.Height, line, defaultLineThickness)

	// Row-major order so sampling strides are stable.
	var points [][2]int
	for y := max(0, trunkStart); y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if drawn.Pix[y*m.Width+x] {
				points = append(points, [2]int{x, y})
			}
		}
	}
	if len(points) == 0 {
		return v
	}

	hits := 0
	for _, p := range points {
		if m.Pix[p[1]*m.Width+p[0]] {
			hits++
		}
	}
	v.DirectOverlap = float64(hits) / float64(len(points))

	stride := max(1, len(points)/defaultSamplePoints)
	sampled, near := 0, 0
	for i := 0; i < len(points); i += stride {
		sampled++
		if anyForeground(m, points[i][0], points[i][1], defaultNeighborhoodRadius) {
			near++
		}
	}
	v.NeighborhoodOverlap = float64(near) / float64(sampled)

	v.Accuracy = directOverlapWeight*v.DirectOverlap + neighborhoodOverlapWeight*v.NeighborhoodOverlap
	v.Valid = v.Accuracy > opts.threshold()
	return v
}

// anyForeground reports whether the window [x-r, x+r) x [y-r, y+r) holds a
// foreground pixel.
func anyForeground(m *mask.Mask, x, y, r int) bool {
	for yy := max(0, y-r); yy < min(m.Height, y+r); yy++ {
		for xx := max(0, x-r); xx < min(m.Width, x+r); xx++ {
			if m.Pix[yy*m.Width+xx] {
				return true
			}
		}
	}
	return false
}

// drawLine rasterizes line with Bresenham's algorithm and stamps a square
// brush of the given thickness at every step.
func drawLine(width, height int, line Line, thickness int) *mask.Mask {
	out := mask.New(width, height)
	lo := (thickness - 1) / 2
	hi := thickness - 1 - lo

	x0, y0, x1, y1 := line.BottomX, line.BottomY, line.TopX, line.TopY
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		for by := y0 - lo; by <= y0+hi; by++ {
			for bx := x0 - lo; bx <= x0+hi; bx++ {
				out.Set(bx, by, true)
			}
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// TrunkCenter returns the horizontal center of the trunk below trunkStart:
// the midpoint of the mean left edge and the mean right edge over rows
// whose foreground covers more than 5% of the width. ok is false when no
// row qualifies.
func TrunkCenter(m *mask.Mask, trunkStart int) (center float64, ok bool) {
	var sumLeft, sumRight, n int
	minCount := trunkRowWidthFraction * float64(m.Width)
	for y := max(0, trunkStart); y < m.Height; y++ {
		if float64(m.RowCount(y)) <= minCount {
			continue
		}
		left, right, _ := m.RowExtent(y)
		sumLeft += left
		sumRight += right
		n++
	}
	if n == 0 {
		return 0, false
	}
	meanLeft := float64(sumLeft) / float64(n)
	meanRight := float64(sumRight) / float64(n)
	return (meanLeft + meanRight) / 2, true
}

// Centroid returns the mean foreground column at or below row start. ok is
// false when there is no foreground there.
func Centroid(m *mask.Mask, start int) (x float64, ok bool) {
	var sum, n int
	for y := max(0, start); y < m.Height; y++ {
		for xx := 0; xx < m.Width; xx++ {
			if m.Pix[y*m.Width+xx] {
				sum += xx
				n++
			}
		}
	}
	if n == 0 {
		return 0, false
	}
	return float64(sum) / float64(n), true
}
