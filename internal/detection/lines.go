package detection

import (
	"math"
	"sort"

	"github.com/ironsheep/treetilt-mcp/internal/mask"
)

// Segment is a detected straight line segment in pixel coordinates.
type Segment struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`

	Length float64 `json:"length"`

	// AngleFromHorizontal is the unsigned angle to the x axis, in [0, 90]
	// degrees. Vertical segments are 90.
	AngleFromHorizontal float64 `json:"angle_from_horizontal"`
}

// NewSegment builds a segment and fills in its derived fields.
func NewSegment(x1, y1, x2, y2 float64) Segment {
	dx := x2 - x1
	dy := y2 - y1
	return Segment{
		X1:                  x1,
		Y1:                  y1,
		X2:                  x2,
		Y2:                  y2,
		Length:              math.Hypot(dx, dy),
		AngleFromHorizontal: math.Atan2(math.Abs(dy), math.Abs(dx)) * 180 / math.Pi,
	}
}

// XAt returns the x coordinate where the segment's supporting line crosses
// row y. ok is false for horizontal segments.
func (s Segment) XAt(y float64) (x float64, ok bool) {
	dy := s.Y2 - s.Y1
	if dy == 0 {
		return 0, false
	}
	return s.X1 + (s.X2-s.X1)/dy*(y-s.Y1), true
}

// Params are the segment detection parameters, named after their
// HoughLinesP counterparts.
type Params struct {
	// Threshold is the minimum accumulator votes for a candidate line.
	Threshold int `json:"threshold"`

	// MinLength is the shortest segment returned, in pixels.
	MinLength int `json:"min_length"`

	// MaxGap is the longest run of background bridged inside one segment.
	MaxGap int `json:"max_gap"`
}

// LineDetector finds straight segments among the foreground pixels of a mask.
type LineDetector interface {
	Detect(m *mask.Mask, p Params) ([]Segment, error)
}

// DefaultMaxLines caps the number of accumulator peaks traced per call.
const DefaultMaxLines = 50

const numAngles = 180

// HoughDetector is a pure Go segment detector. It votes every foreground
// pixel into a (rho, theta) accumulator, keeps local maxima with at least
// Threshold votes and traces each one across the mask to split it into
// segments.
//
// Rho is measured from the horizontal center of the image, so a mask that
// is mirror-symmetric about its vertical centerline yields mirror-symmetric
// segments.
type HoughDetector struct {
	// MaxLines caps the number of peaks traced. Peaks tied with the last
	// one admitted are traced as well. Zero uses DefaultMaxLines.
	MaxLines int
}

// NewHoughDetector returns a HoughDetector with default settings.
func NewHoughDetector() *HoughDetector {
	return &HoughDetector{MaxLines: DefaultMaxLines}
}

type peak struct {
	rho   int
	theta int
	votes int
}

// Detect implements LineDetector.
func (d *HoughDetector) Detect(m *mask.Mask, p Params) ([]Segment, error) {
	if m == nil || m.Width <= 0 || m.Height <= 0 {
		return nil, nil
	}

	width, height := m.Width, m.Height
	cx := float64(width-1) / 2

	cosT, sinT := trigTables()
	maxRho := int(math.Ceil(math.Hypot(float64(width), float64(height))))
	rhoBins := 2*maxRho + 1
	acc := make([]int, rhoBins*numAngles)

	// Vote in Hough space
	for y := 0; y < height; y++ {
		fy := float64(y)
		for x := 0; x < width; x++ {
			if !m.Pix[y*width+x] {
				continue
			}
			xc := float64(x) - cx
			for t := 0; t < numAngles; t++ {
				r := int(math.Round(xc*cosT[t]+fy*sinT[t])) + maxRho
				acc[r*numAngles+t]++
			}
		}
	}

	peaks := findPeaks(acc, rhoBins, maxRho, p.Threshold)
	peaks = capPeaks(peaks, d.maxLines())

	segments := make([]Segment, 0, len(peaks))
	for _, pk := range peaks {
		segments = append(segments, traceLine(m, cx, float64(pk.rho), cosT[pk.theta], sinT[pk.theta], p)...)
	}
	return segments, nil
}

func (d *HoughDetector) maxLines() int {
	if d.MaxLines <= 0 {
		return DefaultMaxLines
	}
	return d.MaxLines
}

// trigTables returns cos and sin of every whole degree in [0, 180). The
// second half mirrors the first exactly so mirrored pixels vote into
// mirrored cells.
func trigTables() (cosT, sinT [numAngles]float64) {
	for t := 0; t <= numAngles/2; t++ {
		a := float64(t) * math.Pi / 180
		cosT[t] = math.Cos(a)
		sinT[t] = math.Sin(a)
	}
	cosT[numAngles/2] = 0
	sinT[numAngles/2] = 1
	for t := numAngles/2 + 1; t < numAngles; t++ {
		cosT[t] = -cosT[numAngles-t]
		sinT[t] = sinT[numAngles-t]
	}
	return cosT, sinT
}

// findPeaks returns accumulator cells with at least threshold votes that no
// neighbour within two bins beats. Theta wraps around: theta+180 is the
// same line as theta with rho negated.
func findPeaks(acc []int, rhoBins, maxRho, threshold int) []peak {
	if threshold < 1 {
		threshold = 1
	}
	at := func(r, t int) int {
		if t < 0 {
			t += numAngles
			r = 2*maxRho - r
		} else if t >= numAngles {
			t -= numAngles
			r = 2*maxRho - r
		}
		if r < 0 || r >= rhoBins {
			return 0
		}
		return acc[r*numAngles+t]
	}

	var peaks []peak
	for r := 0; r < rhoBins; r++ {
		for t := 0; t < numAngles; t++ {
			v := acc[r*numAngles+t]
			if v < threshold {
				continue
			}
			isMax := true
			for dr := -2; dr <= 2 && isMax; dr++ {
				for dt := -2; dt <= 2 && isMax; dt++ {
					if dr == 0 && dt == 0 {
						continue
					}
					if at(r+dr, t+dt) > v {
						isMax = false
					}
				}
			}
			if isMax {
				peaks = append(peaks, peak{rho: r - maxRho, theta: t, votes: v})
			}
		}
	}
	return peaks
}

// capPeaks keeps the strongest peaks. A tie group straddling the cap is
// kept whole.
func capPeaks(peaks []peak, limit int) []peak {
	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].votes > peaks[j].votes
	})
	if len(peaks) <= limit {
		return peaks
	}
	n := limit
	for n < len(peaks) && peaks[n].votes == peaks[limit-1].votes {
		n++
	}
	return peaks[:n]
}

// traceLine walks the line x_c*cos + y*sin = rho across the mask and returns
// its foreground runs as segments. Steep lines are walked row by row, the
// rest column by column.
func traceLine(m *mask.Mask, cx, rho, cos, sin float64, p Params) []Segment {
	var (
		segments []Segment
		steps    int
		point    func(i int) (x, y float64)
	)
	if math.Abs(cos) >= math.Abs(sin) {
		steps = m.Height
		point = func(i int) (float64, float64) {
			y := float64(i)
			return cx + (rho-y*sin)/cos, y
		}
	} else {
		steps = m.Width
		point = func(i int) (float64, float64) {
			xc := float64(i) - cx
			return float64(i), (rho - xc*cos) / sin
		}
	}

	var (
		inRun          bool
		gap            int
		startX, startY float64
		lastX, lastY   float64
	)
	flush := func() {
		s := NewSegment(startX, startY, lastX, lastY)
		if s.Length >= float64(p.MinLength) {
			segments = append(segments, s)
		}
	}
	for i := 0; i < steps; i++ {
		x, y := point(i)
		if onForeground(m, x, y) {
			if !inRun {
				inRun = true
				startX, startY = x, y
			}
			lastX, lastY = x, y
			gap = 0
			continue
		}
		if inRun {
			gap++
			if gap > p.MaxGap {
				flush()
				inRun = false
			}
		}
	}
	if inRun {
		flush()
	}
	return segments
}

// onForeground reports whether the pixel nearest to (x, y) is foreground.
// Exact ties between two pixels check both, keeping the test symmetric
// under horizontal mirroring.
func onForeground(m *mask.Mask, x, y float64) bool {
	py := int(math.Round(y))
	lo := math.Floor(x)
	if x-lo <= 0.5 && m.At(int(lo), py) {
		return true
	}
	hi := math.Ceil(x)
	return hi-x <= 0.5 && m.At(int(hi), py)
}
