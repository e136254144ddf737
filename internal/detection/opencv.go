//go:build gocv

package detection

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"

	"github.com/ironsheep/treetilt-mcp/internal/mask"
)

// OpenCVDetector runs OpenCV's probabilistic Hough transform (HoughLinesP)
// over the mask. It needs the gocv build tag and a local OpenCV install.
type OpenCVDetector struct{}

func newOpenCVDetector() (LineDetector, error) {
	return OpenCVDetector{}, nil
}

// OpenCVAvailable reports whether the OpenCV detector is compiled in.
func OpenCVAvailable() bool { return true }

// Detect implements LineDetector.
func (OpenCVDetector) Detect(m *mask.Mask, p Params) ([]Segment, error) {
	if m == nil || m.Width <= 0 || m.Height <= 0 {
		return nil, nil
	}

	src, err := gocv.NewMatFromBytes(m.Height, m.Width, gocv.MatTypeCV8U, m.Gray().Pix)
	if err != nil {
		return nil, fmt.Errorf("failed to build OpenCV matrix: %w", err)
	}
	defer src.Close()

	lines := gocv.NewMat()
	defer lines.Close()

	gocv.HoughLinesPWithParams(src, &lines, 1, math.Pi/180, p.Threshold,
		float32(p.MinLength), float32(p.MaxGap))

	segments := make([]Segment, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		v := lines.GetVeciAt(i, 0)
		segments = append(segments, NewSegment(float64(v[0]), float64(v[1]), float64(v[2]), float64(v[3])))
	}
	return segments, nil
}
