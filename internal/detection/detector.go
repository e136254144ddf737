package detection

import "fmt"

// Detector names accepted by New.
const (
	DetectorHough  = "hough"
	DetectorOpenCV = "opencv"
)

// New returns the line detector registered under name. An empty name
// selects the pure Go Hough detector.
func New(name string) (LineDetector, error) {
	switch name {
	case "", DetectorHough:
		return NewHoughDetector(), nil
	case DetectorOpenCV:
		return newOpenCVDetector()
	default:
		return nil, fmt.Errorf("unknown line detector %q", name)
	}
}
