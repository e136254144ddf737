//go:build !gocv

package detection

import "errors"

// ErrOpenCVUnavailable is returned when the OpenCV detector is requested
// from a binary built without the gocv tag.
var ErrOpenCVUnavailable = errors.New("opencv line detector not available (build with -tags gocv)")

func newOpenCVDetector() (LineDetector, error) {
	return nil, ErrOpenCVUnavailable
}

// OpenCVAvailable reports whether the OpenCV detector is compiled in.
func OpenCVAvailable() bool { return false }
