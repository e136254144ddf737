//go:build !gocv

package mask

import "image"

// OpenCVAvailable reports whether BackendOpenCV is compiled in.
func OpenCVAvailable() bool { return false }

func otsuLevelOpenCV(*image.Gray) (int, error) {
	return 0, ErrOpenCVUnavailable
}

func cleanOpenCV(*Mask, CleanOptions) (*Mask, error) {
	return nil, ErrOpenCVUnavailable
}
