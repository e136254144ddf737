//go:build gocv

package mask

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// OpenCVAvailable reports whether BackendOpenCV is compiled in.
func OpenCVAvailable() bool { return true }

// otsuLevelOpenCV lets cv::threshold pick the Otsu level. The binary output
// is discarded; callers threshold with the returned level.
func otsuLevelOpenCV(gray *image.Gray) (int, error) {
	src, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return 0, fmt.Errorf("failed to build OpenCV matrix: %w", err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	level := gocv.Threshold(src, &dst, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	return int(level), nil
}

func cleanOpenCV(m *Mask, opts CleanOptions) (*Mask, error) {
	out := m.Clone()
	if opts.MinRegionArea > 0 {
		if err := fillSmallOpenCV(out, false, opts.MinRegionArea); err != nil {
			return nil, err
		}
		if err := fillSmallOpenCV(out, true, opts.MinRegionArea); err != nil {
			return nil, err
		}
	}
	if opts.ClosingSize > 1 {
		return closeOpenCV(out, opts.ClosingSize)
	}
	return out, nil
}

// toMat copies the pixels equal to value into an 8-bit matrix at 255.
func toMat(m *Mask, value bool) (gocv.Mat, error) {
	data := make([]byte, len(m.Pix))
	for i, v := range m.Pix {
		if v == value {
			data[i] = 255
		}
	}
	return gocv.NewMatFromBytes(m.Height, m.Width, gocv.MatTypeCV8U, data)
}

// fillSmallOpenCV labels the 4-connected components of pixels equal to
// value and flips those with an area below minArea.
func fillSmallOpenCV(m *Mask, value bool, minArea int) error {
	src, err := toMat(m, value)
	if err != nil {
		return fmt.Errorf("failed to build OpenCV matrix: %w", err)
	}
	defer src.Close()

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	n := gocv.ConnectedComponentsWithStatsWithParams(src, &labels, &stats, &centroids,
		4, gocv.MatTypeCV32S, gocv.CCL_DEFAULT)

	// Label 0 is everything not equal to value.
	small := make([]bool, n)
	for l := 1; l < n; l++ {
		small[l] = int(stats.GetIntAt(l, int(gocv.CC_STAT_AREA))) < minArea
	}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if l := labels.GetIntAt(y, x); l > 0 && small[l] {
				m.Pix[y*m.Width+x] = !value
			}
		}
	}
	return nil
}

// closeOpenCV closes m with a size x size rectangle. OpenCV's default
// constant border leaves pixels at the image edge uneroded.
func closeOpenCV(m *Mask, size int) (*Mask, error) {
	src, err := toMat(m, true)
	if err != nil {
		return nil, fmt.Errorf("failed to build OpenCV matrix: %w", err)
	}
	defer src.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(size, size))
	defer kernel.Close()

	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(src, &closed, gocv.MorphClose, kernel)

	out, err := FromBytes(m.Width, m.Height, closed.ToBytes())
	if err != nil {
		return nil, fmt.Errorf("unexpected OpenCV output: %w", err)
	}
	return out, nil
}
