package mask

import (
	"errors"
	"fmt"
)

// Backend selects the implementation of the raster operations behind
// Otsu thresholding and cleaning.
type Backend string

const (
	// BackendGo is the pure Go implementation, always available.
	BackendGo Backend = "go"

	// BackendOpenCV uses gocv. It needs the gocv build tag and a local
	// OpenCV install.
	BackendOpenCV Backend = "opencv"
)

// ErrOpenCVUnavailable is returned when BackendOpenCV is requested from a
// binary built without the gocv tag.
var ErrOpenCVUnavailable = errors.New("opencv mask backend not available (build with -tags gocv)")

// CleanOptions controls mask denoising.
type CleanOptions struct {
	// MinRegionArea is the pixel area below which holes are filled and
	// blobs are removed.
	MinRegionArea int `json:"min_region_area"`

	// ClosingSize is the side of the square structuring element used for
	// the final morphological closing. Values below 2 skip the closing.
	ClosingSize int `json:"closing_size"`

	// Backend runs the area filters and the closing. Empty means
	// BackendGo.
	Backend Backend `json:"backend,omitempty"`
}

// DefaultCleanOptions returns the cleaning parameters tuned for phone photos
// of single trees.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		MinRegionArea: 200,
		ClosingSize:   40,
		Backend:       BackendGo,
	}
}

// Clean returns a denoised copy of m. The input is not modified.
//
// An empty result is not an error here; estimators reading the mask report
// ErrEmptyMask themselves. Errors come only from the backend: an unknown
// name, OpenCV missing from the build, or an OpenCV failure.
func Clean(m *Mask, opts CleanOptions) (*Mask, error) {
	switch opts.Backend {
	case "", BackendGo:
		return cleanGo(m, opts), nil
	case BackendOpenCV:
		out, err := cleanOpenCV(m, opts)
		if err != nil {
			return nil, fmt.Errorf("opencv clean failed: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown mask backend %q", opts.Backend)
	}
}

func cleanGo(m *Mask, opts CleanOptions) *Mask {
	out := m.Clone()
	if opts.MinRegionArea > 0 {
		fillSmall(out, false, opts.MinRegionArea)
		fillSmall(out, true, opts.MinRegionArea)
	}
	if opts.ClosingSize > 1 {
		out = Close(out, opts.ClosingSize)
	}
	return out
}

// fillSmall flips every 4-connected component of the given value whose area
// is below minArea. With value=false this fills holes, with value=true it
// removes specks.
func fillSmall(m *Mask, value bool, minArea int) {
	for _, comp := range Components(m, value) {
		if len(comp) >= minArea {
			continue
		}
		for _, idx := range comp {
			m.Pix[idx] = !value
		}
	}
}

// Close applies a morphological closing (dilation then erosion) with a
// size x size square. Pixels outside the image are ignored rather than
// treated as background, so tree pixels touching the border do not erode.
func Close(m *Mask, size int) *Mask {
	// Dilation covers offsets [-lo, hi]; erosion uses the reflected window
	// [-hi, lo] so the closing stays extensive for even sizes.
	lo := size / 2
	hi := size - 1 - lo

	d := sweepRows(m, lo, hi, false)
	d = sweepCols(d, lo, hi, false)
	e := sweepRows(d, hi, lo, true)
	return sweepCols(e, hi, lo, true)
}

// sweepRows runs a 1-D dilation (erode=false) or erosion (erode=true) along
// every row with window [x-before, x+after], using prefix sums.
func sweepRows(m *Mask, before, after int, erode bool) *Mask {
	out := New(m.Width, m.Height)
	prefix := make([]int, m.Width+1)
	for y := 0; y < m.Height; y++ {
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for x, v := range row {
			prefix[x+1] = prefix[x]
			if v {
				prefix[x+1]++
			}
		}
		for x := 0; x < m.Width; x++ {
			a := max(0, x-before)
			b := min(m.Width-1, x+after)
			ones := prefix[b+1] - prefix[a]
			if erode {
				out.Pix[y*m.Width+x] = ones == b-a+1
			} else {
				out.Pix[y*m.Width+x] = ones > 0
			}
		}
	}
	return out
}

// sweepCols is sweepRows along columns.
func sweepCols(m *Mask, before, after int, erode bool) *Mask {
	out := New(m.Width, m.Height)
	prefix := make([]int, m.Height+1)
	for x := 0; x < m.Width; x++ {
		for y := 0; y < m.Height; y++ {
			prefix[y+1] = prefix[y]
			if m.Pix[y*m.Width+x] {
				prefix[y+1]++
			}
		}
		for y := 0; y < m.Height; y++ {
			a := max(0, y-before)
			b := min(m.Height-1, y+after)
			ones := prefix[b+1] - prefix[a]
			if erode {
				out.Pix[y*m.Width+x] = ones == b-a+1
			} else {
				out.Pix[y*m.Width+x] = ones > 0
			}
		}
	}
	return out
}
