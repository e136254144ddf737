package mask

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// ErrEmptyMask is returned when a mask has no foreground pixels.
var ErrEmptyMask = errors.New("mask has no foreground pixels")

// Mask is a binary tree silhouette.
type Mask struct {
	Width  int
	Height int

	// Pix holds Width*Height values in row-major order.
	Pix []bool
}

// New returns an all-background mask of the given size.
func New(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Pix:    make([]bool, width*height),
	}
}

// FromBytes builds a mask from a row-major byte grid. Any non-zero byte is
// foreground, so both 0/1 and 0/255 grids are accepted.
func FromBytes(width, height int, data []byte) (*Mask, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid mask size %dx%d", width, height)
	}
	if len(data) != width*height {
		return nil, fmt.Errorf("mask data length %d does not match %dx%d", len(data), width, height)
	}
	m := New(width, height)
	for i, v := range data {
		m.Pix[i] = v != 0
	}
	return m, nil
}

// FromBools builds a mask from rows of booleans. All rows must have the same
// length.
func FromBools(rows [][]bool) (*Mask, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("mask rows are empty")
	}
	width := len(rows[0])
	m := New(width, len(rows))
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d columns, want %d", y, len(row), width)
		}
		copy(m.Pix[y*width:(y+1)*width], row)
	}
	return m, nil
}

// At reports whether (x, y) is a tree pixel. Out-of-range coordinates are
// background.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x]
}

// Set marks (x, y). Out-of-range coordinates are ignored.
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = v
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Empty reports whether the mask has no foreground pixels.
func (m *Mask) Empty() bool {
	for _, v := range m.Pix {
		if v {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	c := New(m.Width, m.Height)
	copy(c.Pix, m.Pix)
	return c
}

// RowCount returns the number of foreground pixels in row y.
func (m *Mask) RowCount(y int) int {
	n := 0
	for _, v := range m.Pix[y*m.Width : (y+1)*m.Width] {
		if v {
			n++
		}
	}
	return n
}

// RowExtent returns the leftmost and rightmost foreground columns of row y.
// ok is false when the row is empty.
func (m *Mask) RowExtent(y int) (left, right int, ok bool) {
	row := m.Pix[y*m.Width : (y+1)*m.Width]
	left = -1
	for x, v := range row {
		if v {
			if left < 0 {
				left = x
			}
			right = x
		}
	}
	return left, right, left >= 0
}

// KeepRowsFrom returns a copy with every row above start cleared.
func (m *Mask) KeepRowsFrom(start int) *Mask {
	c := m.Clone()
	if start > m.Height {
		start = m.Height
	}
	for i := 0; i < start*m.Width; i++ {
		c.Pix[i] = false
	}
	return c
}

// Gray renders the mask as an 8-bit image with tree pixels at 255.
func (m *Mask) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Pix[y*m.Width+x] {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}
