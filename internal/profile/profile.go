package profile

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ironsheep/treetilt-mcp/internal/mask"
)

// ErrNoStableTrunk is returned when no row of the mask qualifies as part
// of a stable trunk band.
var ErrNoStableTrunk = errors.New("no stable trunk region detected")

// Defaults for Options.
const (
	DefaultWindow         = 301
	DefaultOrder          = 3
	DefaultSlopeThreshold = 0.5
)

// medianTolerance keeps rows whose smoothed width only differs from the
// median by rounding noise out of the band.
const medianTolerance = 1e-9

// Options configures Analyze. Zero fields take their defaults.
type Options struct {
	Window         int
	Order          int
	SlopeThreshold float64
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.Order <= 0 {
		o.Order = DefaultOrder
	}
	if o.SlopeThreshold <= 0 {
		o.SlopeThreshold = DefaultSlopeThreshold
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Band is the stable trunk region: rows StartRow through EndRow and
// columns MinX through MaxX, all inclusive.
type Band struct {
	StartRow int `json:"start_row"`
	EndRow   int `json:"end_row"`
	MinX     int `json:"min_x"`
	MaxX     int `json:"max_x"`
}

// Height returns the number of rows in the band.
func (b Band) Height() int { return b.EndRow - b.StartRow + 1 }

// Width returns the number of columns in the band.
func (b Band) Width() int { return b.MaxX - b.MinX + 1 }

// Profile is the width profile of a mask and the trunk band found in it.
type Profile struct {
	Widths   []float64 `json:"-"`
	Smoothed []float64 `json:"-"`
	Slope    []float64 `json:"-"`

	// Median is the median smoothed width over all rows.
	Median float64 `json:"median_width"`

	// StableRows counts rows that passed the slope and width tests.
	StableRows int  `json:"stable_rows"`
	Band       Band `json:"band"`
}

// Widths returns, for every row, the distance between the leftmost and
// rightmost foreground pixel. Empty rows have width zero.
func Widths(m *mask.Mask) []float64 {
	w := make([]float64, m.Height)
	for y := range w {
		if left, right, ok := m.RowExtent(y); ok {
			w[y] = float64(right - left)
		}
	}
	return w
}

// Analyze finds the trunk band of m. Row widths are smoothed and
// differentiated; a row is stable when its smoothed width changes by less
// than SlopeThreshold per row, is narrower than the median and is not
// zero. The band spans the first through last stable row, and its columns
// cover every foreground pixel in those rows.
func Analyze(m *mask.Mask, opts Options) (*Profile, error) {
	opts = opts.withDefaults()

	p := &Profile{Widths: Widths(m)}
	smoothed, err := SavitzkyGolay(p.Widths, opts.Window, opts.Order)
	if err != nil {
		return nil, err
	}
	p.Smoothed = smoothed
	p.Slope = absAll(Gradient(smoothed))

	if len(smoothed) == 0 {
		return nil, ErrNoStableTrunk
	}
	p.Median = median(smoothed)

	start, end := -1, -1
	for y, w := range smoothed {
		if p.Slope[y] < opts.SlopeThreshold && w < p.Median-medianTolerance && w > 0 {
			if start < 0 {
				start = y
			}
			end = y
			p.StableRows++
		}
	}
	if start < 0 {
		return nil, ErrNoStableTrunk
	}

	minX, maxX := m.Width, -1
	for y := start; y <= end; y++ {
		if left, right, ok := m.RowExtent(y); ok {
			minX = min(minX, left)
			maxX = max(maxX, right)
		}
	}
	if maxX < 0 {
		return nil, fmt.Errorf("%w: band rows %d-%d hold no pixels", ErrNoStableTrunk, start, end)
	}
	p.Band = Band{StartRow: start, EndRow: end, MinX: minX, MaxX: maxX}

	opts.Logger.Debug("trunk band detected",
		"start_row", start,
		"end_row", end,
		"min_x", minX,
		"max_x", maxX,
		"median_width", p.Median)
	return p, nil
}

// median averages the two middle values of an even-length slice.
func median(v []float64) float64 {
	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	n := len(sorted)
	return (sorted[(n-1)/2] + sorted[n/2]) / 2
}
