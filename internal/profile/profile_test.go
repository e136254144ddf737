package profile

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ironsheep/treetilt-mcp/internal/mask"
)

// crownAndTrunk builds a 200x600 tree: a full-width crown over rows 0-199
// and a trunk centered at x=100 that widens from 20 to 60 pixels.
func crownAndTrunk(t *testing.T) *mask.Mask {
	t.Helper()
	m := mask.New(200, 600)
	for y := 0; y < 600; y++ {
		left, right := 0, 199
		if y >= 200 {
			hw := 10 + (y-200)/20
			left, right = 100-hw, 100+hw-1
		}
		for x := left; x <= right; x++ {
			m.Set(x, y, true)
		}
	}
	return m
}

func TestWidths(t *testing.T) {
	m := mask.New(10, 4)
	m.Set(2, 0, true)
	m.Set(7, 0, true)
	m.Set(5, 1, true)
	for x := 0; x < 10; x++ {
		m.Set(x, 3, true)
	}
	want := []float64{5, 0, 0, 9}
	if diff := cmp.Diff(want, Widths(m)); diff != "" {
		t.Errorf("Widths mismatch (-want +got):\n%s", diff)
	}
}

func TestSavitzkyGolayKeepsCubics(t *testing.T) {
	y := make([]float64, 50)
	for i := range y {
		x := float64(i)
		y[i] = 2 + 0.5*x - 0.01*x*x + 0.0001*x*x*x
	}
	got, err := SavitzkyGolay(y, 11, 3)
	if err != nil {
		t.Fatalf("SavitzkyGolay failed: %v", err)
	}
	if diff := cmp.Diff(y, got, cmpopts.EquateApprox(0, 1e-8)); diff != "" {
		t.Errorf("cubic not preserved (-want +got):\n%s", diff)
	}
}

func TestSavitzkyGolaySmoothsNoise(t *testing.T) {
	y := make([]float64, 101)
	for i := range y {
		if i%2 == 0 {
			y[i] = 1
		} else {
			y[i] = -1
		}
	}
	got, err := SavitzkyGolay(y, 21, 3)
	if err != nil {
		t.Fatalf("SavitzkyGolay failed: %v", err)
	}
	for i := 10; i < 91; i++ {
		if math.Abs(got[i]) > 0.2 {
			t.Fatalf("interior sample %d = %v, want near 0", i, got[i])
		}
	}
}

func TestSavitzkyGolayWindow(t *testing.T) {
	t.Run("clipped to input", func(t *testing.T) {
		y := []float64{1, 2, 3, 4, 5, 6, 7, 8}
		got, err := SavitzkyGolay(y, DefaultWindow, DefaultOrder)
		if err != nil {
			t.Fatalf("SavitzkyGolay failed: %v", err)
		}
		if diff := cmp.Diff(y, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
			t.Errorf("line not preserved (-want +got):\n%s", diff)
		}
	})

	t.Run("too short to fit", func(t *testing.T) {
		y := []float64{3, 1, 4}
		got, err := SavitzkyGolay(y, DefaultWindow, DefaultOrder)
		if err != nil {
			t.Fatalf("SavitzkyGolay failed: %v", err)
		}
		if diff := cmp.Diff(y, got); diff != "" {
			t.Errorf("short input changed (-want +got):\n%s", diff)
		}
		got[0] = 99
		if y[0] != 3 {
			t.Error("output aliases input")
		}
	})

	t.Run("negative order", func(t *testing.T) {
		if _, err := SavitzkyGolay([]float64{1, 2, 3}, 3, -1); err == nil {
			t.Error("expected error for negative order")
		}
	})
}

func TestGradient(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"empty", nil, []float64{}},
		{"single", []float64{4}, []float64{0}},
		{"pair", []float64{1, 3}, []float64{2, 2}},
		{"quadratic", []float64{1, 2, 4, 7}, []float64{1, 1.5, 2.5, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Gradient(tt.in)); diff != "" {
				t.Errorf("Gradient mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAnalyzeCrownAndTrunk(t *testing.T) {
	p, err := Analyze(crownAndTrunk(t), Options{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	b := p.Band
	if b.StartRow < 200 || b.EndRow >= 600 || b.StartRow > b.EndRow {
		t.Errorf("band rows %d-%d, want inside the trunk rows 200-599", b.StartRow, b.EndRow)
	}
	if b.MinX < 70 || b.MaxX > 129 || b.MinX > b.MaxX {
		t.Errorf("band columns %d-%d, want inside the trunk columns 70-129", b.MinX, b.MaxX)
	}
	if p.Median <= 19 || p.Median >= 199 {
		t.Errorf("median width %v, want between trunk and crown widths", p.Median)
	}
	if p.StableRows == 0 || p.StableRows > b.Height() {
		t.Errorf("StableRows = %d with band height %d", p.StableRows, b.Height())
	}
	for y := b.StartRow; y <= b.EndRow; y++ {
		if p.Smoothed[y] <= 0 {
			t.Fatalf("row %d in band has smoothed width %v", y, p.Smoothed[y])
		}
	}
}

func TestAnalyzeNoStableTrunk(t *testing.T) {
	uniform := mask.New(60, 300)
	for y := 0; y < 300; y++ {
		for x := 10; x < 50; x++ {
			uniform.Set(x, y, true)
		}
	}

	tests := []struct {
		name string
		m    *mask.Mask
	}{
		{"empty", mask.New(50, 50)},
		{"uniform width", uniform},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Analyze(tt.m, Options{})
			if !errors.Is(err, ErrNoStableTrunk) {
				t.Errorf("expected ErrNoStableTrunk, got %v", err)
			}
		})
	}
}

func TestBandSize(t *testing.T) {
	b := Band{StartRow: 10, EndRow: 19, MinX: 5, MaxX: 7}
	if b.Height() != 10 || b.Width() != 3 {
		t.Errorf("Height, Width = %d, %d, want 10, 3", b.Height(), b.Width())
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want float64
	}{
		{"single", []float64{7}, 7},
		{"odd", []float64{9, 1, 5}, 5},
		{"even", []float64{4, 1, 3, 2}, 2.5},
		{"even two", []float64{10, 20}, 15},
		{"even repeated", []float64{5, 5, 1, 9, 9, 9}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := append([]float64(nil), tt.in...)
			if got := median(in); got != tt.want {
				t.Errorf("median(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if diff := cmp.Diff(tt.in, in); diff != "" {
				t.Errorf("median modified its input (-want +got):\n%s", diff)
			}
		})
	}
}
