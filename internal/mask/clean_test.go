package mask

import (
	"errors"
	"testing"
)

func mustClean(t *testing.T, m *Mask, opts CleanOptions) *Mask {
	t.Helper()
	got, err := Clean(m, opts)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	return got
}

func TestClean_FillsSmallHoles(t *testing.T) {
	m := rectMask(100, 100, 20, 20, 80, 80)
	// 5x5 hole, well under the 200 px threshold
	for y := 40; y < 45; y++ {
		for x := 40; x < 45; x++ {
			m.Set(x, y, false)
		}
	}

	got := mustClean(t, m, CleanOptions{MinRegionArea: 200})
	if !got.At(42, 42) {
		t.Error("small hole was not filled")
	}
	if m.At(42, 42) {
		t.Error("Clean modified its input")
	}
}

func TestClean_KeepsLargeHoles(t *testing.T) {
	m := rectMask(100, 100, 10, 10, 90, 90)
	// 20x20 hole = 400 px
	for y := 40; y < 60; y++ {
		for x := 40; x < 60; x++ {
			m.Set(x, y, false)
		}
	}

	got := mustClean(t, m, CleanOptions{MinRegionArea: 200})
	if got.At(50, 50) {
		t.Error("large hole should survive cleaning")
	}
}

func TestClean_RemovesSpecks(t *testing.T) {
	m := rectMask(100, 100, 40, 10, 60, 90)
	// 3x3 speck far from the trunk
	for y := 5; y < 8; y++ {
		for x := 5; x < 8; x++ {
			m.Set(x, y, true)
		}
	}

	got := mustClean(t, m, CleanOptions{MinRegionArea: 200})
	if got.At(6, 6) {
		t.Error("speck was not removed")
	}
	if !got.At(50, 50) {
		t.Error("trunk was removed")
	}
}

func TestClean_ClosingBridgesGap(t *testing.T) {
	// Trunk split by a 10-row gap
	m := rectMask(100, 200, 40, 10, 60, 90)
	for y := 100; y < 190; y++ {
		for x := 40; x < 60; x++ {
			m.Set(x, y, true)
		}
	}

	got := mustClean(t, m, DefaultCleanOptions())
	for y := 90; y < 100; y++ {
		if !got.At(50, y) {
			t.Fatalf("gap at row %d was not bridged", y)
		}
	}
}

func TestClean_EmptyStaysEmpty(t *testing.T) {
	got := mustClean(t, New(50, 50), DefaultCleanOptions())
	if !got.Empty() {
		t.Error("cleaning an empty mask produced foreground")
	}
}

func TestClose_Extensive(t *testing.T) {
	m := New(60, 60)
	// Irregular pattern touching the borders
	for y := 0; y < 60; y += 3 {
		for x := (y / 3) % 4; x < 60; x += 7 {
			m.Set(x, y, true)
		}
	}

	for _, size := range []int{2, 3, 8, 11} {
		c := Close(m, size)
		for i, v := range m.Pix {
			if v && !c.Pix[i] {
				t.Fatalf("size %d: closing removed pixel %d", size, i)
			}
		}
	}
}

func TestClose_BorderDoesNotErode(t *testing.T) {
	m := rectMask(30, 30, 0, 0, 30, 30)
	c := Close(m, 9)
	if c.Count() != m.Count() {
		t.Errorf("full mask changed under closing: %d -> %d", m.Count(), c.Count())
	}
}

func TestClean_UnknownBackend(t *testing.T) {
	_, err := Clean(New(10, 10), CleanOptions{Backend: "vips"})
	if err == nil || errors.Is(err, ErrOpenCVUnavailable) {
		t.Errorf("got %v, want an unknown backend error", err)
	}
}
