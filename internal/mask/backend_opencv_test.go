//go:build gocv

package mask

import (
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// noisyTrunk is a trunk with a small hole, a large hole, a speck and a gap.
func noisyTrunk() *Mask {
	m := rectMask(120, 200, 40, 10, 80, 90)
	for y := 100; y < 190; y++ {
		for x := 40; x < 80; x++ {
			m.Set(x, y, true)
		}
	}
	for y := 40; y < 45; y++ {
		for x := 50; x < 55; x++ {
			m.Set(x, y, false)
		}
	}
	for y := 120; y < 140; y++ {
		for x := 45; x < 75; x++ {
			m.Set(x, y, false)
		}
	}
	for y := 5; y < 8; y++ {
		for x := 5; x < 8; x++ {
			m.Set(x, y, true)
		}
	}
	return m
}

func TestCleanOpenCV_MatchesGo(t *testing.T) {
	if !OpenCVAvailable() {
		t.Fatal("OpenCVAvailable should be true with the gocv tag")
	}

	for _, opts := range []CleanOptions{
		{MinRegionArea: 200},
		{MinRegionArea: 200, ClosingSize: 9},
		{ClosingSize: 15},
	} {
		want := mustClean(t, noisyTrunk(), opts)
		opts.Backend = BackendOpenCV
		got := mustClean(t, noisyTrunk(), opts)
		if diff := cmp.Diff(want.Pix, got.Pix); diff != "" {
			t.Errorf("%+v: OpenCV result differs from Go (-go +opencv):\n%s", opts, diff)
		}
	}
}

func TestOtsuOpenCV_MatchesGo(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			v := uint8(30)
			if x >= 15 && x < 25 {
				v = 220
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}

	want, err := FromImage(img, LoadOptions{})
	if err != nil {
		t.Fatalf("Go backend: %v", err)
	}
	got, err := FromImage(img, LoadOptions{Backend: BackendOpenCV})
	if err != nil {
		t.Fatalf("OpenCV backend: %v", err)
	}
	if diff := cmp.Diff(want.Pix, got.Pix); diff != "" {
		t.Errorf("OpenCV Otsu mask differs (-go +opencv):\n%s", diff)
	}
}
