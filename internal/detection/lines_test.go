package detection

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ironsheep/treetilt-mcp/internal/mask"
)

// barMask returns a mask with foreground columns [x1,x2) on rows [y1,y2).
func barMask(width, height, x1, y1, x2, y2 int) *mask.Mask {
	m := mask.New(width, height)
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			m.Set(x, y, true)
		}
	}
	return m
}

func steepSegments(segs []Segment) []Segment {
	var out []Segment
	for _, s := range segs {
		if s.AngleFromHorizontal > 80 {
			out = append(out, s)
		}
	}
	return out
}

func TestNewSegment(t *testing.T) {
	tests := []struct {
		name      string
		seg       Segment
		wantLen   float64
		wantAngle float64
	}{
		{"vertical", NewSegment(5, 0, 5, 10), 10, 90},
		{"horizontal", NewSegment(0, 3, 4, 3), 4, 0},
		{"diagonal down-left", NewSegment(4, 0, 0, 4), math.Sqrt(32), 45},
		{"3-4-5", NewSegment(0, 0, 3, -4), 5, math.Atan2(4, 3) * 180 / math.Pi},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.seg.Length-tt.wantLen) > 1e-9 {
				t.Errorf("Length: got %v, want %v", tt.seg.Length, tt.wantLen)
			}
			if math.Abs(tt.seg.AngleFromHorizontal-tt.wantAngle) > 1e-9 {
				t.Errorf("AngleFromHorizontal: got %v, want %v", tt.seg.AngleFromHorizontal, tt.wantAngle)
			}
		})
	}
}

func TestSegment_XAt(t *testing.T) {
	s := NewSegment(10, 0, 20, 10)
	x, ok := s.XAt(30)
	if !ok || x != 40 {
		t.Errorf("XAt(30): got (%v, %v), want (40, true)", x, ok)
	}

	if _, ok := NewSegment(0, 5, 10, 5).XAt(0); ok {
		t.Error("horizontal segment should not cross other rows")
	}
}

func TestHoughDetector_VerticalBar(t *testing.T) {
	m := barMask(61, 200, 25, 0, 35, 200)
	segs, err := NewHoughDetector().Detect(m, Params{Threshold: 30, MinLength: 30, MaxGap: 20})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(segs) == 0 {
		t.Fatal("no segments detected")
	}
	strongest := segs[0]
	if strongest.AngleFromHorizontal < 85 || strongest.Length < 190 {
		t.Errorf("strongest segment: got %+v, want a full-height vertical", strongest)
	}
	if x, ok := strongest.XAt(199); !ok || x < 24 || x > 35 {
		t.Errorf("strongest segment crosses bottom at %v, want inside the bar", x)
	}
	for _, s := range segs {
		if s.Length < 30 {
			t.Errorf("segment shorter than MinLength: %+v", s)
		}
	}
}

func TestHoughDetector_MaxGap(t *testing.T) {
	// One-pixel line with a 30 row hole.
	m := barMask(41, 130, 20, 0, 21, 50)
	for y := 80; y < 130; y++ {
		m.Set(20, y, true)
	}

	tests := []struct {
		name    string
		maxGap  int
		wantLen []float64
	}{
		{"gap splits", 20, []float64{49, 49}},
		{"gap bridged", 40, []float64{129}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs, err := NewHoughDetector().Detect(m, Params{Threshold: 30, MinLength: 30, MaxGap: tt.maxGap})
			if err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			var got []float64
			for _, s := range steepSegments(segs) {
				got = append(got, s.Length)
			}
			if diff := cmp.Diff(tt.wantLen, got); diff != "" {
				t.Errorf("segment lengths mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHoughDetector_MinLength(t *testing.T) {
	m := barMask(41, 130, 20, 0, 21, 50)
	segs, err := NewHoughDetector().Detect(m, Params{Threshold: 30, MinLength: 60, MaxGap: 5})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(steepSegments(segs)) != 0 {
		t.Errorf("expected no segments longer than 60, got %+v", segs)
	}
}

func TestHoughDetector_Horizontal(t *testing.T) {
	m := barMask(100, 50, 0, 20, 100, 21)
	segs, err := NewHoughDetector().Detect(m, Params{Threshold: 30, MinLength: 30, MaxGap: 5})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(segs) == 0 {
		t.Fatal("no segments detected")
	}
	if segs[0].AngleFromHorizontal > 1 {
		t.Errorf("strongest segment angle: got %v, want ~0", segs[0].AngleFromHorizontal)
	}
}

func TestHoughDetector_SymmetricMask(t *testing.T) {
	// Trapezoid widening toward the bottom, symmetric about the centerline.
	for _, width := range []int{80, 81} {
		m := mask.New(width, 120)
		cx := float64(width-1) / 2
		for y := 0; y < 120; y++ {
			half := 6 + float64(y)/8
			for x := 0; x < width; x++ {
				if math.Abs(float64(x)-cx) <= half {
					m.Set(x, y, true)
				}
			}
		}

		segs, err := NewHoughDetector().Detect(m, Params{Threshold: 20, MinLength: 20, MaxGap: 10})
		if err != nil {
			t.Fatalf("width %d: Detect failed: %v", width, err)
		}

		var sum, weight float64
		for _, s := range segs {
			if s.AngleFromHorizontal <= 30 {
				continue
			}
			x, ok := s.XAt(119)
			if !ok {
				continue
			}
			sum += s.Length * x
			weight += s.Length
		}
		if weight == 0 {
			t.Fatalf("width %d: no steep segments", width)
		}
		if mean := sum / weight; math.Abs(mean-cx) > 1e-6 {
			t.Errorf("width %d: weighted bottom x = %v, want %v", width, mean, cx)
		}
	}
}

func TestHoughDetector_Empty(t *testing.T) {
	segs, err := NewHoughDetector().Detect(mask.New(20, 20), Params{Threshold: 10, MinLength: 5, MaxGap: 2})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(segs) != 0 {
		t.Errorf("expected no segments, got %d", len(segs))
	}
}

func TestTrigTables_Mirror(t *testing.T) {
	cosT, sinT := trigTables()
	for i := 1; i < numAngles; i++ {
		if cosT[numAngles-i] != -cosT[i] || sinT[numAngles-i] != sinT[i] {
			t.Fatalf("tables not mirrored at %d", i)
		}
	}
	if cosT[0] != 1 || sinT[0] != 0 {
		t.Errorf("theta 0: got (%v, %v)", cosT[0], sinT[0])
	}
}

func TestCapPeaks(t *testing.T) {
	peaks := []peak{
		{votes: 5}, {votes: 9}, {votes: 7}, {votes: 7}, {votes: 7}, {votes: 1},
	}

	got := capPeaks(peaks, 2)
	var votes []int
	for _, p := range got {
		votes = append(votes, p.votes)
	}
	// The tie at 7 straddles the cap and is kept whole.
	if diff := cmp.Diff([]int{9, 7, 7, 7}, votes); diff != "" {
		t.Errorf("capPeaks mismatch (-want +got):\n%s", diff)
	}

	if got := capPeaks([]peak{{votes: 1}}, 5); len(got) != 1 {
		t.Errorf("short list: got %d peaks, want 1", len(got))
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", DetectorHough} {
		d, err := New(name)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", name, err)
		}
		if _, ok := d.(*HoughDetector); !ok {
			t.Errorf("New(%q): got %T, want *HoughDetector", name, d)
		}
	}

	if _, err := New("canny"); err == nil {
		t.Error("expected error for unknown detector")
	}
}
