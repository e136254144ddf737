package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultBarWidth is the number of cells in a risk bar.
const DefaultBarWidth = 40

const (
	barCell   = "█"
	barMarker = "▼"
)

// GradientColor returns the color of score on a green to red scale,
// blended in HCL space.
func GradientColor(score float64) colorful.Color {
	t := (clamp(score, MinScore, MaxScore) - MinScore) / (MaxScore - MinScore)
	low := CategoryLow.Color()
	high := CategoryCritical.Color()
	return low.BlendHcl(high, t).Clamped()
}

// MarkerPosition returns the bar cell that marks score.
func MarkerPosition(score float64, width int) int {
	if width <= 1 {
		return 0
	}
	s := clamp(score, MinScore, MaxScore)
	return int((s - MinScore) / (MaxScore - MinScore) * float64(width-1))
}

// cellScore is the score a bar cell stands for.
func cellScore(i, width int) float64 {
	if width <= 1 {
		return MinScore
	}
	return MinScore + float64(i)/float64(width-1)*(MaxScore-MinScore)
}

// RenderBar draws a risk bar of width cells with a marker at score. Cells
// take the color of their category. Without ansi the bar is plain text.
func RenderBar(score float64, width int, ansi bool) string {
	if width <= 0 {
		width = DefaultBarWidth
	}
	marker := MarkerPosition(score, width)

	var b strings.Builder
	for i := 0; i < width; i++ {
		cell := barCell
		if i == marker {
			cell = barMarker
		}
		if !ansi {
			b.WriteString(cell)
			continue
		}
		col := CategoryFor(cellScore(i, width)).Color()
		if i == marker {
			col = GradientColor(score)
		}
		b.WriteString(Colorize(cell, col))
	}
	return b.String()
}

// Colorize wraps s in a 24-bit ANSI foreground color.
func Colorize(s string, c colorful.Color) string {
	r, g, b := c.RGB255()
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm%s\x1b[0m", r, g, b, s)
}

// Direction names the side the top of the tree leans to. Angles within
// half a degree of vertical have no direction.
func Direction(angle float64) string {
	switch {
	case math.Abs(angle) <= 0.5:
		return ""
	case angle > 0:
		return "RIGHT"
	default:
		return "LEFT"
	}
}

// Legend returns one line naming every category and its score range.
func Legend(ansi bool) string {
	parts := make([]string, 0, 4)
	for _, c := range Categories() {
		swatch := "■"
		if ansi {
			swatch = Colorize(swatch, c.Color())
		}
		name := strings.ToUpper(string(c)[:1]) + strings.ToLower(string(c)[1:])
		parts = append(parts, fmt.Sprintf("%s %s (%s)", swatch, name, c.Range()))
	}
	return strings.Join(parts, "   ")
}
