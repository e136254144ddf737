package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/ironsheep/treetilt-mcp/internal/risk"
)

const rule = "============================================================"

func writeReport(w io.Writer, a analysis, ansi bool) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%s\n", a.Path)
	fmt.Fprintln(w, rule)

	if a.Error != "" {
		fmt.Fprintf(w, "Error:          %s\n\n", a.Error)
		return
	}

	r := a.Tilt
	fmt.Fprintf(w, "Tilt:           %s\n", formatAngle(r.AngleDegrees))
	fmt.Fprintf(w, "Classification: %s (%s)\n", r.Classification, r.Status)
	if r.Sweep.Description != "" {
		fmt.Fprintf(w, "Shape:          %s\n", r.Sweep.Description)
	}
	if r.Validated {
		verdict := "valid"
		if !r.IsValid {
			verdict = "below threshold"
		}
		fmt.Fprintf(w, "Validation:     accuracy %.2f (%s)\n", r.AccuracyScore, verdict)
	}
	if n, ok := r.LineCount(); ok {
		fmt.Fprintf(w, "Trunk lines:    %d\n", n)
	} else {
		fmt.Fprintf(w, "Trunk lines:    none, principal axis only\n")
	}
	fmt.Fprintf(w, "Attempts:       %d\n", r.Attempts)

	if a.Risk != nil {
		writeRisk(w, *a.Risk, ansi)
	}
	fmt.Fprintln(w)
}

func formatAngle(angle float64) string {
	s := fmt.Sprintf("%.2f° from vertical", math.Abs(angle))
	if d := risk.Direction(angle); d != "" {
		s += " leaning " + d
	}
	return s
}

// writeRisk prints the score with a gradient bar, a marker line under it
// and the category legend.
func writeRisk(w io.Writer, s risk.Score, ansi bool) {
	label := s.Category.Label()
	if ansi {
		label = risk.Colorize(label, s.Category.Color())
	}
	fmt.Fprintf(w, "Risk:           %.1f / 40  %s\n\n", s.Value, label)

	pos := risk.MarkerPosition(s.Value, risk.DefaultBarWidth)
	fmt.Fprintf(w, "   1%s40\n", strings.Repeat(" ", risk.DefaultBarWidth-3))
	fmt.Fprintf(w, "   %s\n", risk.RenderBar(s.Value, risk.DefaultBarWidth, ansi))
	fmt.Fprintf(w, "   %s%.1f\n\n", strings.Repeat(" ", pos), s.Value)
	fmt.Fprintf(w, "%s\n", risk.Legend(ansi))
	fmt.Fprintf(w, "%s\n", s.Category.Interpretation())
}
