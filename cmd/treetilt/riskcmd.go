package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/ironsheep/treetilt-mcp/internal/risk"
)

type riskOutput struct {
	AngleDegrees   float64 `json:"angle_degrees"`
	Direction      string  `json:"direction,omitempty"`
	TiltRisk       float64 `json:"tilt_risk"`
	StructuralRisk float64 `json:"structural_risk"`
	Multiplier     float64 `json:"multiplier"`
	risk.Score
}

func runRisk(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("risk", stderr)
	angle := fs.Float64("angle", math.NaN(), "Tilt from vertical in degrees (required)")
	lines := fs.Int("lines", risk.UnknownLineCount, "Trunk lines the tilt was measured from (omit when unknown)")
	configPath := fs.String("config", "", "JSON config file (for species_table_path)")
	asJSON := fs.Bool("json", false, "Print the score as JSON")
	color := fs.Bool("color", false, "Color the risk bar with ANSI escapes")
	var scoring scoringFlags
	scoring.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if math.IsNaN(*angle) {
		fmt.Fprintln(stderr, "risk: -angle is required")
		return 2
	}

	multiplier, err := scoring.resolve()
	if err != nil {
		fmt.Fprintf(stderr, "risk: %v\n", err)
		return 2
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "risk: %v\n", err)
		return 1
	}
	table, err := cfg.SpeciesTable()
	if err != nil {
		fmt.Fprintf(stderr, "risk: %v\n", err)
		return 1
	}

	scorer := risk.NewScorer(table)
	out := riskOutput{
		AngleDegrees:   *angle,
		Direction:      risk.Direction(*angle),
		TiltRisk:       risk.TiltRisk(*angle, *lines),
		StructuralRisk: table.StructuralRisk(scoring.species),
		Multiplier:     multiplier,
		Score:          scorer.Combined(multiplier, *angle, scoring.species, *lines),
	}

	if *asJSON {
		if err := json.NewEncoder(stdout).Encode(out); err != nil {
			fmt.Fprintf(stderr, "risk: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Fprintf(stdout, "Tilt:           %s\n", formatAngle(*angle))
	if scoring.species != "" {
		fmt.Fprintf(stdout, "Species:        %s (structural risk %.2f)\n", scoring.species, out.StructuralRisk)
	}
	writeRisk(stdout, out.Score, *color)
	return 0
}
