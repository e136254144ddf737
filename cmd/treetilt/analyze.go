package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/treetilt-mcp/internal/mask"
	"github.com/ironsheep/treetilt-mcp/internal/risk"
	"github.com/ironsheep/treetilt-mcp/internal/tilt"
)

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// scoringFlags are the risk inputs shared by analyze and risk.
type scoringFlags struct {
	species        string
	multiplier     float64
	identification float64
}

func (f *scoringFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.species, "species", "", "Scientific species name")
	fs.Float64Var(&f.multiplier, "multiplier", -1, "Species multiplier (overrides -identification)")
	fs.Float64Var(&f.identification, "identification", -1, "Species identification confidence 0-1")
}

func (f *scoringFlags) resolve() (float64, error) {
	switch {
	case f.multiplier >= 0:
		return f.multiplier, nil
	case f.identification > 1:
		return 0, fmt.Errorf("-identification must be between 0 and 1, got %v", f.identification)
	case f.identification >= 0:
		return risk.IdentificationMultiplier(f.identification), nil
	default:
		return 1.0, nil
	}
}

// analysis is the outcome for one file in a batch.
type analysis struct {
	RunID string       `json:"run_id"`
	Path  string       `json:"path"`
	Tilt  *tilt.Result `json:"tilt,omitempty"`
	Risk  *risk.Score  `json:"risk,omitempty"`
	Error string       `json:"error,omitempty"`
}

func runAnalyze(ctx context.Context, args []string, stdout, stderr io.Writer, logger *slog.Logger) int {
	fs := newFlagSet("analyze", stderr)
	configPath := fs.String("config", "", "JSON config file")
	workers := fs.Int("workers", 0, "Files analyzed in parallel (default from config)")
	asJSON := fs.Bool("json", false, "Print one JSON object per file")
	color := fs.Bool("color", false, "Color the risk bar with ANSI escapes")
	var scoring scoringFlags
	scoring.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintln(stderr, "analyze: no files given")
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}
	opts, err := cfg.TiltOptions()
	if err != nil {
		logger.Error("invalid analysis options", "error", err)
		return 1
	}
	table, err := cfg.SpeciesTable()
	if err != nil {
		logger.Error("failed to load species table", "error", err)
		return 1
	}
	multiplier, err := scoring.resolve()
	if err != nil {
		fmt.Fprintf(stderr, "analyze: %v\n", err)
		return 2
	}
	limit := *workers
	if limit <= 0 {
		limit = cfg.GetWorkers()
	}

	runID := uuid.New().String()
	log := logger.With("run", runID)
	controller := tilt.NewController(opts, log)
	scorer := risk.NewScorer(table)
	loadOpts := cfg.LoadOptions()

	log.Info("batch started", "files", len(paths), "workers", limit)

	results := make([]analysis, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			results[i] = analyzeFile(gctx, controller, scorer, loadOpts, path, scoring.species, multiplier)
			results[i].RunID = runID
			if results[i].Error != "" {
				log.Warn("analysis failed", "path", path, "error", results[i].Error)
			}
			// Cancellation is the only error that stops the batch.
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("batch interrupted", "error", err)
		return 1
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
		if *asJSON {
			if err := json.NewEncoder(stdout).Encode(r); err != nil {
				log.Error("failed to write result", "error", err)
				return 1
			}
			continue
		}
		writeReport(stdout, r, *color)
	}

	log.Info("batch complete", "files", len(paths), "failed", failed)
	if failed > 0 {
		return 1
	}
	return 0
}

// analyzeFile never returns an error; failures are recorded in the result
// so one bad file does not stop the batch.
func analyzeFile(ctx context.Context, c *tilt.Controller, s *risk.Scorer, opts mask.LoadOptions,
	path, species string, multiplier float64) analysis {
	out := analysis{Path: path}

	m, err := mask.Load(path, opts)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	res, err := c.Run(ctx, m)
	if err != nil {
		if errors.Is(err, mask.ErrEmptyMask) {
			out.Error = "mask has no tree pixels after cleaning"
		} else {
			out.Error = err.Error()
		}
		return out
	}
	out.Tilt = res

	lines, ok := res.LineCount()
	if !ok {
		lines = risk.UnknownLineCount
	}
	sc := s.Combined(multiplier, res.AngleDegrees, species, lines)
	out.Risk = &sc
	return out
}
