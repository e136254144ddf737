package tilt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ironsheep/treetilt-mcp/internal/detection"
	"github.com/ironsheep/treetilt-mcp/internal/mask"
	"github.com/ironsheep/treetilt-mcp/internal/orientation"
)

// ErrDetectionFailed is returned when every attempt ended without an
// orientation estimate.
var ErrDetectionFailed = errors.New("tilt detection failed")

// Estimator selects which estimators feed the result.
type Estimator string

const (
	// EstimatorCombined blends principal-axis and line estimates and falls
	// back to the principal axis when no lines are found.
	EstimatorCombined Estimator = "combined"

	// EstimatorLines uses line intersection alone. Attempts that find no
	// lines are retried and then fail.
	EstimatorLines Estimator = "lines"
)

// DefaultMaxAttempts is the number of detection attempts before the best
// result is returned as is.
const DefaultMaxAttempts = 3

// Attempt holds the line detection parameters of one attempt.
type Attempt struct {
	Threshold int `json:"threshold"`

	// MinLengthFraction of the image height, but never below
	// MinLengthFloor pixels.
	MinLengthFraction float64 `json:"min_length_fraction"`
	MinLengthFloor    int     `json:"min_length_floor"`

	MaxGap        int     `json:"max_gap"`
	TrunkFraction float64 `json:"trunk_fraction"`
}

// LineParams resolves the attempt for an image of the given height.
func (a Attempt) LineParams(height int) orientation.LineParams {
	return orientation.LineParams{
		Params: detection.Params{
			Threshold: a.Threshold,
			MinLength: max(a.MinLengthFloor, int(a.MinLengthFraction*float64(height))),
			MaxGap:    a.MaxGap,
		},
		TrunkFraction: a.TrunkFraction,
	}
}

// DefaultAttempts returns the relaxation schedule: each attempt accepts
// weaker and shorter lines with wider gaps over a smaller trunk region.
func DefaultAttempts() []Attempt {
	return []Attempt{
		{Threshold: 30, MinLengthFraction: 0.15, MinLengthFloor: 30, MaxGap: 20, TrunkFraction: 0.5},
		{Threshold: 20, MinLengthFraction: 0.10, MinLengthFloor: 20, MaxGap: 30, TrunkFraction: 0.4},
		{Threshold: 15, MinLengthFraction: 0.08, MinLengthFloor: 15, MaxGap: 40, TrunkFraction: 0.3},
	}
}

// Options configures a Controller. Start from DefaultOptions: NewController
// fills in zero MaxAttempts, Attempts, Estimator and Detector, but a zero
// Clean, PCAWeight, Sweep or Validation is taken as given.
type Options struct {
	MaxAttempts int

	// Attempts is the parameter schedule. Attempts past its end reuse the
	// last entry.
	Attempts []Attempt

	// PCARotations are the principal-axis pre-rotations. Empty means {0}.
	PCARotations []float64

	// PCAWeight is the principal-axis share of a combined angle. Zero is a
	// valid weight: the line estimate alone sets the angle whenever lines
	// are found.
	PCAWeight float64

	Estimator Estimator
	Detector  detection.LineDetector

	// Clean is applied once per Run. The zero value skips both area
	// filters and the closing, for masks that are already clean.
	Clean mask.CleanOptions

	// Sweep and Validation treat zero fields as their package defaults.
	Sweep      SweepOptions
	Validation ValidateOptions
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:  DefaultMaxAttempts,
		Attempts:     DefaultAttempts(),
		PCARotations: []float64{0},
		PCAWeight:    orientation.DefaultPCAWeight,
		Estimator:    EstimatorCombined,
		Clean:        mask.DefaultCleanOptions(),
		Sweep:        SweepOptions{Bands: DefaultBandCount, TiltThreshold: DefaultSweepTiltThreshold},
		Validation:   ValidateOptions{Threshold: DefaultValidationThreshold},
	}
}

// Controller runs the detection pipeline on raw masks. It holds no
// per-run state, so one Controller may serve concurrent Run calls.
type Controller struct {
	opts   Options
	pca    *orientation.PrincipalAxis
	lines  *orientation.LineIntersection
	logger *slog.Logger
}

// NewController creates a controller. A nil logger uses slog.Default().
func NewController(opts Options, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if len(opts.Attempts) == 0 {
		opts.Attempts = DefaultAttempts()
	}
	if opts.Estimator == "" {
		opts.Estimator = EstimatorCombined
	}
	if opts.Detector == nil {
		opts.Detector = detection.NewHoughDetector()
	}
	return &Controller{
		opts:   opts,
		pca:    &orientation.PrincipalAxis{Rotations: opts.PCARotations, Logger: logger},
		lines:  &orientation.LineIntersection{Detector: opts.Detector, Logger: logger},
		logger: logger,
	}
}

// Options returns the resolved options.
func (c *Controller) Options() Options {
	return c.opts
}

func (c *Controller) attempt(n int) Attempt {
	if n > len(c.opts.Attempts) {
		return c.opts.Attempts[len(c.opts.Attempts)-1]
	}
	return c.opts.Attempts[n-1]
}

// Run cleans raw once, then makes up to MaxAttempts detection attempts with
// progressively relaxed line parameters.
//
// Natural sweeps and whole-trunk tilts are returned from the first attempt
// that yields an angle. Minor tilts are validated; an attempt that passes
// is returned at once, otherwise the most accurate attempt is returned with
// IsValid false.
//
// # Errors
//
//   - Clean errors, such as mask.ErrOpenCVUnavailable
//   - mask.ErrEmptyMask when nothing survives cleaning
//   - ErrDetectionFailed when no attempt produced an angle
//   - ctx.Err() when ctx is cancelled between attempts
func (c *Controller) Run(ctx context.Context, raw *mask.Mask) (*Result, error) {
	cleaned, err := mask.Clean(raw, c.opts.Clean)
	if err != nil {
		return nil, err
	}
	if cleaned.Empty() {
		return nil, fmt.Errorf("cleaned mask: %w", mask.ErrEmptyMask)
	}

	var pcaEst *orientation.PCAEstimate
	if c.opts.Estimator == EstimatorCombined {
		est, err := c.pca.Estimate(cleaned)
		if err != nil {
			c.logger.Warn("principal axis estimate failed", "error", err)
		} else {
			pcaEst = &est
		}
	}

	sweep := ClassifySweep(cleaned, c.opts.Sweep)
	threshold := c.opts.Sweep.tiltThreshold()

	var (
		best    *Result
		lastErr error
	)
	for n := 1; n <= c.opts.MaxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		params := c.attempt(n).LineParams(cleaned.Height)
		log := c.logger.With(
			"attempt", n,
			"threshold", params.Threshold,
			"min_length", params.MinLength,
			"max_gap", params.MaxGap,
			"trunk_fraction", params.TrunkFraction)

		var lineEst *orientation.LineEstimate
		est, err := c.lines.Estimate(cleaned, params)
		switch {
		case err == nil:
			lineEst = &est
		case errors.Is(err, orientation.ErrNoLinesDetected):
			lastErr = err
			if c.opts.Estimator == EstimatorLines {
				log.Debug("no trunk lines, retrying")
				continue
			}
		default:
			return nil, err
		}

		var pcaPart, linePart *orientation.Estimate
		if pcaEst != nil {
			pcaPart = &pcaEst.Estimate
		}
		if lineEst != nil {
			linePart = &lineEst.Estimate
		}
		combined, err := orientation.Combine(pcaPart, linePart, c.opts.PCAWeight)
		if err != nil {
			lastErr = err
			log.Debug("no estimate, retrying")
			continue
		}

		r := &Result{
			AngleDegrees:   combined.AngleDegrees,
			Classification: sweep.Classification,
			Status:         StatusFor(sweep.Classification, combined.AngleDegrees, threshold),
			IsValid:        true,
			Attempts:       n,
			Source:         combined.Source,
			PCA:            pcaEst,
			Lines:          lineEst,
			Sweep:          sweep,
			TrunkStart:     params.TrunkStart(cleaned.Height),
		}
		if lineEst != nil {
			r.TrunkLineCount = lineEst.LineCount()
		}
		r.TrunkCenterX = c.trunkCenter(cleaned, r.TrunkStart, lineEst)

		if sweep.Classification != MinorTilt {
			log.Debug("attempt classified",
				"angle", r.AngleDegrees,
				"lines", r.TrunkLineCount,
				"classification", r.Classification)
			return c.finish(r), nil
		}

		line := LineFromAngle(r.TrunkCenterX, r.AngleDegrees, cleaned.Width, cleaned.Height)
		v := ValidateLine(cleaned, line, r.TrunkStart, c.opts.Validation)
		r.Validation = &v
		r.Validated = true
		r.AccuracyScore = v.Accuracy
		r.IsValid = v.Valid

		log.Debug("attempt validated",
			"angle", r.AngleDegrees,
			"lines", r.TrunkLineCount,
			"accuracy", v.Accuracy,
			"classification", r.Classification)

		if v.Valid {
			return c.finish(r), nil
		}
		if best == nil || r.AccuracyScore > best.AccuracyScore {
			best = r
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrDetectionFailed, c.opts.MaxAttempts, lastErr)
	}
	best.Attempts = c.opts.MaxAttempts
	return c.finish(best), nil
}

// trunkCenter picks the bottom point of the validation line: the measured
// trunk center, then the weighted line crossing, then the centroid.
func (c *Controller) trunkCenter(m *mask.Mask, trunkStart int, lines *orientation.LineEstimate) float64 {
	if x, ok := TrunkCenter(m, trunkStart); ok {
		return x
	}
	if lines != nil {
		return lines.WeightedBottomX
	}
	if x, ok := Centroid(m, trunkStart); ok {
		return x
	}
	x, _ := Centroid(m, 0)
	return x
}

func (c *Controller) finish(r *Result) *Result {
	c.logger.Info("tilt detection complete",
		"angle", r.AngleDegrees,
		"classification", r.Classification,
		"status", r.Status,
		"valid", r.IsValid,
		"accuracy", r.AccuracyScore,
		"lines", r.TrunkLineCount,
		"attempts", r.Attempts)
	return r
}
