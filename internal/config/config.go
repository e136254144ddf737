package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/ironsheep/treetilt-mcp/internal/detection"
	"github.com/ironsheep/treetilt-mcp/internal/mask"
	"github.com/ironsheep/treetilt-mcp/internal/orientation"
	"github.com/ironsheep/treetilt-mcp/internal/risk"
	"github.com/ironsheep/treetilt-mcp/internal/tilt"
)

// maxFileSize caps config files at 1 MiB.
const maxFileSize = 1 << 20

// maxAttemptsLimit bounds max_attempts so a typo cannot stall a batch.
const maxAttemptsLimit = 20

// Config holds the analysis parameters. Every field is optional; the Get*
// methods fall back to defaults for fields left out of the JSON, so
// partial files are safe.
type Config struct {
	// Detection controller
	MaxAttempts  *int           `json:"max_attempts,omitempty"`
	Attempts     []tilt.Attempt `json:"attempts,omitempty"`
	Estimator    *string        `json:"estimator,omitempty"`
	LineDetector *string        `json:"line_detector,omitempty"`

	// Orientation estimators
	PCARotationCandidates []float64 `json:"pca_rotation_candidates,omitempty"`
	PCAWeight             *float64  `json:"pca_weight,omitempty"`

	// Sweep classifier and validator
	SweepBandCount        *int     `json:"sweep_band_count,omitempty"`
	SweepTiltThresholdDeg *float64 `json:"sweep_tilt_threshold_deg,omitempty"`
	ValidationThreshold   *float64 `json:"validation_threshold,omitempty"`

	// Mask loading and cleaning
	AlphaThreshold *int    `json:"alpha_threshold,omitempty"`
	GrayThreshold  *int    `json:"gray_threshold,omitempty"`
	MaxDimension   *int    `json:"max_dimension,omitempty"`
	MinRegionArea  *int    `json:"min_region_area,omitempty"`
	ClosingSize    *int    `json:"closing_size,omitempty"`
	MaskBackend    *string `json:"mask_backend,omitempty"`

	// Risk scoring
	SpeciesTablePath *string `json:"species_table_path,omitempty"`

	// Batch processing
	Workers *int `json:"workers,omitempty"`
}

// Default returns a Config with every field unset.
func Default() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file and validates it.
//
// # Errors
//
//   - The path does not have a .json extension
//   - The file cannot be read or is larger than 1 MiB
//   - The JSON is malformed or holds unknown keys
//   - A value is out of range
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a JSON config document.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that every set value is in range.
func (c *Config) Validate() error {
	if c.MaxAttempts != nil && (*c.MaxAttempts < 1 || *c.MaxAttempts > maxAttemptsLimit) {
		return fmt.Errorf("max_attempts must be between 1 and %d, got %d", maxAttemptsLimit, *c.MaxAttempts)
	}
	for i, a := range c.Attempts {
		if err := validateAttempt(a); err != nil {
			return fmt.Errorf("attempts[%d]: %w", i, err)
		}
	}
	if c.Estimator != nil {
		switch tilt.Estimator(*c.Estimator) {
		case tilt.EstimatorCombined, tilt.EstimatorLines:
		default:
			return fmt.Errorf("estimator must be %q or %q, got %q", tilt.EstimatorCombined, tilt.EstimatorLines, *c.Estimator)
		}
	}
	if c.LineDetector != nil {
		switch *c.LineDetector {
		case detection.DetectorHough, detection.DetectorOpenCV:
		default:
			return fmt.Errorf("line_detector must be %q or %q, got %q", detection.DetectorHough, detection.DetectorOpenCV, *c.LineDetector)
		}
	}
	if c.MaskBackend != nil {
		switch mask.Backend(*c.MaskBackend) {
		case mask.BackendGo, mask.BackendOpenCV:
		default:
			return fmt.Errorf("mask_backend must be %q or %q, got %q", mask.BackendGo, mask.BackendOpenCV, *c.MaskBackend)
		}
	}

	for _, r := range c.PCARotationCandidates {
		if r < -90 || r > 90 {
			return fmt.Errorf("pca_rotation_candidates must be within [-90, 90], got %v", r)
		}
	}
	if c.PCAWeight != nil && (*c.PCAWeight < 0 || *c.PCAWeight > 1) {
		return fmt.Errorf("pca_weight must be between 0 and 1, got %v", *c.PCAWeight)
	}

	if c.SweepBandCount != nil && *c.SweepBandCount < tilt.MinSweepBands {
		return fmt.Errorf("sweep_band_count must be at least %d, got %d", tilt.MinSweepBands, *c.SweepBandCount)
	}
	if c.SweepTiltThresholdDeg != nil && (*c.SweepTiltThresholdDeg <= 0 || *c.SweepTiltThresholdDeg >= 90) {
		return fmt.Errorf("sweep_tilt_threshold_deg must be between 0 and 90, got %v", *c.SweepTiltThresholdDeg)
	}
	if c.ValidationThreshold != nil && (*c.ValidationThreshold <= 0 || *c.ValidationThreshold >= 1) {
		return fmt.Errorf("validation_threshold must be between 0 and 1, got %v", *c.ValidationThreshold)
	}

	for _, f := range []struct {
		name  string
		value *int
	}{
		{"alpha_threshold", c.AlphaThreshold},
		{"gray_threshold", c.GrayThreshold},
	} {
		if f.value != nil && (*f.value < 0 || *f.value > 255) {
			return fmt.Errorf("%s must be between 0 and 255, got %d", f.name, *f.value)
		}
	}
	for _, f := range []struct {
		name  string
		value *int
	}{
		{"max_dimension", c.MaxDimension},
		{"min_region_area", c.MinRegionArea},
		{"closing_size", c.ClosingSize},
	} {
		if f.value != nil && *f.value < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", f.name, *f.value)
		}
	}

	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	return nil
}

func validateAttempt(a tilt.Attempt) error {
	switch {
	case a.Threshold < 1:
		return fmt.Errorf("threshold must be positive, got %d", a.Threshold)
	case a.MinLengthFraction <= 0 || a.MinLengthFraction > 1:
		return fmt.Errorf("min_length_fraction must be in (0, 1], got %v", a.MinLengthFraction)
	case a.MinLengthFloor < 1:
		return fmt.Errorf("min_length_floor must be positive, got %d", a.MinLengthFloor)
	case a.MaxGap < 0:
		return fmt.Errorf("max_gap must be non-negative, got %d", a.MaxGap)
	case a.TrunkFraction <= 0 || a.TrunkFraction > 1:
		return fmt.Errorf("trunk_fraction must be in (0, 1], got %v", a.TrunkFraction)
	}
	return nil
}

// GetMaxAttempts returns max_attempts or the default of 3.
func (c *Config) GetMaxAttempts() int {
	if c.MaxAttempts == nil {
		return tilt.DefaultMaxAttempts
	}
	return *c.MaxAttempts
}

// GetAttempts returns the attempt schedule or the default schedule.
func (c *Config) GetAttempts() []tilt.Attempt {
	if len(c.Attempts) == 0 {
		return tilt.DefaultAttempts()
	}
	return append([]tilt.Attempt(nil), c.Attempts...)
}

// GetEstimator returns the estimator or "combined".
func (c *Config) GetEstimator() tilt.Estimator {
	if c.Estimator == nil {
		return tilt.EstimatorCombined
	}
	return tilt.Estimator(*c.Estimator)
}

// GetLineDetector returns the line detector name or "hough".
func (c *Config) GetLineDetector() string {
	if c.LineDetector == nil {
		return detection.DetectorHough
	}
	return *c.LineDetector
}

// GetPCARotationCandidates returns the PCA pre-rotations or {0}.
func (c *Config) GetPCARotationCandidates() []float64 {
	if len(c.PCARotationCandidates) == 0 {
		return []float64{0}
	}
	return append([]float64(nil), c.PCARotationCandidates...)
}

// GetPCAWeight returns pca_weight or the default of 0.6.
func (c *Config) GetPCAWeight() float64 {
	if c.PCAWeight == nil {
		return orientation.DefaultPCAWeight
	}
	return *c.PCAWeight
}

// GetSweepBandCount returns sweep_band_count or the default of 10.
func (c *Config) GetSweepBandCount() int {
	if c.SweepBandCount == nil {
		return tilt.DefaultBandCount
	}
	return *c.SweepBandCount
}

// GetSweepTiltThresholdDeg returns sweep_tilt_threshold_deg or 7.
func (c *Config) GetSweepTiltThresholdDeg() float64 {
	if c.SweepTiltThresholdDeg == nil {
		return tilt.DefaultSweepTiltThreshold
	}
	return *c.SweepTiltThresholdDeg
}

// GetValidationThreshold returns validation_threshold or 0.4.
func (c *Config) GetValidationThreshold() float64 {
	if c.ValidationThreshold == nil {
		return tilt.DefaultValidationThreshold
	}
	return *c.ValidationThreshold
}

// GetAlphaThreshold returns alpha_threshold or 127.
func (c *Config) GetAlphaThreshold() uint8 {
	if c.AlphaThreshold == nil {
		return mask.DefaultLoadOptions().AlphaThreshold
	}
	return uint8(*c.AlphaThreshold)
}

// GetGrayThreshold returns gray_threshold or 0, which selects Otsu.
func (c *Config) GetGrayThreshold() uint8 {
	if c.GrayThreshold == nil {
		return 0
	}
	return uint8(*c.GrayThreshold)
}

// GetMaxDimension returns max_dimension or 0 (no downscaling).
func (c *Config) GetMaxDimension() int {
	if c.MaxDimension == nil {
		return 0
	}
	return *c.MaxDimension
}

// GetMinRegionArea returns min_region_area or 200.
func (c *Config) GetMinRegionArea() int {
	if c.MinRegionArea == nil {
		return mask.DefaultCleanOptions().MinRegionArea
	}
	return *c.MinRegionArea
}

// GetClosingSize returns closing_size or 40.
func (c *Config) GetClosingSize() int {
	if c.ClosingSize == nil {
		return mask.DefaultCleanOptions().ClosingSize
	}
	return *c.ClosingSize
}

// GetMaskBackend returns mask_backend or "go".
func (c *Config) GetMaskBackend() mask.Backend {
	if c.MaskBackend == nil {
		return mask.BackendGo
	}
	return mask.Backend(*c.MaskBackend)
}

// GetSpeciesTablePath returns species_table_path or "" for the built-in
// table.
func (c *Config) GetSpeciesTablePath() string {
	if c.SpeciesTablePath == nil {
		return ""
	}
	return *c.SpeciesTablePath
}

// GetWorkers returns workers or GOMAXPROCS.
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return runtime.GOMAXPROCS(0)
	}
	return *c.Workers
}

// LoadOptions returns the mask loading options.
func (c *Config) LoadOptions() mask.LoadOptions {
	return mask.LoadOptions{
		AlphaThreshold: c.GetAlphaThreshold(),
		GrayThreshold:  c.GetGrayThreshold(),
		MaxDimension:   c.GetMaxDimension(),
		Backend:        c.GetMaskBackend(),
	}
}

// CleanOptions returns the mask cleaning options.
func (c *Config) CleanOptions() mask.CleanOptions {
	return mask.CleanOptions{
		MinRegionArea: c.GetMinRegionArea(),
		ClosingSize:   c.GetClosingSize(),
		Backend:       c.GetMaskBackend(),
	}
}

// TiltOptions converts the config to detection controller options.
// It fails when the configured line detector or mask backend is not
// available in this build.
func (c *Config) TiltOptions() (tilt.Options, error) {
	if c.GetMaskBackend() == mask.BackendOpenCV && !mask.OpenCVAvailable() {
		return tilt.Options{}, mask.ErrOpenCVUnavailable
	}
	det, err := detection.New(c.GetLineDetector())
	if err != nil {
		return tilt.Options{}, err
	}
	return tilt.Options{
		MaxAttempts:  c.GetMaxAttempts(),
		Attempts:     c.GetAttempts(),
		PCARotations: c.GetPCARotationCandidates(),
		PCAWeight:    c.GetPCAWeight(),
		Estimator:    c.GetEstimator(),
		Detector:     det,
		Clean:        c.CleanOptions(),
		Sweep: tilt.SweepOptions{
			Bands:         c.GetSweepBandCount(),
			TiltThreshold: c.GetSweepTiltThresholdDeg(),
		},
		Validation: tilt.ValidateOptions{Threshold: c.GetValidationThreshold()},
	}, nil
}

// SpeciesTable returns the configured species table, or the built-in
// table when no path is set.
func (c *Config) SpeciesTable() (*risk.SpeciesTable, error) {
	path := c.GetSpeciesTablePath()
	if path == "" {
		return risk.DefaultSpeciesTable(), nil
	}
	return risk.LoadSpeciesTable(path)
}
