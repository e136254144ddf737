package risk

import (
	"math"
)

// Score bounds.
const (
	MinScore = 1.0
	MaxScore = 40.0
)

// LowLineCount is the trunk line count below which the tilt risk carries
// an uncertainty penalty.
const LowLineCount = 5

const lowLinePenalty = 2.0

// UnknownLineCount marks a tilt that was not measured from trunk lines.
// Any negative count is treated the same way.
const UnknownLineCount = -1

// Score is a bounded fall-risk score.
type Score struct {
	Value    float64  `json:"score"`
	Category Category `json:"category"`
}

// NewScore clamps value into [MinScore, MaxScore], rounds it to one decimal
// and attaches its category.
func NewScore(value float64) Score {
	v := round1(clamp(value, MinScore, MaxScore))
	return Score{Value: v, Category: CategoryFor(v)}
}

// TiltRisk maps a tilt angle to a score in [1, 40]. Each 10 degree band of
// |angle| maps linearly onto its own score band and the top band saturates
// at 40 from 35 degrees. A known lineCount below LowLineCount adds a
// penalty of 2. Pass UnknownLineCount when no lines were measured.
func TiltRisk(angle float64, lineCount int) float64 {
	a := math.Abs(angle)

	var r float64
	switch {
	case a <= 10:
		r = 1 + a/10*9
	case a <= 20:
		r = 11 + (a-10)/10*9
	case a <= 30:
		r = 21 + (a-20)/10*9
	default:
		r = 31 + (a-30)/5*9
	}
	r = math.Min(r, MaxScore)

	if lineCount >= 0 && lineCount < LowLineCount {
		r = math.Min(r+lowLinePenalty, MaxScore)
	}
	return round1(r)
}

// Scorer combines tilt risk with species structure. It is safe for
// concurrent use.
type Scorer struct {
	species *SpeciesTable
}

// NewScorer creates a scorer. A nil table uses DefaultSpeciesTable.
func NewScorer(table *SpeciesTable) *Scorer {
	if table == nil {
		table = DefaultSpeciesTable()
	}
	return &Scorer{species: table}
}

// Species returns the table the scorer looks species up in.
func (s *Scorer) Species() *SpeciesTable {
	return s.species
}

// Tilt scores the angle alone.
func (s *Scorer) Tilt(angle float64, lineCount int) Score {
	return NewScore(TiltRisk(angle, lineCount))
}

// Combined scales the tilt risk by the species structure and the
// identification multiplier:
//
//	tilt * (0.8 + 0.4*structural) * multiplier
//
// clamped into [1, 40]. An unknown or empty species counts as 0.5.
func (s *Scorer) Combined(multiplier, angle float64, species string, lineCount int) Score {
	structural := s.species.StructuralRisk(species)
	return NewScore(TiltRisk(angle, lineCount) * (0.8 + 0.4*structural) * multiplier)
}

// IdentificationMultiplier converts a species identification confidence
// into a score multiplier. Weak identifications shrink the score.
func IdentificationMultiplier(confidence float64) float64 {
	switch {
	case confidence > 0.8:
		return 1.0
	case confidence > 0.5:
		return 0.75
	default:
		return 0.45
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
