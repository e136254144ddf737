package risk

import (
	"github.com/lucasb-eyer/go-colorful"
)

// Category is the band a risk score falls in.
type Category string

const (
	CategoryLow      Category = "LOW"
	CategoryModerate Category = "MODERATE"
	CategoryHigh     Category = "HIGH"
	CategoryCritical Category = "CRITICAL"
)

// CategoryFor returns the category of score: up to 10 is low, up to 20
// moderate, up to 30 high, anything above critical.
func CategoryFor(score float64) Category {
	switch {
	case score <= 10:
		return CategoryLow
	case score <= 20:
		return CategoryModerate
	case score <= 30:
		return CategoryHigh
	default:
		return CategoryCritical
	}
}

// Label returns the display label, e.g. "HIGH RISK".
func (c Category) Label() string {
	return string(c) + " RISK"
}

// Range returns the score range of the category as shown in legends.
func (c Category) Range() string {
	switch c {
	case CategoryLow:
		return "1-10"
	case CategoryModerate:
		return "11-20"
	case CategoryHigh:
		return "21-30"
	default:
		return "31-40"
	}
}

// ColorName returns the plain color name of the category.
func (c Category) ColorName() string {
	switch c {
	case CategoryLow:
		return "green"
	case CategoryModerate:
		return "yellow"
	case CategoryHigh:
		return "orange"
	default:
		return "red"
	}
}

var categoryColors = map[Category]colorful.Color{
	CategoryLow:      {R: 0.18, G: 0.80, B: 0.25},
	CategoryModerate: {R: 0.98, G: 0.84, B: 0.13},
	CategoryHigh:     {R: 1.00, G: 0.53, B: 0.00},
	CategoryCritical: {R: 0.90, G: 0.12, B: 0.12},
}

// Color returns the display color of the category.
func (c Category) Color() colorful.Color {
	if col, ok := categoryColors[c]; ok {
		return col
	}
	return categoryColors[CategoryCritical]
}

// Interpretation returns a one-line reading of the category.
func (c Category) Interpretation() string {
	switch c {
	case CategoryLow:
		return "Tree appears stable with minimal lean."
	case CategoryModerate:
		return "Tree has a noticeable lean."
	case CategoryHigh:
		return "Tree has a significant lean and may be a concern."
	default:
		return "Tree has a severe lean and an elevated fall risk."
	}
}

// Categories lists every category from lowest to highest.
func Categories() []Category {
	return []Category{CategoryLow, CategoryModerate, CategoryHigh, CategoryCritical}
}
