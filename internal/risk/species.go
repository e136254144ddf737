package risk

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// NeutralSpeciesRisk is the structural risk of species missing from the
// table.
const NeutralSpeciesRisk = 0.5

// Trait weights of the structural risk.
const (
	rootWeight   = 0.5
	woodWeight   = 0.3
	growthWeight = 0.2
)

// maxTableSize caps species table files.
const maxTableSize = 1 << 20

//go:embed species.json
var embeddedSpecies []byte

// SpeciesProfile holds the weakness traits of one species, each in [0, 1].
type SpeciesProfile struct {
	Species    string  `json:"species"`
	CommonName string  `json:"common_name,omitempty"`
	RootRisk   float64 `json:"root_risk"`
	WoodRisk   float64 `json:"wood_risk"`
	GrowthRisk float64 `json:"growth_risk"`
}

// StructuralRisk is the weighted trait sum 0.5*root + 0.3*wood + 0.2*growth.
func (p SpeciesProfile) StructuralRisk() float64 {
	return rootWeight*p.RootRisk + woodWeight*p.WoodRisk + growthWeight*p.GrowthRisk
}

func (p SpeciesProfile) validate() error {
	if p.Species == "" {
		return fmt.Errorf("species name is empty")
	}
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"root_risk", p.RootRisk},
		{"wood_risk", p.WoodRisk},
		{"growth_risk", p.GrowthRisk},
	} {
		if v.value < 0 || v.value > 1 {
			return fmt.Errorf("%s: %s must be in [0, 1], got %v", p.Species, v.name, v.value)
		}
	}
	return nil
}

// SpeciesTable is an immutable lookup of species profiles keyed by
// normalized scientific name.
type SpeciesTable struct {
	profiles map[string]SpeciesProfile
}

// NormalizeSpecies lowercases a species name and trims surrounding space.
func NormalizeSpecies(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewSpeciesTable builds a table from profiles. Names are normalized and
// later duplicates replace earlier ones. The input slice is not retained.
func NewSpeciesTable(profiles []SpeciesProfile) (*SpeciesTable, error) {
	t := &SpeciesTable{profiles: make(map[string]SpeciesProfile, len(profiles))}
	for _, p := range profiles {
		p.Species = NormalizeSpecies(p.Species)
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("invalid species profile: %w", err)
		}
		t.profiles[p.Species] = p
	}
	return t, nil
}

var (
	defaultTable     *SpeciesTable
	defaultTableOnce sync.Once
)

// DefaultSpeciesTable returns the built-in table of structurally weak
// species. The table is shared and read-only.
func DefaultSpeciesTable() *SpeciesTable {
	defaultTableOnce.Do(func() {
		t, err := parseSpeciesTable(embeddedSpecies)
		if err != nil {
			panic(fmt.Sprintf("embedded species table: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// LoadSpeciesTable reads a JSON array of species profiles from path.
//
// # Errors
//
//   - The path does not end in .json
//   - The file cannot be read or exceeds 1 MiB
//   - The JSON is malformed or a trait lies outside [0, 1]
func LoadSpeciesTable(path string) (*SpeciesTable, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".json" {
		return nil, fmt.Errorf("species table must be a .json file, got %q", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open species table: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxTableSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read species table: %w", err)
	}
	if len(data) > maxTableSize {
		return nil, fmt.Errorf("species table exceeds %d bytes", maxTableSize)
	}
	return parseSpeciesTable(data)
}

func parseSpeciesTable(data []byte) (*SpeciesTable, error) {
	var profiles []SpeciesProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse species table: %w", err)
	}
	return NewSpeciesTable(profiles)
}

// Lookup returns the profile for name after normalization.
func (t *SpeciesTable) Lookup(name string) (SpeciesProfile, bool) {
	p, ok := t.profiles[NormalizeSpecies(name)]
	return p, ok
}

// StructuralRisk returns the structural risk of name, or
// NeutralSpeciesRisk when the name is empty or unknown.
func (t *SpeciesTable) StructuralRisk(name string) float64 {
	p, ok := t.Lookup(name)
	if !ok {
		return NeutralSpeciesRisk
	}
	return p.StructuralRisk()
}

// Len returns the number of species in the table.
func (t *SpeciesTable) Len() int {
	return len(t.profiles)
}

// Profiles returns a copy of every profile sorted by species name.
func (t *SpeciesTable) Profiles() []SpeciesProfile {
	out := make([]SpeciesProfile, 0, len(t.profiles))
	for _, p := range t.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Species < out[j].Species
	})
	return out
}
