// Package risk turns a trunk tilt into an advisory fall-risk score.
//
// The tilt risk maps |angle| onto a score in [1, 40] in four bands: up to
// 10 degrees is low, up to 20 moderate, up to 30 high and beyond that
// critical. A score is then scaled by the structural weakness of the
// species and by how confidently the species was identified:
//
//	scorer := risk.NewScorer(nil)
//	s := scorer.Combined(risk.IdentificationMultiplier(0.9), 12.5, "Salix babylonica", 8)
//	fmt.Println(s.Value, s.Category.Label())
//
// Species tables are immutable once built. The default table is embedded
// in the binary; LoadSpeciesTable reads a replacement from JSON.
package risk
