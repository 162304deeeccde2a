package structure

import (
	"gonum.org/v1/gonum/stat"
)

// Band is the AlphaFold confidence category for a pLDDT value.
type Band string

const (
	BandVeryHigh  Band = "very_high"
	BandConfident Band = "confident"
	BandLow       Band = "low"
	BandVeryLow   Band = "very_low"
)

// ConfidenceBand buckets a 0-100 pLDDT value.
func ConfidenceBand(plddt float64) Band {
	switch {
	case plddt > 90:
		return BandVeryHigh
	case plddt > 70:
		return BandConfident
	case plddt > 50:
		return BandLow
	default:
		return BandVeryLow
	}
}

// Residue is a per-residue confidence entry.
type Residue struct {
	Chain      string
	Name       string
	Seq        string
	Confidence float64
}

// bfactors returns the B-factor column of every atom.
func (s *Structure) bfactors() []float64 {
	out := make([]float64, len(s.Atoms))
	for i, atom := range s.Atoms {
		out[i] = atom.BFactor
	}
	return out
}

// scale reports the factor that brings the payload onto a 0-100 scale.
// Some predictors write pLDDT as a 0-1 fraction.
func (s *Structure) scale() float64 {
	if stat.Mean(s.bfactors(), nil) <= 1.0 {
		return 100
	}
	return 1
}

// AveragePLDDT is the mean B-factor over all atoms on a 0-100 scale.
func (s *Structure) AveragePLDDT() float64 {
	if len(s.Atoms) == 0 {
		return 0
	}
	return stat.Mean(s.bfactors(), nil) * s.scale()
}

// ResidueConfidence averages the B-factors of each residue of the first model,
// in file order.
func (s *Structure) ResidueConfidence() []Residue {
	if len(s.Atoms) == 0 {
		return nil
	}
	factor := s.scale()
	firstModel := s.Atoms[0].Model

	type acc struct {
		residue Residue
		values  []float64
	}
	var (
		order []string
		byKey = make(map[string]*acc)
	)
	for _, atom := range s.Atoms {
		if atom.Model != firstModel {
			continue
		}
		key := atom.Chain + "|" + atom.ResSeq + "|" + atom.ResName
		entry, ok := byKey[key]
		if !ok {
			entry = &acc{residue: Residue{Chain: atom.Chain, Name: atom.ResName, Seq: atom.ResSeq}}
			byKey[key] = entry
			order = append(order, key)
		}
		entry.values = append(entry.values, atom.BFactor)
	}

	out := make([]Residue, 0, len(order))
	for _, key := range order {
		entry := byKey[key]
		entry.residue.Confidence = stat.Mean(entry.values, nil) * factor
		out = append(out, entry.residue)
	}
	return out
}

// AveragePLDDT parses content and returns its average pLDDT. The boolean is
// false when the payload cannot be parsed or has no atoms, in which case no
// metric should be shown.
func AveragePLDDT(content string, format Format) (float64, bool) {
	s, err := Parse(content, format)
	if err != nil {
		return 0, false
	}
	return s.AveragePLDDT(), true
}
