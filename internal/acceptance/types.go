package acceptance

// #region criterion-name
// CriterionName identifies one gate of the five-criteria acceptance rule.
type CriterionName string

const (
	CriterionGood       CriterionName = "G"
	CriterionObligatory CriterionName = "O"
	CriterionKnown      CriterionName = "K"
	CriterionDefinitive CriterionName = "D"
	CriterionEvident    CriterionName = "E"
)

// Label returns the long name of the criterion.
func (c CriterionName) Label() string {
	switch c {
	case CriterionGood:
		return "good"
	case CriterionObligatory:
		return "obligatory"
	case CriterionKnown:
		return "known"
	case CriterionDefinitive:
		return "definitive"
	case CriterionEvident:
		return "evident"
	}
	return string(c)
}

// #endregion criterion-name

// #region config
// Config holds the rule thresholds and the per-node noise model.
type Config struct {
	GoodThreshold       float64 // alignment score must exceed this
	ObligatoryThreshold float64 // vector[1] must exceed this
	KnownThreshold      float64 // vector[0] must exceed this
	EvidentThreshold    float64 // vector[2] must exceed this

	// Noise maps a node identity to the probability that it reports K=false
	// regardless of the vector.
	Noise map[string]float64
	Seed  uint64
}

// DefaultConfig returns the reference rule: Beta is noisy at 0.15.
func DefaultConfig() Config {
	return Config{
		GoodThreshold:       0.90,
		ObligatoryThreshold: 0.85,
		KnownThreshold:      0.85,
		EvidentThreshold:    0.80,
		Noise:               map[string]float64{"Beta": 0.15},
		Seed:                1,
	}
}

// #endregion config

// #region verdict
// Criterion is one evaluated gate.
type Criterion struct {
	Name CriterionName
	Pass bool
}

// Verdict is a single node's evaluation of a commitment.
type Verdict struct {
	Node          string
	Criteria      []Criterion // always G, O, K, D, E in that order
	Passed        bool
	NoiseInjected bool // K was forced false by the node's noise draw
}

// Criterion looks up a gate by name.
func (v Verdict) Criterion(name CriterionName) (Criterion, bool) {
	for _, c := range v.Criteria {
		if c.Name == name {
			return c, true
		}
	}
	return Criterion{}, false
}

// Failed lists the names of failing gates.
func (v Verdict) Failed() []CriterionName {
	var out []CriterionName
	for _, c := range v.Criteria {
		if !c.Pass {
			out = append(out, c.Name)
		}
	}
	return out
}

// #endregion verdict
