package acceptance

import (
	"hash/fnv"
	"math/rand/v2"
	"sync"
)

// #region source
// Source yields uniform draws in [0, 1).
type Source interface {
	Float64() float64
}

type lockedSource struct {
	mu  sync.Mutex
	src Source
}

func (l *lockedSource) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Float64()
}

// NodeSource derives a node's private generator from the engine seed and the
// node name, so nodes never share a stream.
func NodeSource(seed uint64, node string) Source {
	h := fnv.New64a()
	h.Write([]byte(node))
	return rand.New(rand.NewPCG(seed, h.Sum64()))
}

// #endregion source

// #region validator
// Validator applies the five-criteria acceptance rule for any node.
type Validator struct {
	config  Config
	sources map[string]*lockedSource
}

// NewValidator creates a validator with one seeded source per noisy node.
func NewValidator(config Config) *Validator {
	v := &Validator{
		config:  config,
		sources: make(map[string]*lockedSource, len(config.Noise)),
	}
	for node := range config.Noise {
		v.sources[node] = &lockedSource{src: NodeSource(config.Seed, node)}
	}
	return v
}

// WithSource replaces the noise source of node. Intended for tests.
func (v *Validator) WithSource(node string, src Source) *Validator {
	v.sources[node] = &lockedSource{src: src}
	return v
}

// Validate evaluates vector and its alignment score on behalf of node.
// Every gate is computed so the full audit trail is available.
func (v *Validator) Validate(vector []float64, alignmentScore float64, node string) Verdict {
	noisy := v.noiseFires(node)

	g := alignmentScore > v.config.GoodThreshold
	o := at(vector, 1) > v.config.ObligatoryThreshold
	k := !noisy && at(vector, 0) > v.config.KnownThreshold
	d := g && o && k
	e := d && at(vector, 2) > v.config.EvidentThreshold

	return Verdict{
		Node: node,
		Criteria: []Criterion{
			{Name: CriterionGood, Pass: g},
			{Name: CriterionObligatory, Pass: o},
			{Name: CriterionKnown, Pass: k},
			{Name: CriterionDefinitive, Pass: d},
			{Name: CriterionEvident, Pass: e},
		},
		Passed:        g && o && k && d && e,
		NoiseInjected: noisy,
	}
}

// #endregion validator

// #region helpers
func (v *Validator) noiseFires(node string) bool {
	p := v.config.Noise[node]
	if p <= 0 {
		return false
	}
	src, ok := v.sources[node]
	if !ok {
		return false
	}
	return src.Float64() < p
}

// at reads position i, treating missing positions as failing values.
func at(vector []float64, i int) float64 {
	if i >= len(vector) {
		return -1
	}
	return vector[i]
}

// #endregion helpers
