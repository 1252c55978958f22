package commitment

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/danielpatrickdp/raist/go-controller/internal/similarity"
)

// #region store-struct
// Store is the append-only, insertion-ordered commitment collection.
// Reads may run concurrently; Add is exclusive.
type Store struct {
	mu      sync.RWMutex
	dim     int
	order   []string
	records map[string]Record
	sealed  bool
	now     func() time.Time
}

// #endregion store-struct

// #region constructor
// NewStore creates an empty store. dim > 0 enforces the vector length on Add.
func NewStore(dim int) *Store {
	return &Store{
		dim:     dim,
		records: make(map[string]Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// #endregion constructor

// #region add
// Add appends rec under id and stamps CreatedAt.
func (s *Store) Add(id string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return fmt.Errorf("add %s: %w", id, ErrSystemLocked)
	}
	if _, ok := s.records[id]; ok {
		return fmt.Errorf("add %s: %w", id, ErrDuplicateID)
	}
	if s.dim > 0 && len(rec.Vector) != s.dim {
		return fmt.Errorf("add %s: got %d values, want %d: %w", id, len(rec.Vector), s.dim, ErrDimensionMismatch)
	}

	rec.ID = id
	rec.Vector = rec.Vector.Clone()
	rec.CreatedAt = s.now()
	s.records[id] = rec
	s.order = append(s.order, id)
	return nil
}

// #endregion add

// #region seal
// Seal permanently rejects further Adds. There is no inverse.
func (s *Store) Seal() {
	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (s *Store) Sealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealed
}

// #endregion seal

// #region reads
// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Dimension returns the enforced vector length (0 = unchecked).
func (s *Store) Dimension() int {
	return s.dim
}

// Get returns a copy of the record stored under id.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	rec.Vector = rec.Vector.Clone()
	return rec, true
}

// Records returns copies of all records in insertion order.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		rec := s.records[id]
		rec.Vector = rec.Vector.Clone()
		out = append(out, rec)
	}
	return out
}

// #endregion reads

// #region extract-relevant
// ExtractRelevant scores every record against query and keeps those with
// relevance >= threshold, most relevant first. Ties keep insertion order.
func (s *Store) ExtractRelevant(query Vector, threshold float64) []Relevant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := []Relevant{}
	for _, id := range s.order {
		rec := s.records[id]
		rel := similarity.Cosine(query, rec.Vector)
		if rel >= threshold {
			hits = append(hits, Relevant{ID: id, Text: rec.Text, Relevance: rel})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Relevance > hits[j].Relevance
	})
	return hits
}

// #endregion extract-relevant

// #region drift
// AverageDriftAgainst returns the mean similarity of all stored vectors to ideal.
// An empty store reports 1.0, the same as a perfectly aligned one.
func (s *Store) AverageDriftAgainst(ideal Vector) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vs := make([][]float64, 0, len(s.order))
	for _, id := range s.order {
		vs = append(vs, s.records[id].Vector)
	}
	return similarity.MeanAgainst(vs, ideal)
}

// #endregion drift
