package commitment

import (
	"errors"
	"time"
)

// #region errors
var (
	// ErrDimensionMismatch is returned when a vector does not have the configured length.
	ErrDimensionMismatch = errors.New("commitment vector dimension mismatch")
	// ErrDuplicateID is returned by Add when the id is already stored.
	ErrDuplicateID = errors.New("duplicate commitment id")
	// ErrSystemLocked is returned for every mutation attempted after lockdown.
	ErrSystemLocked = errors.New("system locked")
)
// #endregion errors

// #region vector
// Vector is a commitment fingerprint across fixed criterion axes
// (Transparency, Integrity, Stability, Respect in the reference layout).
// The engine only ever addresses it positionally.
type Vector []float64

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// #endregion vector

// #region record
// Record is a stored commitment. Immutable once added.
type Record struct {
	ID               string
	SourceQuery      string
	Text             string
	Vector           Vector
	CreatedAt        time.Time
	ProducerIdentity string
}

// #endregion record

// #region relevant
// Relevant is one hit of ExtractRelevant.
type Relevant struct {
	ID        string
	Text      string
	Relevance float64
}

// #endregion relevant
