package journal

import "time"

// #region outcome
// Outcome is the terminal state of a journaled cycle.
type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomePersisted Outcome = "persisted"
	OutcomeLocked    Outcome = "locked"
	OutcomeFailed    Outcome = "error"
)

// #endregion outcome

// #region rows
// CycleRow is one row of the cycles table.
type CycleRow struct {
	CycleID   string
	Query     string
	LastPhase string
	Alignment float64
	Achieved  bool
	PassCount int
	Outcome   Outcome
	RecordID  string
	Error     string // set when Outcome is OutcomeFailed
	StartedAt time.Time
}

// VoteRow is a single node vote. Audit corrections never produce one.
type VoteRow struct {
	CycleID       string
	Node          string
	Pass          bool
	Criteria      map[string]bool
	NoiseInjected bool
	CreatedAt     time.Time
}

// CommitmentRow mirrors a record appended to the commitment store.
type CommitmentRow struct {
	ID               string
	CycleID          string
	Via              string
	SourceQuery      string
	Text             string
	Vector           []float64
	ProducerIdentity string
	CreatedAt        time.Time
}

// AuditRow is one drift audit.
type AuditRow struct {
	CycleID      string
	Status       string
	Drift        float64
	Samples      int
	CorrectionID string
	CreatedAt    time.Time
}

// LockdownRow is the lockdown event. There is at most one.
type LockdownRow struct {
	CycleID string
	Reason  string
	At      time.Time
}

// #endregion rows
