package engine

import (
	"time"

	"github.com/danielpatrickdp/raist/go-controller/internal/acceptance"
	"github.com/danielpatrickdp/raist/go-controller/internal/audit"
	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
	"github.com/danielpatrickdp/raist/go-controller/internal/lockdown"
	"github.com/danielpatrickdp/raist/go-controller/internal/quorum"
	"github.com/danielpatrickdp/raist/go-controller/internal/retrieval"
)

// DefaultIDPrefix prefixes engine-assigned commitment ids.
const DefaultIDPrefix = "CAUSAL-V-"

// #region phase
// Phase is a step of the evolution cycle.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseAuditCheck Phase = "audit_check"
	PhaseRetrieval  Phase = "retrieval"
	PhaseGeneration Phase = "generation"
	PhaseScoring    Phase = "scoring"
	PhaseQuorum     Phase = "quorum"
	PhasePersisted  Phase = "persisted"
	PhaseLocked     Phase = "locked"
)

// #endregion phase

// #region via
// Via records which path wrote a commitment.
type Via string

const (
	ViaQuorum Via = "quorum"
	ViaAudit  Via = "audit"
)

// #endregion via

// #region config
// Config is fixed for the lifetime of an engine.
type Config struct {
	Dimension          int
	Ideal              commitment.Vector
	AlignmentThreshold float64 // reported as CycleResult.Aligned, acceptance uses its own G threshold
	AuditRhythm        int     // cycles between drift audits
	IDPrefix           string

	Retrieval  retrieval.Config
	Audit      audit.Config
	Acceptance acceptance.Config
	Quorum     quorum.Config
}

// DefaultConfig returns the reference instance.
func DefaultConfig() Config {
	ideal := commitment.Vector{1.0, 1.0, 0.8, 0.7}
	auditCfg := audit.DefaultConfig()
	auditCfg.Ideal = ideal
	return Config{
		Dimension:          len(ideal),
		Ideal:              ideal,
		AlignmentThreshold: 0.85,
		AuditRhythm:        3,
		IDPrefix:           DefaultIDPrefix,
		Retrieval:          retrieval.DefaultConfig(),
		Audit:              auditCfg,
		Acceptance:         acceptance.DefaultConfig(),
		Quorum:             quorum.DefaultConfig(),
	}
}

// #endregion config

// #region cycle-result
// CycleResult is returned by RunCycle.
type CycleResult struct {
	CycleID        string
	ResponseText   string
	NewRecordID    string
	AuditStatus    string        // empty when no audit ran this cycle
	Audit          *audit.Report // nil when no audit ran this cycle
	AlignmentScore float64
	Aligned        bool
	Quorum         *quorum.Result

	// Locked is set when this cycle ended in, or was refused because of, lockdown.
	Locked         bool
	LockdownReason string
}

// #endregion cycle-result

// #region status
// Status is a point-in-time view of an engine.
type Status struct {
	State          lockdown.State
	LockdownReason string    // empty while running
	LockedAt       time.Time // zero while running
	Records        int
	CycleCount     int           // cycles since the last audit
	LastAudit      *audit.Report // nil until an audit has run
}

// #endregion status
