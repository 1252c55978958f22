package engine

import (
	"github.com/danielpatrickdp/raist/go-controller/internal/audit"
	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
	"github.com/danielpatrickdp/raist/go-controller/internal/lockdown"
	"github.com/danielpatrickdp/raist/go-controller/internal/quorum"
)

// #region observer
// Observer receives per-cycle events. Observers are informational: they
// cannot influence the cycle and must not block for long.
type Observer interface {
	CycleStarted(cycleID, query string)
	PhaseEntered(cycleID string, phase Phase)
	Scored(cycleID string, alignment float64)
	QuorumDecided(cycleID string, res quorum.Result)
	Persisted(cycleID string, rec commitment.Record, via Via)
	Audited(cycleID string, rep audit.Report)
	LockedDown(cycleID string, ev lockdown.Event)
	CycleFailed(cycleID string, err error)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) CycleStarted(string, string)              {}
func (NopObserver) PhaseEntered(string, Phase)               {}
func (NopObserver) Scored(string, float64)                   {}
func (NopObserver) QuorumDecided(string, quorum.Result)      {}
func (NopObserver) Persisted(string, commitment.Record, Via) {}
func (NopObserver) Audited(string, audit.Report)             {}
func (NopObserver) LockedDown(string, lockdown.Event)        {}
func (NopObserver) CycleFailed(string, error)                {}

// #endregion observer

// #region multi-observer
// MultiObserver fans events out in order.
type MultiObserver []Observer

func (m MultiObserver) CycleStarted(id, query string) {
	for _, o := range m {
		o.CycleStarted(id, query)
	}
}

func (m MultiObserver) PhaseEntered(id string, phase Phase) {
	for _, o := range m {
		o.PhaseEntered(id, phase)
	}
}

func (m MultiObserver) Scored(id string, alignment float64) {
	for _, o := range m {
		o.Scored(id, alignment)
	}
}

func (m MultiObserver) QuorumDecided(id string, res quorum.Result) {
	for _, o := range m {
		o.QuorumDecided(id, res)
	}
}

func (m MultiObserver) Persisted(id string, rec commitment.Record, via Via) {
	for _, o := range m {
		o.Persisted(id, rec, via)
	}
}

func (m MultiObserver) Audited(id string, rep audit.Report) {
	for _, o := range m {
		o.Audited(id, rep)
	}
}

func (m MultiObserver) LockedDown(id string, ev lockdown.Event) {
	for _, o := range m {
		o.LockedDown(id, ev)
	}
}

func (m MultiObserver) CycleFailed(id string, err error) {
	for _, o := range m {
		o.CycleFailed(id, err)
	}
}

// #endregion multi-observer
