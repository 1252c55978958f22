// Package metrics exports engine activity as Prometheus metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/danielpatrickdp/raist/go-controller/internal/audit"
	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
	"github.com/danielpatrickdp/raist/go-controller/internal/engine"
	"github.com/danielpatrickdp/raist/go-controller/internal/lockdown"
	"github.com/danielpatrickdp/raist/go-controller/internal/quorum"
)

const namespace = "raist"

// #region metrics-struct
// Metrics implements engine.Observer on top of a Prometheus registerer.
type Metrics struct {
	engine.NopObserver

	CyclesStarted  prometheus.Counter
	CyclesFinished *prometheus.CounterVec
	CycleDuration  prometheus.Histogram
	Alignment      prometheus.Histogram
	Votes          *prometheus.CounterVec
	Commitments    *prometheus.CounterVec
	Audits         *prometheus.CounterVec
	Drift          prometheus.Gauge
	Locked         prometheus.Gauge

	mu      sync.Mutex
	started map[string]time.Time
	now     func() time.Time
}

var _ engine.Observer = (*Metrics)(nil)

// #endregion metrics-struct

// #region constructor
// New registers every collector on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CyclesStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycles_started_total",
			Help:      "Evolution cycles started.",
		}),
		CyclesFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycles_finished_total",
			Help:      "Evolution cycles finished, by outcome.",
		}, []string{"outcome"}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycle_duration_seconds",
			Help:      "Time from cycle start to persist, lockdown or failure.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Alignment: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "alignment_score",
			Help:      "Cosine similarity of produced commitments to the ideal vector.",
			Buckets:   []float64{-0.5, 0, 0.25, 0.5, 0.7, 0.8, 0.85, 0.9, 0.95, 0.99, 1},
		}),
		Votes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quorum",
			Name:      "votes_total",
			Help:      "Validator votes, by node and result.",
		}, []string{"node", "result"}),
		Commitments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "commitments_persisted_total",
			Help:      "Commitments appended, by write path.",
		}, []string{"via"}),
		Audits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "runs_total",
			Help:      "Drift audits, by status.",
		}, []string{"status"}),
		Drift: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "drift",
			Help:      "Mean alignment of all stored commitments at the last measured audit.",
		}),
		Locked: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "locked",
			Help:      "1 once the engine has entered lockdown.",
		}),
		started: make(map[string]time.Time),
		now:     time.Now,
	}
}

// #endregion constructor

// #region observer
func (m *Metrics) CycleStarted(cycleID, _ string) {
	m.CyclesStarted.Inc()
	m.mu.Lock()
	m.started[cycleID] = m.now()
	m.mu.Unlock()
}

func (m *Metrics) Scored(_ string, alignment float64) {
	m.Alignment.Observe(alignment)
}

func (m *Metrics) QuorumDecided(_ string, res quorum.Result) {
	for node, pass := range res.Votes {
		result := "fail"
		if pass {
			result = "pass"
		}
		m.Votes.WithLabelValues(node, result).Inc()
	}
}

func (m *Metrics) Persisted(cycleID string, _ commitment.Record, via engine.Via) {
	m.Commitments.WithLabelValues(string(via)).Inc()
	if via == engine.ViaQuorum {
		m.finish(cycleID, "persisted")
	}
}

func (m *Metrics) Audited(_ string, rep audit.Report) {
	m.Audits.WithLabelValues(string(rep.Status)).Inc()
	if rep.Status != audit.StatusInsufficientData {
		m.Drift.Set(rep.Drift)
	}
}

func (m *Metrics) LockedDown(cycleID string, _ lockdown.Event) {
	m.Locked.Set(1)
	m.finish(cycleID, "locked")
}

func (m *Metrics) CycleFailed(cycleID string, _ error) {
	m.finish(cycleID, "error")
}

func (m *Metrics) finish(cycleID, outcome string) {
	m.CyclesFinished.WithLabelValues(outcome).Inc()
	m.mu.Lock()
	start, ok := m.started[cycleID]
	delete(m.started, cycleID)
	m.mu.Unlock()
	if ok {
		m.CycleDuration.Observe(m.now().Sub(start).Seconds())
	}
}

// #endregion observer
