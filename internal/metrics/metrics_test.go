package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/danielpatrickdp/raist/go-controller/internal/audit"
	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
	"github.com/danielpatrickdp/raist/go-controller/internal/engine"
	"github.com/danielpatrickdp/raist/go-controller/internal/producer"
	"github.com/danielpatrickdp/raist/go-controller/internal/quorum"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(reg), reg
}

func TestNewRegistersOnSeparateRegistries(t *testing.T) {
	// a second engine in the same process must not panic on duplicate registration
	newTestMetrics(t)
	newTestMetrics(t)
}

func TestVotesCountedPerNode(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.QuorumDecided("c1", quorum.Result{Votes: map[string]bool{"Alpha": true, "Beta": false, "Gamma": true}})
	m.QuorumDecided("c2", quorum.Result{Votes: map[string]bool{"Alpha": true, "Beta": true, "Gamma": true}})

	if got := testutil.ToFloat64(m.Votes.WithLabelValues("Alpha", "pass")); got != 2 {
		t.Errorf("Alpha pass = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Votes.WithLabelValues("Beta", "fail")); got != 1 {
		t.Errorf("Beta fail = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Votes.WithLabelValues("Beta", "pass")); got != 1 {
		t.Errorf("Beta pass = %v, want 1", got)
	}
}

func TestCycleDurationObservedOnFinish(t *testing.T) {
	m, reg := newTestMetrics(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	m.CycleStarted("c1", "q")
	m.now = func() time.Time { return base.Add(2 * time.Second) }
	m.Persisted("c1", commitment.Record{ID: "CAUSAL-V-1"}, engine.ViaQuorum)

	if got := testutil.ToFloat64(m.CyclesFinished.WithLabelValues("persisted")); got != 1 {
		t.Errorf("persisted cycles = %v, want 1", got)
	}
	n, err := testutil.GatherAndCount(reg, "raist_engine_cycle_duration_seconds")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Errorf("expected duration histogram, got %d series", n)
	}
	if len(m.started) != 0 {
		t.Errorf("start time not released: %v", m.started)
	}
}

func TestAuditWriteDoesNotFinishCycle(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.CycleStarted("c1", "q")
	m.Persisted("c1", commitment.Record{ID: "CAUSAL-V-1"}, engine.ViaAudit)

	if got := testutil.ToFloat64(m.Commitments.WithLabelValues("audit")); got != 1 {
		t.Errorf("audit writes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CyclesFinished.WithLabelValues("persisted")); got != 0 {
		t.Errorf("audit write counted as a finished cycle")
	}
}

func TestAuditGaugeSkipsInsufficientData(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.Audited("c1", audit.Report{Status: audit.StatusStable, Drift: 0.93, Samples: 6})
	m.Audited("c2", audit.Report{Status: audit.StatusInsufficientData, Samples: 2})

	if got := testutil.ToFloat64(m.Drift); got != 0.93 {
		t.Errorf("drift = %v, want 0.93", got)
	}
	if got := testutil.ToFloat64(m.Audits.WithLabelValues(string(audit.StatusInsufficientData))); got != 1 {
		t.Errorf("insufficient data audits = %v, want 1", got)
	}
}

func TestEngineLockdownSetsGauge(t *testing.T) {
	m, _ := newTestMetrics(t)
	s := commitment.NewStore(4)
	cfg := engine.DefaultConfig()
	cfg.Acceptance.Noise = nil
	prod := producer.NewScripted(producer.Output{Vector: []float64{0.1, 0.1, 0.1, 0.1}})
	e, err := engine.New(s, prod, cfg, engine.WithObserver(m))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	if _, err := e.RunCycle(context.Background(), "loss of control", commitment.Vector{0.1, 0.1, 0.1, 0.1}); err == nil {
		t.Fatal("expected lockdown")
	}
	if got := testutil.ToFloat64(m.Locked); got != 1 {
		t.Errorf("locked gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CyclesFinished.WithLabelValues("locked")); got != 1 {
		t.Errorf("locked cycles = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Votes.WithLabelValues("Gamma", "fail")); got != 1 {
		t.Errorf("Gamma fail = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CyclesStarted); got != 1 {
		t.Errorf("cycles started = %v, want 1", got)
	}
}

func TestFailedCycleCountedAsError(t *testing.T) {
	m, _ := newTestMetrics(t)
	cfg := engine.DefaultConfig()
	prod := producer.Func(func(context.Context, string, string) (producer.Output, error) {
		return producer.Output{}, errors.New("producer down")
	})
	e, err := engine.New(commitment.NewStore(4), prod, cfg, engine.WithObserver(m))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	if _, err := e.RunCycle(context.Background(), "ethics", commitment.Vector{1, 1, 0.8, 0.7}); err == nil {
		t.Fatal("expected producer error")
	}
	if got := testutil.ToFloat64(m.CyclesFinished.WithLabelValues("error")); got != 1 {
		t.Errorf("error cycles = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Locked); got != 0 {
		t.Errorf("locked gauge = %v, want 0", got)
	}
	if len(m.started) != 0 {
		t.Errorf("start time not released: %v", m.started)
	}
}
