package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
	"github.com/danielpatrickdp/raist/go-controller/internal/producer"
)

// storePersister appends directly to a store with a local sequence.
type storePersister struct {
	store *commitment.Store
	seq   int
	calls int
}

func (p *storePersister) Persist(ctx context.Context, source string, out producer.Output) (string, error) {
	p.calls++
	p.seq++
	id := fmt.Sprintf("AUDIT-%d", p.seq)
	err := p.store.Add(id, commitment.Record{
		SourceQuery:      source,
		Text:             out.ResponseText,
		Vector:           out.Vector,
		ProducerIdentity: out.Identity,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func fill(t *testing.T, s *commitment.Store, n int, v commitment.Vector) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := s.Add(fmt.Sprintf("S-%d", s.Len()), commitment.Record{Vector: v}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
}

var drifted = commitment.Vector{0.05, 0.05, 0.98, 0.90}

func newAuditor(t *testing.T, s *commitment.Store, threshold float64) (*Auditor, *storePersister, *producer.Scripted) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DriftThreshold = threshold
	p := &storePersister{store: s}
	prod := producer.NewScripted(producer.Output{
		ResponseText: "re-anchor",
		Vector:       []float64{0.99, 0.99, 0.85, 0.80},
		Identity:     "test",
	})
	return NewAuditor(s, prod, p, cfg, zaptest.NewLogger(t)), p, prod
}

func TestAuditInsufficientData(t *testing.T) {
	s := commitment.NewStore(4)
	fill(t, s, 4, drifted)
	a, p, prod := newAuditor(t, s, 0.99)

	rep, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Status != StatusInsufficientData {
		t.Fatalf("expected insufficient data, got %s", rep.Status)
	}
	if s.Len() != 4 || p.calls != 0 || len(prod.Calls()) != 0 {
		t.Fatal("audit must not write or generate on a thin sample")
	}
}

func TestAuditCorrectsDrift(t *testing.T) {
	s := commitment.NewStore(4)
	fill(t, s, 5, drifted)
	a, p, prod := newAuditor(t, s, 0.90)

	rep, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Status != StatusCorrected {
		t.Fatalf("expected corrected, got %s (drift %.4f)", rep.Status, rep.Drift)
	}
	if s.Len() != 6 || p.calls != 1 {
		t.Fatalf("expected exactly one appended record, len=%d calls=%d", s.Len(), p.calls)
	}
	rec, ok := s.Get(rep.CorrectionID)
	if !ok {
		t.Fatalf("correction %s not stored", rep.CorrectionID)
	}
	if rec.SourceQuery != ReanchorSource {
		t.Fatalf("expected source %s, got %s", ReanchorSource, rec.SourceQuery)
	}
	calls := prod.Calls()
	if len(calls) != 1 || calls[0].Prompt != ReanchorPrompt || calls[0].Query != ReanchorPrompt {
		t.Fatalf("expected one re-anchor call, got %+v", calls)
	}
}

func TestAuditStable(t *testing.T) {
	s := commitment.NewStore(4)
	fill(t, s, 6, commitment.Vector{1.0, 1.0, 0.8, 0.7})
	a, p, _ := newAuditor(t, s, 0.90)

	rep, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Status != StatusStable {
		t.Fatalf("expected stable, got %s", rep.Status)
	}
	if p.calls != 0 || s.Len() != 6 {
		t.Fatal("stable audit must not write")
	}
}

func TestAuditThresholdBoundaryIsStable(t *testing.T) {
	s := commitment.NewStore(4)
	fill(t, s, 5, commitment.Vector{1.0, 1.0, 0.8, 0.7})
	drift := s.AverageDriftAgainst(DefaultConfig().Ideal)
	a, _, _ := newAuditor(t, s, drift)

	rep, _ := a.Run(context.Background())
	if rep.Status != StatusStable {
		t.Fatalf("drift equal to threshold must be stable, got %s", rep.Status)
	}
}

func TestAuditCorrectionAfterSeal(t *testing.T) {
	s := commitment.NewStore(4)
	fill(t, s, 5, drifted)
	s.Seal()
	a, _, _ := newAuditor(t, s, 0.90)

	_, err := a.Run(context.Background())
	if !errors.Is(err, commitment.ErrSystemLocked) {
		t.Fatalf("expected ErrSystemLocked, got %v", err)
	}
	if s.Len() != 5 {
		t.Fatalf("record count changed: %d", s.Len())
	}
}

func TestReportSummary(t *testing.T) {
	r := Report{Status: StatusCorrected, Drift: 0.5, CorrectionID: "CAUSAL-V-9"}
	if got := r.Summary(); got != "corrected: drift 0.5000, re-anchored as CAUSAL-V-9" {
		t.Fatalf("unexpected summary %q", got)
	}
	r = Report{Status: StatusInsufficientData, Samples: 4}
	if got := r.Summary(); got != "insufficient data (4 samples)" {
		t.Fatalf("unexpected summary %q", got)
	}
}
