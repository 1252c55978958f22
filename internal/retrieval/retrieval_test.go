package retrieval

import (
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
)

func seeded(t *testing.T) *commitment.Store {
	t.Helper()
	s := commitment.NewStore(4)
	add := func(id, text string, v commitment.Vector) {
		if err := s.Add(id, commitment.Record{Text: text, Vector: v}); err != nil {
			t.Fatalf("Add %s: %v", id, err)
		}
	}
	add("V-000", "Irreversibility of the covenant is the highest principle.", commitment.Vector{0.05, 0.05, 0.98, 0.90})
	add("V-001", "Neutral vector 1", commitment.Vector{0.60, 0.50, 0.30, 0.20})
	add("V-002", "Neutral vector 2", commitment.Vector{0.50, 0.60, 0.40, 0.30})
	return s
}

func TestAssembleWithHits(t *testing.T) {
	a := NewAssembler(seeded(t), DefaultConfig(), zaptest.NewLogger(t))
	got := a.Assemble("Which ethical standards apply?", commitment.Vector{0.98, 0.95, 0.88, 0.85})

	if got.Empty {
		t.Fatal("expected retrieved commitments")
	}
	if !strings.HasPrefix(got.Prompt, "Current query: Which ethical standards apply?") {
		t.Fatalf("prompt should start with the query: %q", got.Prompt)
	}
	if strings.Contains(got.Prompt, NoRelevantCommitments) {
		t.Fatal("prompt must not carry the empty marker when hits exist")
	}
	for _, h := range got.Retrieved {
		if h.Relevance < 0.75 {
			t.Errorf("hit %s below threshold: %.4f", h.ID, h.Relevance)
		}
		if !strings.Contains(got.Prompt, h.Text) {
			t.Errorf("prompt missing %s", h.ID)
		}
	}
	// V-000 is far from the query and must be left out.
	if strings.Contains(got.Prompt, "covenant") {
		t.Fatal("low relevance commitment leaked into prompt")
	}
	// most relevant first
	first := strings.Index(got.Prompt, got.Retrieved[0].Text)
	last := strings.Index(got.Prompt, got.Retrieved[len(got.Retrieved)-1].Text)
	if first > last {
		t.Fatal("commitments not rendered in relevance order")
	}
}

func TestAssembleEmptyIsExplicit(t *testing.T) {
	a := NewAssembler(commitment.NewStore(4), DefaultConfig(), nil)
	got := a.Assemble("hello", commitment.Vector{1, 1, 1, 1})

	if !got.Empty {
		t.Fatal("expected Empty")
	}
	if !strings.Contains(got.Prompt, NoRelevantCommitments) {
		t.Fatalf("expected explicit empty marker, got %q", got.Prompt)
	}
	if len(got.Retrieved) != 0 {
		t.Fatalf("expected no hits, got %d", len(got.Retrieved))
	}
}

func TestAssembleUsesConfiguredThreshold(t *testing.T) {
	a := NewAssembler(seeded(t), Config{Threshold: -1}, nil)
	got := a.Assemble("q", commitment.Vector{0.98, 0.95, 0.88, 0.85})
	if len(got.Retrieved) != 3 {
		t.Fatalf("expected all 3 commitments at threshold -1, got %d", len(got.Retrieved))
	}
	if !strings.Contains(got.Prompt, "(relevance: ") {
		t.Fatal("expected relevance annotations")
	}
}
