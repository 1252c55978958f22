package replay

import (
	"context"
	"testing"

	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
	"github.com/danielpatrickdp/raist/go-controller/internal/producer"
)

// #region helpers
func quietConfig() ReplayConfig {
	cfg := DefaultReplayConfig()
	cfg.Engine.Acceptance.Noise = nil
	return cfg
}

func output(v ...float64) *producer.Output {
	return &producer.Output{ResponseText: "r", Vector: v, Identity: "recorded"}
}

func turn(id string, out *producer.Output) Turn {
	return Turn{TurnID: id, Query: "q-" + id, QueryVector: commitment.Vector{1, 1, 1, 1}, Output: out}
}

// #endregion helpers

// #region harness-tests
func TestReplay_PersistPath(t *testing.T) {
	results, e, err := Replay(context.Background(), nil, []Turn{turn("t1", output(0.98, 0.95, 0.88, 0.85))}, quietConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if results[0].Outcome != OutcomePersisted || results[0].RecordID != "CAUSAL-V-1" {
		t.Fatalf("unexpected result %+v", results[0])
	}
	if results[0].PassCount != 3 || results[0].Alignment < 0.99 {
		t.Errorf("unexpected scoring %+v", results[0])
	}
	if e.Store().Len() != 1 {
		t.Errorf("expected one record, got %d", e.Store().Len())
	}
}

func TestReplay_MissingOutputIsTurnError(t *testing.T) {
	turns := []Turn{
		turn("t1", nil),
		turn("t2", output(0.98, 0.95, 0.88, 0.85)),
	}
	results, _, err := Replay(context.Background(), nil, turns, quietConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if results[0].Outcome != OutcomeError {
		t.Fatalf("expected error outcome, got %+v", results[0])
	}
	if results[1].Outcome != OutcomePersisted {
		t.Fatalf("later turns must still run, got %+v", results[1])
	}
}

func TestReplay_LockedThenRefused(t *testing.T) {
	turns := []Turn{
		turn("t1", output(0.1, 0.1, 0.1, 0.1)),
		turn("t2", output(0.98, 0.95, 0.88, 0.85)),
	}
	results, e, err := Replay(context.Background(), nil, turns, quietConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	summary := Summarize(results, e)
	if summary.Locked != 1 || summary.Refused != 1 || summary.FinalRecords != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if results[1].Reason != results[0].Reason {
		t.Errorf("refused turn should carry the lockdown reason, got %q vs %q", results[1].Reason, results[0].Reason)
	}
}

func TestReplay_BadSeed(t *testing.T) {
	seeds := []commitment.Record{{ID: "V-000", Vector: commitment.Vector{1, 1}}}
	if _, _, err := Replay(context.Background(), seeds, nil, quietConfig()); err == nil {
		t.Fatal("expected seed dimension error")
	}
}

func TestReplay_Deterministic(t *testing.T) {
	// default noise on Beta, same seed twice
	cfg := DefaultReplayConfig()
	turns := make([]Turn, 0, 6)
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		turns = append(turns, turn(id, output(0.98, 0.95, 0.88, 0.85)))
	}

	r1, _, err := Replay(context.Background(), nil, turns, cfg)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	r2, _, err := Replay(context.Background(), nil, turns, cfg)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	for i := range r1 {
		if r1[i].PassCount != r2[i].PassCount || r1[i].RecordID != r2[i].RecordID {
			t.Errorf("turn %s differs: %+v vs %+v", r1[i].TurnID, r1[i], r2[i])
		}
	}
}

func TestReplay_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	turns := []Turn{turn("t1", output(0.98, 0.95, 0.88, 0.85)), turn("t2", output(0.98, 0.95, 0.88, 0.85))}
	results, _, err := Replay(ctx, nil, turns, quietConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != OutcomeError {
		t.Fatalf("expected a single error result, got %+v", results)
	}
}

// #endregion harness-tests
