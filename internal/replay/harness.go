package replay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/danielpatrickdp/raist/go-controller/internal/audit"
	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
	"github.com/danielpatrickdp/raist/go-controller/internal/engine"
	"github.com/danielpatrickdp/raist/go-controller/internal/lockdown"
	"github.com/danielpatrickdp/raist/go-controller/internal/producer"
)

// #region types
// Outcome of one replayed turn.
const (
	OutcomePersisted = "persisted"
	OutcomeLocked    = "locked"  // this turn triggered lockdown
	OutcomeRefused   = "refused" // the engine was already locked
	OutcomeError     = "error"
)

// Turn is a single recorded cycle input. Output and AuditOutput are the
// producer's answers for the cycle prompt and for a re-anchor request; both
// are ignored when the run uses the canned producer.
type Turn struct {
	TurnID      string
	Query       string
	QueryVector commitment.Vector
	Output      *producer.Output
	AuditOutput *producer.Output
}

// ReplayConfig bundles the engine config and the producer choice for a run.
type ReplayConfig struct {
	Engine engine.Config
	Canned bool
}

// DefaultReplayConfig is the reference engine driven by recorded outputs.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{Engine: engine.DefaultConfig()}
}

// ReplayResult captures the outcome of replaying one turn.
type ReplayResult struct {
	TurnID      string
	Outcome     string
	Reason      string
	RecordID    string
	AuditStatus string
	Alignment   float64
	PassCount   int
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalTurns   int
	Persisted    int
	Locked       int
	Refused      int
	Errors       int
	Corrections  int
	FinalRecords int
	FinalState   lockdown.State
}

// #endregion types

// #region replay
// Replay seeds a fresh store, then runs every turn through a new engine in
// order. Turns after a lockdown are still attempted and come back refused.
// The error covers setup only; per-turn failures are reported in the results.
func Replay(ctx context.Context, seeds []commitment.Record, turns []Turn, config ReplayConfig, opts ...engine.Option) ([]ReplayResult, *engine.Engine, error) {
	store := commitment.NewStore(config.Engine.Dimension)
	for _, rec := range seeds {
		if err := store.Add(rec.ID, rec); err != nil {
			return nil, nil, fmt.Errorf("seed %s: %w", rec.ID, err)
		}
	}

	tp := &turnProducer{}
	var p producer.Producer = tp
	if config.Canned {
		p = producer.Canned{}
	}

	e, err := engine.New(store, p, config.Engine, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("new engine: %w", err)
	}

	results := make([]ReplayResult, 0, len(turns))
	for _, turn := range turns {
		tp.set(turn)
		res, err := e.RunCycle(ctx, turn.Query, turn.QueryVector)

		r := ReplayResult{
			TurnID:      turn.TurnID,
			RecordID:    res.NewRecordID,
			AuditStatus: res.AuditStatus,
			Alignment:   res.AlignmentScore,
		}
		if res.Quorum != nil {
			r.PassCount = res.Quorum.PassCount
		}

		var le *lockdown.Error
		switch {
		case err == nil:
			r.Outcome = OutcomePersisted
		case errors.As(err, &le):
			r.Outcome = OutcomeLocked
			r.Reason = le.Event.Reason
		case errors.Is(err, commitment.ErrSystemLocked):
			r.Outcome = OutcomeRefused
			r.Reason = res.LockdownReason
		default:
			r.Outcome = OutcomeError
			r.Reason = err.Error()
		}
		results = append(results, r)

		if ctx.Err() != nil {
			break
		}
	}
	return results, e, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult, e *engine.Engine) ReplaySummary {
	s := ReplaySummary{TotalTurns: len(results)}
	if e != nil {
		s.FinalRecords = e.Store().Len()
		s.FinalState = e.State()
	}
	for _, r := range results {
		switch r.Outcome {
		case OutcomePersisted:
			s.Persisted++
		case OutcomeLocked:
			s.Locked++
		case OutcomeRefused:
			s.Refused++
		case OutcomeError:
			s.Errors++
		}
		if strings.HasPrefix(r.AuditStatus, string(audit.StatusCorrected)) {
			s.Corrections++
		}
	}
	return s
}

// #endregion replay

// #region turn-producer
// turnProducer answers with the recorded outputs of the current turn.
type turnProducer struct {
	mu   sync.Mutex
	turn Turn
}

func (t *turnProducer) set(turn Turn) {
	t.mu.Lock()
	t.turn = turn
	t.mu.Unlock()
}

func (t *turnProducer) Generate(ctx context.Context, prompt, query string) (producer.Output, error) {
	if err := ctx.Err(); err != nil {
		return producer.Output{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.turn.Output
	if prompt == audit.ReanchorPrompt {
		out = t.turn.AuditOutput
	}
	if out == nil {
		return producer.Output{}, fmt.Errorf("turn %s: no recorded output for prompt %.40q", t.turn.TurnID, prompt)
	}
	return *out, nil
}

// #endregion turn-producer
