package producer

import (
	"context"
	"fmt"
	"sync"
)

// #region scripted
// Call records one Generate invocation seen by Scripted.
type Call struct {
	Prompt string
	Query  string
}

// Scripted replays a fixed queue of outputs, one per call, and records the
// calls it received.
type Scripted struct {
	mu      sync.Mutex
	outputs []Output
	calls   []Call
}

// NewScripted creates a producer that returns outputs in order.
func NewScripted(outputs ...Output) *Scripted {
	return &Scripted{outputs: outputs}
}

// Push appends more outputs to the queue.
func (s *Scripted) Push(outputs ...Output) {
	s.mu.Lock()
	s.outputs = append(s.outputs, outputs...)
	s.mu.Unlock()
}

// Generate pops the next output. An exhausted script is an error.
func (s *Scripted) Generate(ctx context.Context, prompt, query string) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Prompt: prompt, Query: query})
	if len(s.outputs) == 0 {
		return Output{}, fmt.Errorf("scripted producer exhausted after %d calls", len(s.calls)-1)
	}
	out := s.outputs[0]
	s.outputs = s.outputs[1:]
	return out, nil
}

// Calls returns a copy of the recorded calls.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// #endregion scripted
