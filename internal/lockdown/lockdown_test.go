package lockdown

import (
	"errors"
	"sync"
	"testing"

	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
	"go.uber.org/zap/zaptest"
)

type countingSealer struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSealer) Seal() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func TestTriggerLocksOnce(t *testing.T) {
	sealer := &countingSealer{}
	p := New(sealer, zaptest.NewLogger(t))

	if p.State() != Running {
		t.Fatalf("expected running, got %s", p.State())
	}
	if _, ok := p.Event(); ok {
		t.Fatal("expected no event before trigger")
	}

	first := p.Trigger("consensus failed")
	second := p.Trigger("something else")

	if p.State() != Locked {
		t.Fatalf("expected locked, got %s", p.State())
	}
	if sealer.calls != 1 {
		t.Fatalf("expected 1 seal, got %d", sealer.calls)
	}
	if second.Reason != "consensus failed" || !second.At.Equal(first.At) {
		t.Fatalf("second trigger changed the event: %+v vs %+v", second, first)
	}
}

func TestTriggerConcurrent(t *testing.T) {
	sealer := &countingSealer{}
	p := New(sealer, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Trigger("race")
		}()
	}
	wg.Wait()

	if sealer.calls != 1 {
		t.Fatalf("expected exactly one seal, got %d", sealer.calls)
	}
}

func TestTriggerSealsStore(t *testing.T) {
	store := commitment.NewStore(4)
	p := New(store, nil)
	p.Trigger("test")

	err := store.Add("V-1", commitment.Record{Vector: commitment.Vector{1, 1, 1, 1}})
	if !errors.Is(err, commitment.ErrSystemLocked) {
		t.Fatalf("expected ErrSystemLocked, got %v", err)
	}
}

func TestErrorMatchesSystemLocked(t *testing.T) {
	var err error = &Error{Event: Event{Reason: "consensus failed"}}
	if !errors.Is(err, commitment.ErrSystemLocked) {
		t.Fatal("expected lockdown error to match ErrSystemLocked")
	}
	var le *Error
	if !errors.As(err, &le) || le.Event.Reason != "consensus failed" {
		t.Fatalf("errors.As failed: %v", err)
	}
}

func TestStateString(t *testing.T) {
	if Running.String() != "running" || Locked.String() != "locked" {
		t.Fatalf("unexpected names: %s %s", Running, Locked)
	}
}
