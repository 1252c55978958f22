package lockdown

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// #region sealer
// Sealer is the store-side half of lockdown.
type Sealer interface {
	Seal()
}

// #endregion sealer

// #region protocol
// Protocol is the irreversible red-code switch. The zero value is not usable;
// use New.
type Protocol struct {
	sealer Sealer
	logger *zap.Logger
	now    func() time.Time

	once  sync.Once
	mu    sync.RWMutex
	state State
	event Event
}

// New returns a Running protocol guarding sealer.
func New(sealer Sealer, logger *zap.Logger) *Protocol {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Protocol{
		sealer: sealer,
		logger: logger.Named("lockdown"),
		now:    func() time.Time { return time.Now().UTC() },
		state:  Running,
	}
}

// Trigger locks the engine. Only the first call has any effect; every call
// returns the event that caused the lock.
func (p *Protocol) Trigger(reason string) Event {
	p.once.Do(func() {
		// seal before publishing Locked so no write can slip in between
		p.sealer.Seal()

		p.mu.Lock()
		p.state = Locked
		p.event = Event{Reason: reason, At: p.now()}
		p.mu.Unlock()

		banner := strings.Repeat("#", 70)
		p.logger.Error(banner)
		p.logger.Error("RED CODE PROTOCOL ACTIVATED",
			zap.String("reason", strings.ToUpper(reason)),
			zap.String("action", "system lockdown, commitment writes disabled"),
			zap.String("alert", "operator review of commitment integrity required"),
		)
		p.logger.Error(banner)
	})

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.event
}

// State returns the current lifecycle state.
func (p *Protocol) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Event returns the lockdown event and whether one has happened.
func (p *Protocol) Event() (Event, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.event, p.state == Locked
}

// #endregion protocol
