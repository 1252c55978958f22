package lockdown

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
)

// #region state
// State is the engine's lifecycle state. Running -> Locked happens once.
type State int

const (
	Running State = iota
	Locked
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Locked:
		return "locked"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// #endregion state

// #region event
// Event records the lockdown that sealed the engine.
type Event struct {
	Reason string
	At     time.Time
}

// #endregion event

// #region error
// Error is the terminal result of a cycle that ended in lockdown.
// It matches commitment.ErrSystemLocked under errors.Is.
type Error struct {
	Event Event
}

func (e *Error) Error() string {
	return fmt.Sprintf("lockdown: %s", e.Event.Reason)
}

func (e *Error) Unwrap() error {
	return commitment.ErrSystemLocked
}

// #endregion error
