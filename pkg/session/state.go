// Package session folds decoded stream records into client side state: chat
// transcripts, research timelines and comparison tables. Every streaming
// request gets a fresh session; sessions never share mutable state.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInvalidTransition is returned when a session is moved backwards or out of
// a final state.
var ErrInvalidTransition = errors.New("session: invalid state transition")

// State is the lifecycle state of a streaming session.
type State int

const (
	Idle State = iota
	Streaming
	Complete
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Complete:
		return "complete"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, error) {
	switch s {
	case "idle":
		return Idle, nil
	case "streaming":
		return Streaming, nil
	case "complete":
		return Complete, nil
	case "errored":
		return Errored, nil
	default:
		return Idle, fmt.Errorf("session: unknown state %q", s)
	}
}

// Final reports whether no further transitions are possible.
func (s State) Final() bool {
	return s == Complete || s == Errored
}

// Lifecycle tracks IDLE → STREAMING → {COMPLETE | ERRORED}. It is embedded by
// every session type and is safe for concurrent use.
type Lifecycle struct {
	mu         sync.RWMutex
	state      State
	err        error
	startedAt  time.Time
	finishedAt time.Time
}

// Start moves an idle session to streaming.
func (l *Lifecycle) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Idle {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.state, Streaming)
	}
	l.state = Streaming
	l.startedAt = time.Now()
	return nil
}

// Complete moves a streaming session to complete.
func (l *Lifecycle) Complete() error {
	return l.finish(Complete, nil)
}

// Fail moves an idle or streaming session to errored. A request that fails
// before its stream opens never passes through streaming.
func (l *Lifecycle) Fail(err error) error {
	return l.finish(Errored, err)
}

func (l *Lifecycle) finish(to State, err error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.Final() || (to == Complete && l.state != Streaming) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.state, to)
	}

	now := time.Now()
	if l.startedAt.IsZero() {
		l.startedAt = now
	}
	l.state = to
	l.err = err
	l.finishedAt = now
	return nil
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Err returns the error that moved the session to errored, if any.
func (l *Lifecycle) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// StartedAt returns when streaming began.
func (l *Lifecycle) StartedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.startedAt
}

// FinishedAt returns when the session reached a final state.
func (l *Lifecycle) FinishedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.finishedAt
}

// Duration is the time between start and finish, or since start while the
// session is still streaming.
func (l *Lifecycle) Duration() time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()

	switch {
	case l.startedAt.IsZero():
		return 0
	case l.finishedAt.IsZero():
		return time.Since(l.startedAt)
	default:
		return l.finishedAt.Sub(l.startedAt)
	}
}
