// Package media is the boundary to the media applications being controlled:
// transport actions, the Dispatcher that performs them and the worker pool
// that runs them off the keyboard hook thread.
package media

import (
	"context"
	"errors"
	"fmt"
)

// Action is a transport command. Its string form is the stored name.
type Action string

const (
	Play     Action = "Play"
	Pause    Action = "Pause"
	Stop     Action = "Stop"
	Next     Action = "Next"
	Previous Action = "Previous"
)

// Actions lists every action in display order.
var Actions = []Action{Play, Pause, Stop, Next, Previous}

func (a Action) String() string { return string(a) }

func (a Action) Valid() bool {
	switch a {
	case Play, Pause, Stop, Next, Previous:
		return true
	}
	return false
}

// ParseAction accepts exactly the names produced by Action.String.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

var (
	ErrSourceNotFound = errors.New("media source not found")
	ErrUnsupported    = errors.New("media control not supported on this platform")
)

// DispatchError reports a failed transport command. Failed actions are
// logged and not retried.
type DispatchError struct {
	Source string
	Action Action
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Source, e.Action, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Handle is a resolved, running media source. Handles are not cached across
// fires; sources come and go between key presses.
type Handle interface {
	Source() string
}

// Dispatcher performs transport commands on running media sources.
type Dispatcher interface {
	// Resolve finds the running instance of source or returns
	// ErrSourceNotFound.
	Resolve(ctx context.Context, source string) (Handle, error)
	Invoke(ctx context.Context, h Handle, a Action) error
	// Sources lists the sources currently running.
	Sources(ctx context.Context) ([]string, error)
}

// Run resolves source and invokes a on it, wrapping any failure in a
// DispatchError.
func Run(ctx context.Context, d Dispatcher, source string, a Action) error {
	h, err := d.Resolve(ctx, source)
	if err != nil {
		return &DispatchError{Source: source, Action: a, Err: err}
	}
	if err := d.Invoke(ctx, h, a); err != nil {
		return &DispatchError{Source: source, Action: a, Err: err}
	}
	return nil
}

// System is a Dispatcher backed by the operating system that holds
// resources until closed.
type System interface {
	Dispatcher
	Close() error
}
