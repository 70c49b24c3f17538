// Package hotkey watches the global keyboard for chords: a platform hook
// feeds key events into a Bridge, which tracks the pressed keys and fires
// every registered watcher whose chord is held.
package hotkey

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyInstalled = errors.New("keyboard hook already installed")
	ErrUnsupported      = errors.New("keyboard hook not supported on this platform")
	ErrNotFound         = errors.New("watcher not found")
)

// InstallError reports a failure to install the platform hook. It disables
// hotkeys but never the rest of the process.
type InstallError struct {
	Err error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install keyboard hook: %v", e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// Kind is the decoded direction of a raw keyboard event.
type Kind uint8

const (
	KindOther Kind = iota
	KindKeyDown
	KindKeyUp
)

func (k Kind) String() string {
	switch k {
	case KindKeyDown:
		return "down"
	case KindKeyUp:
		return "up"
	default:
		return "other"
	}
}

// Event is one keyboard event as delivered by the platform hook.
type Event struct {
	Kind Kind
	// Code is the Windows virtual-key code.
	Code uint32
}

// Hook is a platform keyboard event source.
type Hook interface {
	// Install starts delivering events to handler. Events arrive on a single
	// goroutine, in order.
	Install(handler func(Event)) error
	// Uninstall stops delivery. No handler call is in flight once it returns.
	Uninstall() error
}
