//go:build !windows

package hotkey

import (
	"fmt"
	"runtime"
)

type unsupportedHook struct{}

// New returns the platform keyboard hook. Only Windows has one.
func New() Hook {
	return unsupportedHook{}
}

func (unsupportedHook) Install(func(Event)) error {
	return &InstallError{Err: fmt.Errorf("%w (%s)", ErrUnsupported, runtime.GOOS)}
}

func (unsupportedHook) Uninstall() error { return nil }
