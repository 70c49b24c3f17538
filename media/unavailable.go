package media

import (
	"context"
	"fmt"
)

type unavailable struct {
	err error
}

// Unavailable returns a System whose every call fails with err. The daemon
// runs on it when the platform backend cannot start, so bindings still load
// and each fire is logged as a failed dispatch.
func Unavailable(err error) System {
	return unavailable{err: fmt.Errorf("media control unavailable: %w", err)}
}

func (u unavailable) Resolve(context.Context, string) (Handle, error) {
	return nil, u.err
}

func (u unavailable) Invoke(context.Context, Handle, Action) error {
	return u.err
}

func (u unavailable) Sources(context.Context) ([]string, error) {
	return nil, u.err
}

func (unavailable) Close() error { return nil }
