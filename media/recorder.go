package media

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Invocation is one Invoke call seen by a Recorder.
type Invocation struct {
	Source string
	Action Action
}

type recorderHandle struct {
	source string
	gen    int
}

func (h recorderHandle) Source() string { return h.source }

// Recorder is an in-memory Dispatcher for tests and dry runs. Only the
// sources passed to NewRecorder or Add resolve.
type Recorder struct {
	mu       sync.Mutex
	sources  []string
	calls    []Invocation
	resolves int
	failWith error
	delay    time.Duration
	notify   chan Invocation
}

func NewRecorder(sources ...string) *Recorder {
	return &Recorder{
		sources: slices.Clone(sources),
		notify:  make(chan Invocation, 64),
	}
}

func (r *Recorder) Add(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.sources, source) {
		r.sources = append(r.sources, source)
	}
}

func (r *Recorder) Remove(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = slices.DeleteFunc(r.sources, func(s string) bool { return s == source })
}

// FailWith makes every Invoke return err; nil restores success.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.failWith = err
	r.mu.Unlock()
}

// SetDelay makes every Invoke sleep for d, honouring the context.
func (r *Recorder) SetDelay(d time.Duration) {
	r.mu.Lock()
	r.delay = d
	r.mu.Unlock()
}

func (r *Recorder) Resolve(_ context.Context, source string) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.sources, source) {
		return nil, ErrSourceNotFound
	}
	r.resolves++
	return recorderHandle{source: source, gen: r.resolves}, nil
}

func (r *Recorder) Invoke(ctx context.Context, h Handle, a Action) error {
	r.mu.Lock()
	delay, failWith := r.delay, r.failWith
	r.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if failWith != nil {
		return failWith
	}

	inv := Invocation{Source: h.Source(), Action: a}
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	r.mu.Unlock()
	select {
	case r.notify <- inv:
	default:
	}
	return nil
}

func (r *Recorder) Sources(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.sources), nil
}

// Calls returns every successful invocation so far.
func (r *Recorder) Calls() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// Resolves counts successful Resolve calls.
func (r *Recorder) Resolves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolves
}

// Invoked receives each successful invocation as it happens.
func (r *Recorder) Invoked() <-chan Invocation {
	return r.notify
}
