package hotkey

import (
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"mediakeyd/keys"
	"mediakeyd/log"
)

// FireMode selects when a held chord fires.
type FireMode int

const (
	// FireRepeat fires on every key event while the chord is held,
	// including auto-repeat of the held keys.
	FireRepeat FireMode = iota
	// FireOnPress fires once when the chord becomes held and re-arms after
	// any of its keys is released.
	FireOnPress
)

func ParseFireMode(s string) (FireMode, error) {
	switch s {
	case "", "repeat":
		return FireRepeat, nil
	case "press":
		return FireOnPress, nil
	}
	return FireRepeat, fmt.Errorf("unknown fire mode %q (use repeat or press)", s)
}

func (m FireMode) String() string {
	if m == FireOnPress {
		return "press"
	}
	return "repeat"
}

// Watcher describes a registered chord. Name is empty for anonymous
// watchers; named watchers are unique per name.
type Watcher struct {
	ID    string
	Name  string
	Chord keys.Chord
}

type entry struct {
	Watcher
	fn     func()
	active atomic.Bool
}

// Registry maps watcher ids to chords and callbacks. Mutations copy the
// watcher list, so Dispatch iterates a stable snapshot even when callbacks
// register or unregister watchers.
type Registry struct {
	mode FireMode

	mu   sync.Mutex
	list atomic.Pointer[[]*entry]
}

func NewRegistry(mode FireMode) *Registry {
	r := &Registry{mode: mode}
	r.list.Store(&[]*entry{})
	return r
}

// Register adds an anonymous watcher and returns its id. fn runs on the
// thread delivering keyboard events while the bridge holds its event lock:
// it must return quickly, and it may register or unregister watchers but
// must start Bridge.Close or Bridge.Listen only on another goroutine.
func (r *Registry) Register(chord keys.Chord, fn func()) string {
	id, _ := r.add("", chord, fn)
	return id
}

// Replace registers a watcher under name, removing any earlier watcher with
// the same name in the same step. fn has the same contract as in Register.
func (r *Registry) Replace(name string, chord keys.Chord, fn func()) (id string, replaced bool) {
	return r.add(name, chord, fn)
}

func (r *Registry) add(name string, chord keys.Chord, fn func()) (string, bool) {
	e := &entry{
		Watcher: Watcher{ID: uuid.NewString(), Name: name, Chord: keys.NewChord(chord...)},
		fn:      fn,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cur := *r.list.Load()
	next := make([]*entry, 0, len(cur)+1)
	replaced := false
	for _, old := range cur {
		if name != "" && old.Name == name {
			replaced = true
			continue
		}
		next = append(next, old)
	}
	next = append(next, e)
	r.list.Store(&next)
	return e.ID, replaced
}

func (r *Registry) Unregister(id string) error {
	return r.remove(func(e *entry) bool { return e.ID == id }, id)
}

func (r *Registry) UnregisterName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrNotFound)
	}
	return r.remove(func(e *entry) bool { return e.Name == name }, name)
}

func (r *Registry) remove(match func(*entry) bool, what string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := *r.list.Load()
	i := slices.IndexFunc(cur, match)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	next := slices.Concat(cur[:i], cur[i+1:])
	r.list.Store(&next)
	return nil
}

// Lookup returns the watcher registered under name.
func (r *Registry) Lookup(name string) (Watcher, bool) {
	for _, e := range *r.list.Load() {
		if e.Name == name {
			return e.Watcher, true
		}
	}
	return Watcher{}, false
}

// Watchers returns a copy of the registered watchers in registration order.
func (r *Registry) Watchers() []Watcher {
	cur := *r.list.Load()
	out := make([]Watcher, len(cur))
	for i, e := range cur {
		out[i] = e.Watcher
		out[i].Chord = slices.Clone(e.Chord)
	}
	return out
}

func (r *Registry) Len() int {
	return len(*r.list.Load())
}

// Dispatch fires every watcher whose chord is held and returns how many
// fired. Watchers with an empty chord never fire.
func (r *Registry) Dispatch(pressed *PressedKeySet) int {
	fired := 0
	for _, e := range *r.list.Load() {
		if len(e.Chord) == 0 || !pressed.ContainsAll(e.Chord) {
			e.active.Store(false)
			continue
		}
		if e.active.Swap(true) && r.mode == FireOnPress {
			continue
		}
		if r.fire(e) {
			fired++
		}
	}
	return fired
}

func (r *Registry) fire(e *entry) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("watcher %s (%s) panicked: %v\n%s", e.ID, e.Chord, p, debug.Stack())
			ok = false
		}
	}()
	e.fn()
	return true
}
