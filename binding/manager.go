// Package binding ties stored media bindings to live hotkey watchers.
package binding

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"mediakeyd/hotkey"
	"mediakeyd/keys"
	"mediakeyd/log"
	"mediakeyd/media"
	"mediakeyd/store"
)

var ErrNotBound = errors.New("no such binding")

// Manager keeps the registry, the store and the dispatch pool in step.
// Every binding is a named watcher "source/action"; its callback only
// queues a job on the pool.
type Manager struct {
	registry *hotkey.Registry
	store    *store.Store
	pool     *media.Pool

	mu       sync.Mutex
	attached map[string]store.Binding
}

func NewManager(registry *hotkey.Registry, st *store.Store, pool *media.Pool) *Manager {
	return &Manager{
		registry: registry,
		store:    st,
		pool:     pool,
		attached: make(map[string]store.Binding),
	}
}

func validate(source string, chord keys.Chord, action media.Action) error {
	if source == "" {
		return errors.New("empty source")
	}
	if !action.Valid() {
		return fmt.Errorf("unknown action %q", action)
	}
	return chord.Validate()
}

// SubscribeMedia binds chord to action on source. The watcher goes live
// before the store is written; a *store.WriteError means the binding works
// now but will not survive a restart.
func (m *Manager) SubscribeMedia(source string, chord keys.Chord, action media.Action) error {
	chord = keys.NewChord(chord...)
	if err := validate(source, chord, action); err != nil {
		return err
	}
	m.mu.Lock()
	m.attach(store.Binding{Source: source, Action: action, Chord: chord})
	m.mu.Unlock()

	if err := m.store.Record(source, action, chord); err != nil {
		log.Errorf("subscribe %s/%s: %v", source, action, err)
		return err
	}
	log.Info(fmt.Sprintf("bound %s to %s %s", chord, source, action))
	return nil
}

// UnsubscribeMedia removes the binding from the registry and the store.
func (m *Manager) UnsubscribeMedia(source string, action media.Action) error {
	b := store.Binding{Source: source, Action: action}
	m.mu.Lock()
	live := m.detach(b.Key())
	m.mu.Unlock()

	err := m.store.Remove(source, action)
	if errors.Is(err, store.ErrNotFound) {
		if live {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrNotBound, b.Key())
	}
	if err != nil {
		log.Errorf("unsubscribe %s: %v", b.Key(), err)
		return err
	}
	log.Info("unbound " + b.Key())
	return nil
}

// Restore attaches one watcher per stored binding. It is the startup half of
// reconciliation and returns how many bindings are live.
func (m *Manager) Restore(bindings store.Map) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range bindings.Bindings() {
		m.attach(b)
	}
	return len(m.attached)
}

// Reconcile makes the live watchers match bindings: removed entries are
// detached, new or changed ones attached, unchanged ones left alone.
func (m *Manager) Reconcile(bindings store.Map) (added, removed int) {
	want := make(map[string]store.Binding)
	for _, b := range bindings.Bindings() {
		want[b.Key()] = b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.attached {
		if _, ok := want[name]; !ok {
			m.detach(name)
			removed++
		}
	}
	for name, b := range want {
		cur, ok := m.attached[name]
		if ok && cur.Chord.Equal(b.Chord) {
			continue
		}
		m.attach(b)
		added++
	}
	if added > 0 || removed > 0 {
		log.Info(fmt.Sprintf("reconciled bindings: %d attached, %d detached", added, removed))
	}
	return added, removed
}

// Bindings lists the live bindings sorted by key.
func (m *Manager) Bindings() []store.Binding {
	m.mu.Lock()
	out := make([]store.Binding, 0, len(m.attached))
	for _, b := range m.attached {
		out = append(out, b)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// attach must be called with m.mu held.
func (m *Manager) attach(b store.Binding) {
	name := b.Key()
	job := media.Job{Source: b.Source, Action: b.Action, Chord: b.Chord.String()}
	m.registry.Replace(name, b.Chord, func() {
		log.ActionFired(job.Source, job.Action.String(), job.Chord)
		m.pool.Submit(name, job)
	})
	m.attached[name] = b
}

// detach must be called with m.mu held.
func (m *Manager) detach(name string) bool {
	_, live := m.attached[name]
	delete(m.attached, name)
	if err := m.registry.UnregisterName(name); err != nil && !errors.Is(err, hotkey.ErrNotFound) {
		log.Warnf("detach %s: %v", name, err)
	}
	m.pool.Retire(name)
	return live
}
