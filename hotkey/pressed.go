package hotkey

import (
	"slices"
	"sync"

	"mediakeyd/keys"
)

// PressedKeySet holds the keys currently down, in arrival order. The hook
// goroutine is the only writer; everyone else reads through Snapshot.
type PressedKeySet struct {
	mu   sync.RWMutex
	keys []keys.Key
}

// Press adds k. Repeated presses of a held key are ignored.
func (p *PressedKeySet) Press(k keys.Key) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if slices.Contains(p.keys, k) {
		return false
	}
	p.keys = append(p.keys, k)
	return true
}

// Release removes k. Releasing a key that was never seen as pressed is
// ignored; the tracked state can miss events across hook reinstalls.
func (p *PressedKeySet) Release(k keys.Key) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := slices.Index(p.keys, k)
	if i < 0 {
		return false
	}
	p.keys = slices.Delete(p.keys, i, i+1)
	return true
}

// ContainsAll reports whether every key of c is held.
func (p *PressedKeySet) ContainsAll(c keys.Chord) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, k := range c {
		if !slices.Contains(p.keys, k) {
			return false
		}
	}
	return true
}

func (p *PressedKeySet) Snapshot() []keys.Key {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.keys)
}

func (p *PressedKeySet) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.keys)
}

func (p *PressedKeySet) Reset() {
	p.mu.Lock()
	p.keys = nil
	p.mu.Unlock()
}
