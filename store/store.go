// Package store persists media hotkey bindings: a JSON file mapping each
// source to its actions and their chords. The file is rewritten whole on
// every change.
package store

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"mediakeyd/keys"
	"mediakeyd/media"
)

var ErrNotFound = errors.New("binding not found")

// Map is source -> action name -> chord.
type Map map[string]map[string]keys.Chord

// Clone returns a deep copy.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for source, actions := range m {
		inner := make(map[string]keys.Chord, len(actions))
		for action, chord := range actions {
			inner[action] = slices.Clone(chord)
		}
		out[source] = inner
	}
	return out
}

func (m Map) set(source, action string, chord keys.Chord) {
	if m[source] == nil {
		m[source] = make(map[string]keys.Chord)
	}
	m[source][action] = slices.Clone(chord)
}

func (m Map) delete(source, action string) bool {
	actions, ok := m[source]
	if !ok {
		return false
	}
	if _, ok := actions[action]; !ok {
		return false
	}
	delete(actions, action)
	if len(actions) == 0 {
		delete(m, source)
	}
	return true
}

// Binding is one flattened entry of a Map.
type Binding struct {
	Source string
	Action media.Action
	Chord  keys.Chord
}

// Key names the binding; watchers and dispatch queues use it.
func (b Binding) Key() string {
	return b.Source + "/" + b.Action.String()
}

// Bindings flattens m, sorted by source then action order. Entries whose
// action name is not a known action are left out.
func (m Map) Bindings() []Binding {
	var out []Binding
	for source, actions := range m {
		for name, chord := range actions {
			a, err := media.ParseAction(name)
			if err != nil {
				continue
			}
			out = append(out, Binding{Source: source, Action: a, Chord: slices.Clone(chord)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return slices.Index(media.Actions, out[i].Action) < slices.Index(media.Actions, out[j].Action)
	})
	return out
}

// LoadError reports a store that could not be read, or entries that were
// skipped while reading it. It is never fatal.
type LoadError struct {
	Path    string
	Err     error
	Skipped []string
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load hotkeys %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("load hotkeys %s: skipped %s", e.Path, strings.Join(e.Skipped, "; "))
}

func (e *LoadError) Unwrap() error { return e.Err }

// WriteError reports a failed rewrite. The in-memory bindings already hold
// the change; the file does not.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("save hotkeys %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Decode parses the file format. Entries with an unknown action or key are
// dropped and described in skipped.
func Decode(data []byte) (m Map, skipped []string, err error) {
	var raw map[string]map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return Map{}, nil, err
	}
	m = make(Map, len(raw))
	for source, actions := range raw {
		for name, keyNames := range actions {
			if _, err := media.ParseAction(name); err != nil {
				skipped = append(skipped, fmt.Sprintf("%s/%s: %v", source, name, err))
				continue
			}
			chord, err := parseChord(keyNames)
			if err != nil {
				skipped = append(skipped, fmt.Sprintf("%s/%s: %v", source, name, err))
				continue
			}
			m.set(source, name, chord)
		}
	}
	sort.Strings(skipped)
	return m, skipped, nil
}

func parseChord(names []string) (keys.Chord, error) {
	ks := make([]keys.Key, 0, len(names))
	for _, n := range names {
		k, err := keys.ParseKey(n)
		if err != nil {
			return nil, err
		}
		ks = append(ks, k)
	}
	chord := keys.NewChord(ks...)
	if err := chord.Validate(); err != nil {
		return nil, err
	}
	return chord, nil
}

// Encode renders m in the file format: indented JSON with sorted object
// keys and chords in stored order.
func Encode(m Map) ([]byte, error) {
	if m == nil {
		m = Map{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Load reads path. On a missing or malformed file it returns an empty map
// and a *LoadError.
func Load(path string) (Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Map{}, &LoadError{Path: path, Err: err}
	}
	m, skipped, err := Decode(data)
	if err != nil {
		return Map{}, &LoadError{Path: path, Err: err}
	}
	if len(skipped) > 0 {
		return m, &LoadError{Path: path, Skipped: skipped}
	}
	return m, nil
}

// Save rewrites path atomically.
func Save(path string, m Map) error {
	data, err := Encode(m)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := writeAtomic(path, data); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".mediakeyd-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Store is the in-memory bindings plus their file. Writers in other
// processes are serialised through an advisory lock next to the file.
type Store struct {
	path string
	lock *flock.Flock

	mu   sync.Mutex
	m    Map
	hash [sha256.Size]byte
	// dirty means m holds content adopted from disk that watchers have
	// not been told about.
	dirty bool
}

// Open loads path. The returned Store is always usable; a non-nil error is
// a *LoadError and the store starts with whatever could be read.
func Open(path string) (*Store, error) {
	path = filepath.Clean(path)
	s := &Store{
		path: path,
		lock: flock.New(path + ".lock"),
		m:    Map{},
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s, &LoadError{Path: path, Err: err}
	}
	m, skipped, err := Decode(data)
	if err != nil {
		return s, &LoadError{Path: path, Err: err}
	}
	s.m = m
	s.hash = sha256.Sum256(data)
	if len(skipped) > 0 {
		return s, &LoadError{Path: path, Skipped: skipped}
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Map returns a copy of the current bindings.
func (s *Store) Map() Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Clone()
}

func (s *Store) Bindings() []Binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Bindings()
}

// Chord returns the chord stored for source and action.
func (s *Store) Chord(source string, action media.Action) (keys.Chord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[source][action.String()]
	return slices.Clone(c), ok
}

// Record sets the chord for source and action and rewrites the file.
func (s *Store) Record(source string, action media.Action, chord keys.Chord) error {
	if source == "" {
		return errors.New("empty source")
	}
	if !action.Valid() {
		return fmt.Errorf("unknown action %q", action)
	}
	chord = keys.NewChord(chord...)
	if err := chord.Validate(); err != nil {
		return err
	}
	return s.mutate(func(m Map) error {
		m.set(source, action.String(), chord)
		return nil
	})
}

// Remove deletes the binding for source and action and rewrites the file.
func (s *Store) Remove(source string, action media.Action) error {
	return s.mutate(func(m Map) error {
		if !m.delete(source, action.String()) {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, source, action)
		}
		return nil
	})
}

func (s *Store) mutate(apply func(Map) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return &WriteError{Path: s.path, Err: fmt.Errorf("lock: %w", err)}
	}
	defer s.lock.Unlock()

	s.adoptDiskLocked()
	if err := apply(s.m); err != nil {
		return err
	}
	data, err := Encode(s.m)
	if err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	if err := writeAtomic(s.path, data); err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	s.hash = sha256.Sum256(data)
	return nil
}

// adoptDiskLocked picks up edits another process made since our last read
// or write, so a rewrite does not discard them.
func (s *Store) adoptDiskLocked() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	h := sha256.Sum256(data)
	if h == s.hash {
		return
	}
	m, _, err := Decode(data)
	if err != nil {
		return
	}
	s.m = m
	s.hash = h
	s.dirty = true
}

// Reload rereads the file. changed is false when the content is what this
// store last read or wrote. A missing file is not a change; editors remove
// and recreate files while saving.
func (s *Store) Reload() (m Map, changed bool, err error) {
	if err := s.lock.RLock(); err == nil {
		defer s.lock.Unlock()
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, &LoadError{Path: s.path, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	h := sha256.Sum256(data)
	if h == s.hash && !s.dirty {
		return nil, false, nil
	}
	decoded, skipped, err := Decode(data)
	if err != nil {
		return nil, false, &LoadError{Path: s.path, Err: err}
	}
	s.m = decoded
	s.hash = h
	s.dirty = false
	if len(skipped) > 0 {
		err = &LoadError{Path: s.path, Skipped: skipped}
	}
	return decoded.Clone(), true, err
}
