package keys

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Chord is a set of keys that must be held together. Order is kept for
// display and storage but does not affect matching.
type Chord []Key

// NewChord builds a chord, dropping duplicates while keeping the first
// occurrence of each key. Unknown keys with a named code become that key.
func NewChord(ks ...Key) Chord {
	out := make(Chord, 0, len(ks))
	for _, k := range ks {
		k = k.Canonical()
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

// ParseChord parses "ControlLeft+Space" style chords.
func ParseChord(s string) (Chord, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("empty chord")
	}
	parts := strings.Split(s, "+")
	ks := make([]Key, 0, len(parts))
	for _, p := range parts {
		k, err := ParseKey(p)
		if err != nil {
			return nil, err
		}
		ks = append(ks, k)
	}
	return NewChord(ks...), nil
}

func (c Chord) String() string {
	parts := make([]string, len(c))
	for i, k := range c {
		parts[i] = k.String()
	}
	return strings.Join(parts, "+")
}

// Validate rejects empty chords, invalid keys and Unknown keys whose code
// the keyboard hook can never report.
func (c Chord) Validate() error {
	if len(c) == 0 {
		return errors.New("chord has no keys")
	}
	for _, k := range c {
		if !k.Valid() {
			return fmt.Errorf("chord contains invalid key %d", uint64(k))
		}
		if code, ok := k.UnknownCode(); ok && (code == 0 || code > maxVirtualKey) {
			return fmt.Errorf("chord key %s is outside the virtual-key range", k)
		}
	}
	return nil
}

// Equal reports whether both chords hold the same keys, ignoring order.
func (c Chord) Equal(o Chord) bool {
	a, b := NewChord(c...), NewChord(o...)
	if len(a) != len(b) {
		return false
	}
	for _, k := range a {
		if !slices.Contains(b, k) {
			return false
		}
	}
	return true
}

func (c Chord) MarshalJSON() ([]byte, error) {
	names := make([]string, len(c))
	for i, k := range c {
		text, err := k.MarshalText()
		if err != nil {
			return nil, err
		}
		names[i] = string(text)
	}
	return json.Marshal(names)
}

func (c *Chord) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	ks := make([]Key, 0, len(names))
	for _, n := range names {
		k, err := ParseKey(n)
		if err != nil {
			return err
		}
		ks = append(ks, k)
	}
	*c = NewChord(ks...)
	return nil
}
