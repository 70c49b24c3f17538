// Package keys defines the platform-neutral key model: Key identities,
// chords of keys and the translation from Windows virtual-key codes.
package keys

import (
	"fmt"
	"strconv"
	"strings"
)

// Key identifies a physical key. Named keys are the constants below; any
// other platform code is carried by Unknown.
type Key uint64

// unknownTag marks keys built by Unknown. Named keys are small integers, so
// the two ranges never overlap.
const unknownTag Key = 1 << 32

const (
	invalid Key = iota

	A
	B
	C
	D
	E
	F
	G
	H
	I
	J
	K
	L
	M
	N
	O
	P
	Q
	R
	S
	T
	U
	V
	W
	X
	Y
	Z

	Num0
	Num1
	Num2
	Num3
	Num4
	Num5
	Num6
	Num7
	Num8
	Num9

	ShiftLeft
	ShiftRight
	ControlLeft
	ControlRight
	Alt
	AltGr
	MetaLeft
	MetaRight
	Apps

	CapsLock
	NumLock
	ScrollLock

	Backspace
	Tab
	Return
	Pause
	Escape
	Space
	PageUp
	PageDown
	End
	Home
	LeftArrow
	UpArrow
	RightArrow
	DownArrow
	PrintScreen
	Insert
	Delete

	F1
	F2
	F3
	F4
	F5
	F6
	F7
	F8
	F9
	F10
	F11
	F12
	F13
	F14
	F15
	F16
	F17
	F18
	F19
	F20
	F21
	F22
	F23
	F24

	Kp0
	Kp1
	Kp2
	Kp3
	Kp4
	Kp5
	Kp6
	Kp7
	Kp8
	Kp9
	KpMultiply
	KpPlus
	KpMinus
	KpDelete
	KpDivide

	SemiColon
	Equal
	Comma
	Minus
	Dot
	Slash
	BackQuote
	LeftBracket
	BackSlash
	RightBracket
	Quote
	IntlBackslash

	VolumeMute
	VolumeDown
	VolumeUp
	MediaNextTrack
	MediaPrevTrack
	MediaStop
	MediaPlayPause

	numNamed
)

// Unknown returns the key for a platform code with no named identity.
func Unknown(code uint32) Key {
	return unknownTag | Key(code)
}

// UnknownCode reports the raw code carried by an Unknown key.
func (k Key) UnknownCode() (uint32, bool) {
	if k&unknownTag == 0 {
		return 0, false
	}
	return uint32(k), true
}

// Canonical maps an Unknown key whose code has a name to that named key, so
// Unknown(0x41) and A are the same key.
func (k Key) Canonical() Key {
	if code, ok := k.UnknownCode(); ok {
		if named, ok := byVK[code]; ok {
			return named
		}
	}
	return k
}

// Valid reports whether k is a named key or an Unknown key.
func (k Key) Valid() bool {
	if _, ok := k.UnknownCode(); ok {
		return k>>33 == 0
	}
	return k > invalid && k < numNamed
}

func (k Key) String() string {
	if code, ok := k.UnknownCode(); ok {
		return "Unknown(" + strconv.FormatUint(uint64(code), 10) + ")"
	}
	if k.Valid() {
		return names[k]
	}
	return fmt.Sprintf("Key(%d)", uint64(k))
}

// ParseKey is the inverse of Key.String.
func ParseKey(name string) (Key, error) {
	name = strings.TrimSpace(name)
	if k, ok := byName[name]; ok {
		return k, nil
	}
	if inner, ok := strings.CutPrefix(name, "Unknown("); ok {
		if digits, ok := strings.CutSuffix(inner, ")"); ok {
			code, err := strconv.ParseUint(digits, 10, 32)
			if err == nil {
				return Unknown(uint32(code)).Canonical(), nil
			}
		}
	}
	return invalid, fmt.Errorf("unknown key name %q", name)
}

// MarshalText encodes the key as its canonical name.
func (k Key) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("cannot encode invalid key %d", uint64(k))
	}
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
