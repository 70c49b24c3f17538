package hotkey

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediakeyd/keys"
)

func randomKeys(r *rand.Rand, pool []keys.Key, n int) []keys.Key {
	out := make([]keys.Key, n)
	for i := range out {
		out[i] = pool[r.IntN(len(pool))]
	}
	return out
}

func TestContainsAllMatchesMembership(t *testing.T) {
	// A small pool so chords and pressed sets overlap often.
	pool := []keys.Key{keys.A, keys.B, keys.C, keys.ControlLeft, keys.ShiftLeft, keys.Space, keys.Unknown(9999)}
	r := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 2000; i++ {
		var p PressedKeySet
		held := randomKeys(r, pool, r.IntN(len(pool)+1))
		for _, k := range held {
			p.Press(k)
		}
		chord := keys.NewChord(randomKeys(r, pool, 1+r.IntN(4))...)

		want := true
		for _, k := range chord {
			if !slices.Contains(held, k) {
				want = false
			}
		}
		require.Equal(t, want, p.ContainsAll(chord), "held=%v chord=%v", held, chord)
	}
}

func TestPressReleaseRoundTrip(t *testing.T) {
	pool := keys.Named()
	r := rand.New(rand.NewPCG(3, 4))

	for i := 0; i < 500; i++ {
		var p PressedKeySet
		for _, k := range randomKeys(r, pool, r.IntN(6)) {
			p.Press(k)
		}
		before := p.Snapshot()

		k := pool[r.IntN(len(pool))]
		if slices.Contains(before, k) {
			continue
		}
		p.Press(k)
		p.Release(k)
		require.Equal(t, before, p.Snapshot())
	}
}

func TestPressIsIdempotent(t *testing.T) {
	var p PressedKeySet
	assert.True(t, p.Press(keys.A))
	assert.False(t, p.Press(keys.A))
	assert.Equal(t, 1, p.Len())

	assert.True(t, p.Release(keys.A))
	assert.Equal(t, 0, p.Len())
}

func TestReleaseUnknownIsNoop(t *testing.T) {
	var p PressedKeySet
	p.Press(keys.B)
	assert.NotPanics(t, func() {
		assert.False(t, p.Release(keys.A))
		assert.False(t, p.Release(keys.Unknown(42)))
	})
	assert.Equal(t, []keys.Key{keys.B}, p.Snapshot())
}

func TestSnapshotIsACopy(t *testing.T) {
	var p PressedKeySet
	p.Press(keys.A)
	snap := p.Snapshot()
	snap[0] = keys.Z
	assert.Equal(t, []keys.Key{keys.A}, p.Snapshot())

	p.Reset()
	assert.Empty(t, p.Snapshot())
}
