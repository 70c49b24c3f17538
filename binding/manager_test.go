package binding

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediakeyd/hotkey"
	"mediakeyd/keys"
	"mediakeyd/media"
	"mediakeyd/store"
)

type rig struct {
	hook     *hotkey.FakeHook
	bridge   *hotkey.Bridge
	registry *hotkey.Registry
	recorder *media.Recorder
	pool     *media.Pool
	store    *store.Store
	manager  *Manager
}

func newRig(t *testing.T, path string, mode hotkey.FireMode) *rig {
	t.Helper()
	r := &rig{
		hook:     hotkey.NewFake(),
		registry: hotkey.NewRegistry(mode),
		recorder: media.NewRecorder("App.Exe", "Other.Exe"),
	}
	r.bridge = hotkey.NewBridge(r.hook, r.registry)
	r.pool = media.NewPool(r.recorder, media.PoolOptions{Timeout: time.Second})
	r.store, _ = store.Open(path)
	r.manager = NewManager(r.registry, r.store, r.pool)
	require.NoError(t, r.bridge.Listen())
	t.Cleanup(func() {
		r.bridge.Close()
		r.pool.Close()
	})
	return r
}

func (r *rig) tap(k keys.Key) {
	r.hook.SimPress(k)
	r.hook.SimRelease(k)
}

func expectInvocation(t *testing.T, r *media.Recorder, want media.Invocation) {
	t.Helper()
	select {
	case got := <-r.Invoked():
		assert.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %v", want)
	}
}

func expectNoInvocation(t *testing.T, r *media.Recorder) {
	t.Helper()
	select {
	case got := <-r.Invoked():
		t.Fatalf("unexpected invocation %v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func storePath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "media_hotkeys.json")
}

func TestSubscribeFiresAndPersists(t *testing.T) {
	path := storePath(t)
	r := newRig(t, path, hotkey.FireRepeat)

	require.NoError(t, r.manager.SubscribeMedia("App.Exe", keys.Chord{keys.A}, media.Play))

	r.hook.SimPress(keys.A)
	expectInvocation(t, r.recorder, media.Invocation{Source: "App.Exe", Action: media.Play})
	expectNoInvocation(t, r.recorder)
	r.hook.SimRelease(keys.A)
	expectNoInvocation(t, r.recorder)
	r.hook.SimPress(keys.A)
	expectInvocation(t, r.recorder, media.Invocation{Source: "App.Exe", Action: media.Play})
	expectNoInvocation(t, r.recorder)

	m, err := store.Load(path)
	require.NoError(t, err)
	assert.Equal(t, keys.Chord{keys.A}, m["App.Exe"]["Play"])
}

func TestSubscribeRejectsBadInput(t *testing.T) {
	r := newRig(t, storePath(t), hotkey.FireRepeat)
	assert.Error(t, r.manager.SubscribeMedia("", keys.Chord{keys.A}, media.Play))
	assert.Error(t, r.manager.SubscribeMedia("App.Exe", nil, media.Play))
	assert.Error(t, r.manager.SubscribeMedia("App.Exe", keys.Chord{keys.A}, media.Action("Rewind")))
	assert.Equal(t, 0, r.registry.Len())
}

func TestChordFiresOnlyWhenComplete(t *testing.T) {
	r := newRig(t, storePath(t), hotkey.FireOnPress)
	require.NoError(t, r.manager.SubscribeMedia("App.Exe", keys.Chord{keys.ControlLeft, keys.Space}, media.Next))

	r.tap(keys.Space)
	expectNoInvocation(t, r.recorder)

	r.hook.SimPress(keys.ControlLeft)
	r.hook.SimPress(keys.Space)
	r.hook.SimPress(keys.Space) // auto-repeat
	expectInvocation(t, r.recorder, media.Invocation{Source: "App.Exe", Action: media.Next})
	expectNoInvocation(t, r.recorder)
}

func TestRebindReplacesWatcher(t *testing.T) {
	r := newRig(t, storePath(t), hotkey.FireOnPress)
	require.NoError(t, r.manager.SubscribeMedia("App.Exe", keys.Chord{keys.A}, media.Play))
	require.NoError(t, r.manager.SubscribeMedia("App.Exe", keys.Chord{keys.B}, media.Play))
	assert.Equal(t, 1, r.registry.Len())

	r.tap(keys.A)
	expectNoInvocation(t, r.recorder)
	r.tap(keys.B)
	expectInvocation(t, r.recorder, media.Invocation{Source: "App.Exe", Action: media.Play})

	c, ok := r.store.Chord("App.Exe", media.Play)
	require.True(t, ok)
	assert.Equal(t, keys.Chord{keys.B}, c)
}

func TestUnsubscribe(t *testing.T) {
	path := storePath(t)
	r := newRig(t, path, hotkey.FireOnPress)
	require.NoError(t, r.manager.SubscribeMedia("App.Exe", keys.Chord{keys.A}, media.Play))

	require.NoError(t, r.manager.UnsubscribeMedia("App.Exe", media.Play))
	assert.ErrorIs(t, r.manager.UnsubscribeMedia("App.Exe", media.Play), ErrNotBound)
	assert.Equal(t, 0, r.registry.Len())

	r.tap(keys.A)
	expectNoInvocation(t, r.recorder)

	m, err := store.Load(path)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestRestoreAttachesEachBindingOnce(t *testing.T) {
	path := storePath(t)
	doc := `{"App.Exe": {"Play": ["A"], "Stop": ["S"]}, "Other.Exe": {"Next": ["ControlLeft", "N"]}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	r := newRig(t, path, hotkey.FireOnPress)
	assert.Equal(t, 3, r.manager.Restore(r.store.Map()))
	assert.Equal(t, 3, r.manager.Restore(r.store.Map()))
	assert.Equal(t, 3, r.registry.Len())

	r.tap(keys.S)
	expectInvocation(t, r.recorder, media.Invocation{Source: "App.Exe", Action: media.Stop})
	r.hook.SimPress(keys.ControlLeft)
	r.tap(keys.N)
	expectInvocation(t, r.recorder, media.Invocation{Source: "Other.Exe", Action: media.Next})
}

func TestReconcile(t *testing.T) {
	r := newRig(t, storePath(t), hotkey.FireOnPress)
	r.manager.Restore(store.Map{
		"App.Exe":   {"Play": {keys.A}, "Stop": {keys.S}},
		"Other.Exe": {"Next": {keys.N}},
	})

	added, removed := r.manager.Reconcile(store.Map{
		"App.Exe": {"Play": {keys.A}, "Stop": {keys.F4}},
		"New.Exe": {"Pause": {keys.P}},
	})
	assert.Equal(t, 2, added)
	assert.Equal(t, 1, removed)

	var names []string
	for _, b := range r.manager.Bindings() {
		names = append(names, b.Key())
	}
	assert.Equal(t, []string{"App.Exe/Play", "App.Exe/Stop", "New.Exe/Pause"}, names)
	assert.Equal(t, 3, r.registry.Len())

	r.tap(keys.S)
	r.tap(keys.N)
	expectNoInvocation(t, r.recorder)
	r.tap(keys.F4)
	expectInvocation(t, r.recorder, media.Invocation{Source: "App.Exe", Action: media.Stop})
}

func TestStoreWriteErrorKeepsWatcher(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	r := newRig(t, filepath.Join(blocker, "media_hotkeys.json"), hotkey.FireRepeat)

	err := r.manager.SubscribeMedia("App.Exe", keys.Chord{keys.A}, media.Play)
	var we *store.WriteError
	require.ErrorAs(t, err, &we)

	r.hook.SimPress(keys.A)
	expectInvocation(t, r.recorder, media.Invocation{Source: "App.Exe", Action: media.Play})
}

func TestMissingSourceDoesNotBlockOthers(t *testing.T) {
	r := newRig(t, storePath(t), hotkey.FireOnPress)
	require.NoError(t, r.manager.SubscribeMedia("Gone.Exe", keys.Chord{keys.G}, media.Play))
	require.NoError(t, r.manager.SubscribeMedia("App.Exe", keys.Chord{keys.H}, media.Pause))

	r.tap(keys.G)
	r.tap(keys.H)
	expectInvocation(t, r.recorder, media.Invocation{Source: "App.Exe", Action: media.Pause})
}
