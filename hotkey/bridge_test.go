package hotkey

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediakeyd/keys"
)

func newTestBridge(t *testing.T, mode FireMode) (*Bridge, *FakeHook, *Registry) {
	t.Helper()
	fk := NewFake()
	reg := NewRegistry(mode)
	b := NewBridge(fk, reg)
	require.NoError(t, b.Listen())
	t.Cleanup(func() { b.Close() })
	return b, fk, reg
}

func TestBridgeRepeatFire(t *testing.T) {
	b, fk, reg := newTestBridge(t, FireRepeat)
	count := 0
	reg.Register(keys.Chord{keys.A}, func() { count++ })

	fk.SimPress(keys.A)
	assert.Equal(t, 1, count)

	// Auto-repeat while held fires again.
	fk.SimPress(keys.A)
	assert.Equal(t, 2, count)

	fk.SimRelease(keys.A)
	assert.Equal(t, 2, count)
	assert.Empty(t, b.Pressed())

	fk.SimPress(keys.A)
	assert.Equal(t, 3, count)

	events, fired := b.Stats()
	assert.Equal(t, int64(4), events)
	assert.Equal(t, int64(3), fired)
}

func TestBridgeChordNeedsAllKeys(t *testing.T) {
	b, fk, reg := newTestBridge(t, FireOnPress)
	count := 0
	reg.Register(keys.Chord{keys.ControlLeft, keys.Space}, func() { count++ })

	fk.SimPress(keys.Space)
	assert.Equal(t, 0, count)
	fk.SimPress(keys.ControlLeft)
	assert.Equal(t, 1, count)
	fk.SimPress(keys.ControlLeft)
	assert.Equal(t, 1, count)
	assert.Equal(t, []keys.Key{keys.Space, keys.ControlLeft}, b.Pressed())
}

func TestBridgeMessageDecoding(t *testing.T) {
	b, fk, reg := newTestBridge(t, FireRepeat)
	count := 0
	reg.Register(keys.Chord{keys.Alt, keys.F4}, func() { count++ })

	fk.SimMessage(wmSysKeyDown, 0xA4)
	fk.SimMessage(wmSysKeyDown, 0x73)
	assert.Equal(t, 1, count)

	fk.SimMessage(wmSysKeyUp, 0x73)
	assert.Equal(t, []keys.Key{keys.Alt}, b.Pressed())

	// Non-keyboard messages are passed over.
	fk.SimMessage(0x0200, 0x73)
	assert.Equal(t, []keys.Key{keys.Alt}, b.Pressed())
	fk.SimMessage(wmKeyUp, 0xA4)
	assert.Empty(t, b.Pressed())
}

func TestDecodeKeyboardEvent(t *testing.T) {
	ev, ok := decodeKeyboardEvent(wmKeyDown, &rawKeyboardEvent{VkCode: 0x41})
	require.True(t, ok)
	assert.Equal(t, Event{Kind: KindKeyDown, Code: 0x41}, ev)

	_, ok = decodeKeyboardEvent(wmKeyDown, nil)
	assert.False(t, ok)
	_, ok = decodeKeyboardEvent(wmKeyDown, &rawKeyboardEvent{VkCode: 0x41, Flags: llkhfInjected})
	assert.False(t, ok)
	_, ok = decodeKeyboardEvent(wmSysKeyDown, &rawKeyboardEvent{VkCode: 0x41, Flags: llkhfInjected})
	assert.False(t, ok)
	ev, ok = decodeKeyboardEvent(wmKeyUp, &rawKeyboardEvent{VkCode: 0x41, Flags: llkhfInjected})
	require.True(t, ok)
	assert.Equal(t, Event{Kind: KindKeyUp, Code: 0x41}, ev)
	_, ok = decodeKeyboardEvent(wmKeyDown, &rawKeyboardEvent{VkCode: 0})
	assert.False(t, ok)
	_, ok = decodeKeyboardEvent(wmKeyDown, &rawKeyboardEvent{VkCode: 0x1FF})
	assert.False(t, ok)
	_, ok = decodeKeyboardEvent(0x0200, &rawKeyboardEvent{VkCode: 0x41})
	assert.False(t, ok)
}

func TestBridgeUnknownCode(t *testing.T) {
	b, _, reg := newTestBridge(t, FireRepeat)
	count := 0
	reg.Register(keys.Chord{keys.Unknown(0xFF)}, func() { count++ })

	b.Handle(Event{Kind: KindKeyDown, Code: 0xFF})
	assert.Equal(t, 1, count)
	assert.Equal(t, []keys.Key{keys.Unknown(0xFF)}, b.Pressed())
}

func TestBridgeListenTwice(t *testing.T) {
	b, fk, _ := newTestBridge(t, FireRepeat)
	assert.ErrorIs(t, b.Listen(), ErrAlreadyInstalled)
	assert.Equal(t, 1, fk.Installs())
	assert.True(t, b.Installed())
}

func TestBridgeInstallFailure(t *testing.T) {
	fk := NewFake()
	fk.FailInstall(errors.New("access denied"))
	b := NewBridge(fk, NewRegistry(FireRepeat))

	err := b.Listen()
	var ie *InstallError
	require.ErrorAs(t, err, &ie)
	assert.False(t, b.Installed())

	fk.FailInstall(nil)
	require.NoError(t, b.Listen())
	assert.NoError(t, b.Close())
}

func TestBridgeNoDispatchAfterClose(t *testing.T) {
	fk := NewFake()
	reg := NewRegistry(FireRepeat)
	b := NewBridge(fk, reg)
	require.NoError(t, b.Listen())

	count := 0
	reg.Register(keys.Chord{keys.A}, func() { count++ })
	fk.SimPress(keys.A)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	// Events delivered after Close are dropped even if the hook still
	// holds the handler.
	b.Handle(Event{Kind: KindKeyDown, Code: 0x41})
	assert.Equal(t, 1, count)
	assert.Empty(t, b.Pressed())

	// Reinstall starts from an empty pressed set.
	require.NoError(t, b.Listen())
	fk.SimRelease(keys.A)
	fk.SimPress(keys.A)
	assert.Equal(t, 2, count)
	require.NoError(t, b.Close())
}

func TestBridgeCloseWaitsForInFlightEvent(t *testing.T) {
	b, fk, reg := newTestBridge(t, FireRepeat)
	entered := make(chan struct{})
	release := make(chan struct{})
	reg.Register(keys.Chord{keys.A}, func() {
		close(entered)
		<-release
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		fk.SimPress(keys.A)
	}()
	<-entered

	closed := make(chan struct{})
	go func() {
		b.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a dispatch was running")
	default:
	}
	close(release)
	<-closed
	wg.Wait()
	assert.False(t, b.Installed())
}

func TestBridgeSurvivesPanickingWatcher(t *testing.T) {
	b, fk, reg := newTestBridge(t, FireRepeat)
	reg.Register(keys.Chord{keys.A}, func() { panic("boom") })

	assert.NotPanics(t, func() { fk.SimPress(keys.A) })
	assert.Equal(t, []keys.Key{keys.A}, b.Pressed())
}

func TestBridgeInjectedReleaseClearsKey(t *testing.T) {
	b, fk, reg := newTestBridge(t, FireRepeat)
	count := 0
	reg.Register(keys.Chord{keys.A}, func() { count++ })

	fk.SimMessage(wmKeyDown, 0x41)
	fk.SimInjected(wmKeyUp, 0x41)
	assert.Empty(t, b.Pressed())

	fk.SimMessage(wmKeyDown, 0x42)
	fk.SimMessage(wmKeyUp, 0x42)
	assert.Equal(t, 1, count)

	// Synthesised presses still never reach the watchers.
	fk.SimInjected(wmKeyDown, 0x41)
	assert.Empty(t, b.Pressed())
	assert.Equal(t, 1, count)
}

func TestBridgeCloseWaitsForListen(t *testing.T) {
	fk := NewFake()
	b := NewBridge(fk, NewRegistry(FireRepeat))
	gate := make(chan struct{})
	fk.HoldInstall(gate)

	listened := make(chan error, 1)
	go func() { listened <- b.Listen() }()
	time.Sleep(20 * time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- b.Close() }()
	time.Sleep(20 * time.Millisecond)
	select {
	case <-closed:
		t.Fatal("Close ran while Install was still in progress")
	default:
	}

	close(gate)
	require.NoError(t, <-listened)
	require.NoError(t, <-closed)
	assert.False(t, b.Installed())
	assert.False(t, fk.Installed(), "hook left installed after Close")
}

func TestBridgeCloseFromWatcherGoroutine(t *testing.T) {
	b, fk, reg := newTestBridge(t, FireRepeat)
	done := make(chan error, 1)
	reg.Register(keys.Chord{keys.Escape}, func() {
		go func() { done <- b.Close() }()
	})

	fk.SimPress(keys.Escape)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close started from a watcher did not finish")
	}
	assert.False(t, b.Installed())
	assert.False(t, fk.Installed())
}
