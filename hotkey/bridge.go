package hotkey

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"mediakeyd/keys"
	"mediakeyd/log"
)

// Window message ids carried by WH_KEYBOARD_LL events.
const (
	wmKeyDown    = 0x0100
	wmKeyUp      = 0x0101
	wmSysKeyDown = 0x0104
	wmSysKeyUp   = 0x0105
)

// llkhfInjected marks events synthesised by SendInput/keybd_event.
const llkhfInjected = 0x10

// KindFromMessage classifies a low-level keyboard message id.
func KindFromMessage(msg uint32) Kind {
	switch msg {
	case wmKeyDown, wmSysKeyDown:
		return KindKeyDown
	case wmKeyUp, wmSysKeyUp:
		return KindKeyUp
	}
	return KindOther
}

// rawKeyboardEvent mirrors KBDLLHOOKSTRUCT.
type rawKeyboardEvent struct {
	VkCode    uint32
	ScanCode  uint32
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

// decodeKeyboardEvent validates a hook payload. Unknown message ids,
// injected key-downs and codes outside the one-byte virtual-key range are
// not actionable. Injected key-ups pass: a physical press may be released by
// a remapper or a remote session, and Release ignores keys that are not held.
func decodeKeyboardEvent(msg uint32, raw *rawKeyboardEvent) (Event, bool) {
	kind := KindFromMessage(msg)
	if kind == KindOther || raw == nil {
		return Event{}, false
	}
	if kind == KindKeyDown && raw.Flags&llkhfInjected != 0 {
		return Event{}, false
	}
	if raw.VkCode == 0 || raw.VkCode > 0xFF {
		return Event{}, false
	}
	return Event{Kind: kind, Code: raw.VkCode}, true
}

type bridgeState int

const (
	stUninstalled bridgeState = iota
	stInstalled
)

// Bridge owns the pressed-key state and connects a Hook to a Registry.
type Bridge struct {
	hook     Hook
	registry *Registry
	pressed  PressedKeySet

	// lifecycle serialises Listen and Close so an uninstall never overtakes
	// an install that is still running.
	lifecycle sync.Mutex

	// mu is held for the whole of each event so Close can wait out an
	// event in flight.
	mu    sync.Mutex
	state bridgeState

	events atomic.Int64
	fired  atomic.Int64
}

func NewBridge(hook Hook, registry *Registry) *Bridge {
	return &Bridge{hook: hook, registry: registry}
}

// Listen installs the hook. It is valid once per Close. Like Close, it
// must not be called from inside a watcher callback.
func (b *Bridge) Listen() error {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	b.mu.Lock()
	if b.state == stInstalled {
		b.mu.Unlock()
		return ErrAlreadyInstalled
	}
	b.state = stInstalled
	b.mu.Unlock()

	if err := b.hook.Install(b.Handle); err != nil {
		b.mu.Lock()
		b.state = stUninstalled
		b.mu.Unlock()
		log.HookState("install_failed", err)
		return err
	}
	log.HookState("installed", nil)
	return nil
}

// Close uninstalls the hook. Once it returns no watcher fires. It waits for
// the event in flight, so a watcher callback that wants to stop listening
// must call it on another goroutine (go b.Close()).
func (b *Bridge) Close() error {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	b.mu.Lock()
	if b.state != stInstalled {
		b.mu.Unlock()
		return nil
	}
	b.state = stUninstalled
	b.pressed.Reset()
	b.mu.Unlock()

	err := b.hook.Uninstall()
	log.HookState("uninstalled", err)
	return err
}

func (b *Bridge) Installed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stInstalled
}

// Handle applies one event: update the pressed set, then dispatch. It never
// panics, so the platform hook can always pass the event on afterwards.
func (b *Bridge) Handle(ev Event) {
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("keyboard event %s 0x%X: %v\n%s", ev.Kind, ev.Code, p, debug.Stack())
		}
	}()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stInstalled {
		return
	}

	key := keys.FromVirtualKey(ev.Code)
	switch ev.Kind {
	case KindKeyDown:
		b.pressed.Press(key)
	case KindKeyUp:
		b.pressed.Release(key)
	default:
		return
	}
	b.events.Add(1)
	if n := b.registry.Dispatch(&b.pressed); n > 0 {
		b.fired.Add(int64(n))
	}
}

// Pressed returns a snapshot of the held keys.
func (b *Bridge) Pressed() []keys.Key {
	return b.pressed.Snapshot()
}

// Stats reports events handled and watcher fires since creation.
func (b *Bridge) Stats() (events, fired int64) {
	return b.events.Load(), b.fired.Load()
}
