package hotkey

import (
	"sync"

	"mediakeyd/keys"
)

// FakeHook delivers simulated events synchronously on the caller's
// goroutine.
type FakeHook struct {
	mu         sync.Mutex
	handler    func(Event)
	installErr error
	installs   int
	gate       <-chan struct{}
	holding    bool
}

func NewFake() *FakeHook {
	return &FakeHook{}
}

// FailInstall makes the next Install calls return err.
func (f *FakeHook) FailInstall(err error) {
	f.mu.Lock()
	f.installErr = err
	f.mu.Unlock()
}

// HoldInstall makes Install wait until gate is closed, like a hook thread
// that is slow to come up.
func (f *FakeHook) HoldInstall(gate <-chan struct{}) {
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()
}

func (f *FakeHook) Install(handler func(Event)) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		f.mu.Lock()
		f.holding = true
		f.mu.Unlock()
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.holding = false
	if f.installErr != nil {
		return &InstallError{Err: f.installErr}
	}
	if f.handler != nil {
		return ErrAlreadyInstalled
	}
	f.handler = handler
	f.installs++
	return nil
}

func (f *FakeHook) Uninstall() error {
	f.mu.Lock()
	f.handler = nil
	f.mu.Unlock()
	return nil
}

// Holding reports whether an Install call is waiting on the HoldInstall gate.
func (f *FakeHook) Holding() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holding
}

// Installed reports whether a handler is currently installed.
func (f *FakeHook) Installed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler != nil
}

func (f *FakeHook) Installs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installs
}

// SimMessage feeds a raw message id and virtual-key code through the same
// decode step the Windows hook uses.
func (f *FakeHook) SimMessage(msg, vk uint32) {
	f.SimMessageFlags(msg, vk, 0)
}

// SimInjected feeds a message flagged as synthesised input.
func (f *FakeHook) SimInjected(msg, vk uint32) {
	f.SimMessageFlags(msg, vk, llkhfInjected)
}

func (f *FakeHook) SimMessageFlags(msg, vk, flags uint32) {
	ev, ok := decodeKeyboardEvent(msg, &rawKeyboardEvent{VkCode: vk, Flags: flags})
	if !ok {
		return
	}
	f.deliver(ev)
}

func (f *FakeHook) SimPress(k keys.Key) {
	vk, _ := keys.VirtualKey(k)
	f.deliver(Event{Kind: KindKeyDown, Code: vk})
}

func (f *FakeHook) SimRelease(k keys.Key) {
	vk, _ := keys.VirtualKey(k)
	f.deliver(Event{Kind: KindKeyUp, Code: vk})
}

func (f *FakeHook) deliver(ev Event) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(ev)
	}
}
