//go:build windows

package hotkey

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/windows"

	"mediakeyd/log"
)

const (
	whKeyboardLL = 13
	hcAction     = 0
	wmQuit       = 0x0012
	pmNoRemove   = 0x0000
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procPeekMessageW        = user32.NewProc("PeekMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
)

type winMsg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	PtX     int32
	PtY     int32
}

// The hook procedure receives no user data, so the installed hook is
// reached through active. Only one low-level hook exists per process.
var active atomic.Pointer[llHook]

var hookProc = windows.NewCallback(lowLevelKeyboardProc)

type llHook struct {
	handler  func(Event)
	threadID uint32
	done     chan struct{}
}

// New returns the WH_KEYBOARD_LL hook. It runs on its own locked OS thread
// with a message loop.
func New() Hook {
	return &llHook{}
}

func (h *llHook) Install(handler func(Event)) error {
	if !active.CompareAndSwap(nil, h) {
		return ErrAlreadyInstalled
	}
	h.handler = handler
	h.done = make(chan struct{})

	errCh := make(chan error, 1)
	go h.loop(errCh)
	if err := <-errCh; err != nil {
		<-h.done
		active.CompareAndSwap(h, nil)
		return err
	}
	return nil
}

func (h *llHook) loop(errCh chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(h.done)

	var m winMsg
	// Create the thread message queue so Uninstall can post WM_QUIT.
	procPeekMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0, pmNoRemove)
	h.threadID = windows.GetCurrentThreadId()

	hook, _, callErr := procSetWindowsHookExW.Call(whKeyboardLL, hookProc, 0, 0)
	if hook == 0 {
		errCh <- &InstallError{Err: fmt.Errorf("SetWindowsHookExW: %w", callErr)}
		return
	}
	errCh <- nil

	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		// 0 is WM_QUIT, -1 an error.
		if int32(ret) <= 0 {
			break
		}
	}
	procUnhookWindowsHookEx.Call(hook)
}

func (h *llHook) Uninstall() error {
	if active.Load() != h {
		return nil
	}
	ret, _, err := procPostThreadMessageW.Call(uintptr(h.threadID), wmQuit, 0, 0)
	if ret == 0 {
		return fmt.Errorf("PostThreadMessageW: %w", err)
	}
	<-h.done
	active.CompareAndSwap(h, nil)
	return nil
}

func lowLevelKeyboardProc(nCode, wParam, lParam uintptr) uintptr {
	if int32(nCode) == hcAction {
		if h := active.Load(); h != nil {
			deliver(h, wParam, lParam)
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
	return ret
}

func deliver(h *llHook, wParam, lParam uintptr) {
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("keyboard hook: %v\n%s", p, debug.Stack())
		}
	}()
	if lParam == 0 {
		return
	}
	raw := *(*rawKeyboardEvent)(unsafe.Pointer(lParam))
	ev, ok := decodeKeyboardEvent(uint32(wParam), &raw)
	if !ok {
		return
	}
	h.handler(ev)
}
