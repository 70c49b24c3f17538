//go:build windows

package media

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unsafe"

	"github.com/micmonay/keybd_event"
	"golang.org/x/sys/windows"
)

const (
	wmAppCommand = 0x0319
	gwOwner      = 4

	// keybd_event treats codes above 0xFFF as virtual-key codes rather than
	// scan codes.
	virtualKeyOffset = 0xFFF
)

var (
	user32           = windows.NewLazySystemDLL("user32.dll")
	procGetWindow    = user32.NewProc("GetWindow")
	procPostMessageW = user32.NewProc("PostMessageW")

	enumWindowsProc = windows.NewCallback(enumWindow)
)

// appWindows posts WM_APPCOMMAND to the main window of the source process,
// so the command reaches that player and Play and Pause stay distinct. A
// source is a process image name such as "Spotify.exe". Players without a
// visible top-level window get Stop, Next and Previous through the global
// media keys; Play and Pause fail for them.
type appWindows struct {
	mu sync.Mutex
	kb keybd_event.KeyBonding
}

type processHandle struct {
	source string
	pids   []uint32
}

func (h processHandle) Source() string { return h.source }

func NewSystem() (System, error) {
	if err := procPostMessageW.Find(); err != nil {
		return nil, fmt.Errorf("load user32: %w", err)
	}
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("init key sender: %w", err)
	}
	return &appWindows{kb: kb}, nil
}

func matchesSource(exe, source string) bool {
	return strings.EqualFold(exe, source) || strings.EqualFold(exe, source+".exe")
}

// Resolve collects every running process of source; multi-process players
// often own their window from a process other than the first one listed.
func (m *appWindows) Resolve(_ context.Context, source string) (Handle, error) {
	h := processHandle{source: source}
	err := walkProcesses(func(pid uint32, exe string) bool {
		if matchesSource(exe, source) {
			h.pids = append(h.pids, pid)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if len(h.pids) == 0 {
		return nil, ErrSourceNotFound
	}
	return h, nil
}

func (m *appWindows) Invoke(_ context.Context, h Handle, a Action) error {
	cmd, ok := appCommands[a]
	if !ok {
		return fmt.Errorf("unknown action %q", a)
	}
	ph, ok := h.(processHandle)
	if !ok {
		return fmt.Errorf("foreign handle %T", h)
	}
	for _, pid := range ph.pids {
		hwnd := mainWindow(pid)
		if hwnd == 0 {
			continue
		}
		ret, _, err := procPostMessageW.Call(uintptr(hwnd), wmAppCommand, uintptr(hwnd), appCommandLParam(cmd))
		if ret == 0 {
			return fmt.Errorf("post app command: %w", err)
		}
		return nil
	}
	return m.sendGlobalKey(a)
}

func (m *appWindows) sendGlobalKey(a Action) error {
	vk, ok := globalKeys[a]
	if !ok {
		return fmt.Errorf("%s needs a window to post to: %w", a, ErrUnsupported)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kb.Clear()
	m.kb.SetKeys(vk + virtualKeyOffset)
	return m.kb.Launching()
}

// Sources lists processes that own a visible top-level window.
func (m *appWindows) Sources(context.Context) ([]string, error) {
	windowed := make(map[uint32]bool)
	for _, hwnd := range topLevelWindows() {
		var pid uint32
		if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err == nil {
			windowed[pid] = true
		}
	}
	seen := make(map[string]bool)
	err := walkProcesses(func(pid uint32, exe string) bool {
		if windowed[pid] {
			seen[exe] = true
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sources := make([]string, 0, len(seen))
	for s := range seen {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources, nil
}

func (m *appWindows) Close() error { return nil }

type windowList struct {
	hwnds []windows.HWND
}

func enumWindow(hwnd windows.HWND, param uintptr) uintptr {
	wl := (*windowList)(unsafe.Pointer(param))
	if !windows.IsWindowVisible(hwnd) {
		return 1
	}
	if owner, _, _ := procGetWindow.Call(uintptr(hwnd), gwOwner); owner != 0 {
		return 1
	}
	wl.hwnds = append(wl.hwnds, hwnd)
	return 1
}

// topLevelWindows returns the visible, unowned top-level windows.
func topLevelWindows() []windows.HWND {
	var wl windowList
	windows.EnumWindows(enumWindowsProc, unsafe.Pointer(&wl))
	return wl.hwnds
}

func mainWindow(pid uint32) windows.HWND {
	for _, hwnd := range topLevelWindows() {
		var owner uint32
		if _, err := windows.GetWindowThreadProcessId(hwnd, &owner); err == nil && owner == pid {
			return hwnd
		}
	}
	return 0
}

func walkProcesses(fn func(pid uint32, exe string) bool) error {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return fmt.Errorf("process snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var pe windows.ProcessEntry32
	pe.Size = uint32(unsafe.Sizeof(pe))
	for err = windows.Process32First(snap, &pe); err == nil; err = windows.Process32Next(snap, &pe) {
		if !fn(pe.ProcessID, windows.UTF16ToString(pe.ExeFile[:])) {
			return nil
		}
	}
	if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return nil
	}
	return fmt.Errorf("walk processes: %w", err)
}
