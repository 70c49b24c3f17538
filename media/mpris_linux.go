//go:build linux

package media

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	mprisPrefix = "org.mpris.MediaPlayer2."
	mprisPath   = "/org/mpris/MediaPlayer2"
	mprisPlayer = "org.mpris.MediaPlayer2.Player"
)

// mpris controls players on the session bus. A source is the bus name
// suffix after org.mpris.MediaPlayer2, e.g. "spotify" or "vlc".
type mpris struct {
	conn *dbus.Conn
}

type mprisHandle struct {
	source string
	obj    dbus.BusObject
}

func (h mprisHandle) Source() string { return h.source }

// NewSystem connects to the D-Bus session bus.
func NewSystem() (System, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &mpris{conn: conn}, nil
}

func (m *mpris) Resolve(ctx context.Context, source string) (Handle, error) {
	name := mprisPrefix + source
	var owned bool
	err := m.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, name).Store(&owned)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	if !owned {
		return nil, ErrSourceNotFound
	}
	return mprisHandle{source: source, obj: m.conn.Object(name, mprisPath)}, nil
}

// MPRIS method names match the action names.
func (m *mpris) Invoke(ctx context.Context, h Handle, a Action) error {
	mh, ok := h.(mprisHandle)
	if !ok {
		return fmt.Errorf("foreign handle %T", h)
	}
	if !a.Valid() {
		return fmt.Errorf("unknown action %q", a)
	}
	return mh.obj.CallWithContext(ctx, mprisPlayer+"."+a.String(), 0).Err
}

func (m *mpris) Sources(ctx context.Context) ([]string, error) {
	var names []string
	if err := m.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	var sources []string
	for _, n := range names {
		if s, ok := strings.CutPrefix(n, mprisPrefix); ok {
			sources = append(sources, s)
		}
	}
	sort.Strings(sources)
	return sources, nil
}

func (m *mpris) Close() error {
	return m.conn.Close()
}
