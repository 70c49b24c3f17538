package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"slices"
	"time"

	"github.com/charmbracelet/lipgloss"

	"mediakeyd/hotkey"
	"mediakeyd/keys"
	"mediakeyd/media"
	"mediakeyd/store"
)

type Options struct {
	Out       io.Writer
	Hook      hotkey.Hook
	StorePath string
	// Dispatcher may be nil when DispatcherErr says why.
	Dispatcher    media.Dispatcher
	DispatcherErr error
	// KeyWait bounds the wait for a key press. Zero skips the wait.
	KeyWait time.Duration
}

type report struct {
	out              io.Writer
	pass, fail, warn lipgloss.Style
}

func (r *report) header(n int, title string) {
	fmt.Fprintf(r.out, "\n[%d/4] %s\n", n, title)
}

func (r *report) passf(format string, args ...any) {
	fmt.Fprintf(r.out, "  %s: %s\n", r.pass.Render("PASS"), fmt.Sprintf(format, args...))
}

func (r *report) failf(format string, args ...any) {
	fmt.Fprintf(r.out, "  %s: %s\n", r.fail.Render("FAIL"), fmt.Sprintf(format, args...))
}

func (r *report) warnf(format string, args ...any) {
	fmt.Fprintf(r.out, "  %s: %s\n", r.warn.Render("WARN"), fmt.Sprintf(format, args...))
}

// Run executes the diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(ctx context.Context, opts Options) int {
	ren := lipgloss.NewRenderer(opts.Out)
	r := &report{
		out:  opts.Out,
		pass: ren.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		fail: ren.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		warn: ren.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
	}

	fmt.Fprintln(opts.Out, "mediakeyd doctor - system diagnostics")
	fmt.Fprintln(opts.Out, "=====================================")

	allPass := true
	if !checkHook(ctx, r, opts) {
		allPass = false
	}
	bindings, ok := checkStore(r, opts.StorePath)
	if !ok {
		allPass = false
	}
	if !checkDispatcher(ctx, r, opts) {
		allPass = false
	}
	checkSources(ctx, r, opts.Dispatcher, bindings)

	fmt.Fprintln(opts.Out)
	if allPass {
		fmt.Fprintln(opts.Out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(opts.Out, "Some checks failed. See details above.")
	return 1
}

func checkHook(ctx context.Context, r *report, opts Options) bool {
	r.header(1, "Keyboard hook")

	pressed := make(chan keys.Key, 1)
	err := opts.Hook.Install(func(ev hotkey.Event) {
		if ev.Kind != hotkey.KindKeyDown {
			return
		}
		select {
		case pressed <- keys.FromVirtualKey(ev.Code):
		default:
		}
	})
	if err != nil {
		r.failf("could not install hook: %v", err)
		return false
	}
	defer opts.Hook.Uninstall()
	r.passf("hook installed")

	if opts.KeyWait <= 0 {
		return true
	}
	fmt.Fprintln(r.out, "Press any key...")
	select {
	case k := <-pressed:
		r.passf("key detected: %s", k)
		return true
	case <-time.After(opts.KeyWait):
		r.failf("timeout waiting for a key press")
		return false
	case <-ctx.Done():
		r.failf("interrupted")
		return false
	}
}

func checkStore(r *report, path string) ([]store.Binding, bool) {
	r.header(2, "Hotkey store")
	fmt.Fprintf(r.out, "  %s\n", path)

	s, err := store.Open(path)
	var le *store.LoadError
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		r.passf("no bindings saved yet")
		return nil, true
	case errors.As(err, &le) && le.Err == nil:
		for _, skipped := range le.Skipped {
			r.warnf("skipped %s", skipped)
		}
	default:
		r.failf("%v", err)
		return nil, false
	}
	bindings := s.Bindings()
	r.passf("%d binding(s) loaded", len(bindings))
	return bindings, true
}

func checkDispatcher(ctx context.Context, r *report, opts Options) bool {
	r.header(3, "Media dispatcher")
	if opts.Dispatcher == nil {
		r.failf("unavailable: %v", opts.DispatcherErr)
		return false
	}
	sources, err := opts.Dispatcher.Sources(ctx)
	if err != nil {
		r.failf("cannot list sources: %v", err)
		return false
	}
	r.passf("%d source(s) visible", len(sources))
	return true
}

// checkSources only warns: a bound player that is not running is normal.
func checkSources(ctx context.Context, r *report, d media.Dispatcher, bindings []store.Binding) {
	r.header(4, "Bound sources")
	if d == nil || len(bindings) == 0 {
		fmt.Fprintln(r.out, "  nothing to check")
		return
	}
	var seen []string
	for _, b := range bindings {
		if slices.Contains(seen, b.Source) {
			continue
		}
		seen = append(seen, b.Source)
		if _, err := d.Resolve(ctx, b.Source); err != nil {
			r.warnf("%s: %v", b.Source, err)
			continue
		}
		r.passf("%s is running", b.Source)
	}
}
