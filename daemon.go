package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"mediakeyd/binding"
	"mediakeyd/config"
	"mediakeyd/hotkey"
	"mediakeyd/log"
	"mediakeyd/media"
	"mediakeyd/store"
)

const statsInterval = 10 * time.Minute

var errAlreadyRunning = errors.New("another mediakeyd instance is already running")

type daemonDeps struct {
	hook       hotkey.Hook
	dispatcher media.Dispatcher
}

// daemon is one running session: hook, registry, bindings and dispatch.
type daemon struct {
	store    *store.Store
	registry *hotkey.Registry
	bridge   *hotkey.Bridge
	pool     *media.Pool
	manager  *binding.Manager
}

func setCrashOutput(dir string) {
	crashPath := filepath.Join(dir, "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func lockPath(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.Store.Path), "mediakeyd.lock")
}

// runDaemon installs the hook, restores saved bindings and serves until ctx
// is done. ready, if set, is called once everything is live.
func runDaemon(ctx context.Context, cfg *config.Config, deps daemonDeps, ready func(*daemon)) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	instance := flock.New(lockPath(cfg))
	locked, err := instance.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return errAlreadyRunning
	}
	defer instance.Unlock()

	d := &daemon{
		registry: hotkey.NewRegistry(cfg.Mode()),
		pool: media.NewPool(deps.dispatcher, media.PoolOptions{
			Timeout:   cfg.Dispatch.Timeout,
			QueueSize: cfg.Dispatch.QueueSize,
		}),
	}
	d.bridge = hotkey.NewBridge(deps.hook, d.registry)

	// The hook goes in before anything is registered so a key held while
	// bindings are restored is still tracked as pressed.
	installed := true
	if err := d.bridge.Listen(); err != nil {
		// Bindings are still restored; nothing fires until a hook is available.
		installed = false
		log.Errorf("keyboard hook unavailable: %v", err)
	}

	st, err := store.Open(cfg.Store.Path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		log.Info("no saved bindings at " + cfg.Store.Path)
	default:
		log.Warnf("%v", err)
	}
	d.store = st
	d.manager = binding.NewManager(d.registry, st, d.pool)
	restored := d.manager.Restore(st.Map())

	if err := st.Watch(ctx, d.reconcile); err != nil {
		log.Warnf("external store edits will not be picked up: %v", err)
	}

	log.SessionStart(version, restored, installed)
	if ready != nil {
		ready(d)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.reportStats(gctx, statsInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		return nil
	})
	g.Wait()

	d.close()
	return nil
}

func (d *daemon) reconcile(m store.Map) {
	added, removed := d.manager.Reconcile(m)
	log.Info(fmt.Sprintf("bindings reloaded: added=%d removed=%d live=%d", added, removed, len(d.manager.Bindings())))
	for _, b := range d.manager.Bindings() {
		log.Debugf("binding %s = %s", b.Key(), b.Chord)
	}
}

func (d *daemon) reportStats(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			events, fired := d.bridge.Stats()
			ps := d.pool.Stats()
			log.Info(fmt.Sprintf("stats: bindings=%d events=%d fired=%d dispatched=%d failed=%d dropped=%d",
				len(d.manager.Bindings()), events, fired, ps.Done, ps.Failed, ps.Dropped))
		}
	}
}

// close stops the hook first so no new jobs arrive, then drains the pool.
func (d *daemon) close() {
	if err := d.bridge.Close(); err != nil {
		log.Warnf("uninstall hook: %v", err)
	}
	d.pool.Close()
	_, fired := d.bridge.Stats()
	log.SessionEnd(fired)
}
