package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"mediakeyd/log"
)

const watchDebounce = 100 * time.Millisecond

// Watch reports edits made to the file by anything other than this Store.
// fn receives the full new map. Setup is synchronous; the watch loop runs
// until ctx is done.
func (s *Store) Watch(ctx context.Context, fn func(Map)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", s.path, err)
	}
	// Watch the directory: atomic saves replace the file's inode.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", s.path, err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", s.path, err)
	}
	go s.watchLoop(ctx, w, fn)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, w *fsnotify.Watcher, fn func(Map)) {
	defer w.Close()
	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			log.Debugf("store event %s", ev.Op)
			debounce = time.After(watchDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warnf("store watch: %v", err)
		case <-debounce:
			debounce = nil
			m, changed, err := s.Reload()
			if err != nil {
				log.Warnf("store reload: %v", err)
			}
			if !changed {
				log.Debugf("store event ignored: no external change")
				continue
			}
			log.Info("store changed on disk")
			fn(m)
		}
	}
}
