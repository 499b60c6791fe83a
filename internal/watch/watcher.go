// Package watch reloads the bound drawing when another program rewrites it.
package watch

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler is called with the new contents of the watched file.
type ChangeHandler func(path string, data []byte)

// Watcher follows a single file. fsnotify watches the parent directory so
// editors that save by rename are still seen.
type Watcher struct {
	watcher  *fsnotify.Watcher
	onChange ChangeHandler
	logger   *slog.Logger

	mu    sync.Mutex
	path  string
	dir   string
	known [sha256.Size]byte
	done  chan struct{}
}

// New creates a Watcher and starts its event loop.
func New(onChange ChangeHandler, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		watcher:  fw,
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go w.watchLoop()
	return w, nil
}

// Watch switches to path, dropping the previous file.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dir != "" && w.dir != dir {
		_ = w.watcher.Remove(w.dir)
	}
	w.path = abs
	if w.dir == dir {
		return nil
	}
	w.dir = dir
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	return nil
}

// Remember records content we read or wrote ourselves so the resulting
// events are not treated as external edits.
func (w *Watcher) Remember(data []byte) {
	sum := sha256.Sum256(data)
	w.mu.Lock()
	w.known = sum
	w.mu.Unlock()
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.handle(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handle(name string) {
	abs, _ := filepath.Abs(name)

	w.mu.Lock()
	watched := abs == w.path
	w.mu.Unlock()
	if !watched {
		return
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		w.logger.Debug("read changed drawing", "path", abs, "error", err)
		return
	}
	// A rename or truncate can surface an empty file before the write lands.
	if len(bytes.TrimSpace(data)) == 0 {
		return
	}

	sum := sha256.Sum256(data)
	w.mu.Lock()
	if sum == w.known {
		w.mu.Unlock()
		return
	}
	w.known = sum
	w.mu.Unlock()

	w.logger.Debug("external change", "path", abs, "bytes", len(data))
	if w.onChange != nil {
		w.onChange(abs, data)
	}
}
