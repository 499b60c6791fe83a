package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"excaliview/internal/domain"
)

// ErrPullTimeout is returned when the editor does not answer a pull in time.
var ErrPullTimeout = errors.New("bridge: editor did not deliver the scene")

// DefaultPullTimeout bounds how long a save waits for the editor's scene.
const DefaultPullTimeout = 2 * time.Second

// ScenePuller brings the scene cell up to date with the editor.
type ScenePuller interface {
	Pull(ctx context.Context) error
}

// SceneReplacer stores a scene without notifying the editor.
type SceneReplacer interface {
	Replace(s domain.Scene)
}

// SceneSync asks the editor for its current scene and waits until it has
// been written to the scene cell. The editor mirrors edits with a debounce,
// so the cell alone can lag behind the last keystroke.
type SceneSync struct {
	cell    SceneReplacer
	notify  func(token string)
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	waiting map[string]chan struct{}
}

// NewSceneSync creates a SceneSync. notify must reach the editor, which
// answers through Deliver with the same token. A zero timeout uses
// DefaultPullTimeout.
func NewSceneSync(cell SceneReplacer, notify func(token string), timeout time.Duration, logger *slog.Logger) *SceneSync {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if timeout <= 0 {
		timeout = DefaultPullTimeout
	}
	return &SceneSync{
		cell:    cell,
		notify:  notify,
		timeout: timeout,
		logger:  logger,
		waiting: make(map[string]chan struct{}),
	}
}

// Pull requests the editor's scene and blocks until it is delivered.
func (s *SceneSync) Pull(ctx context.Context) error {
	token := uuid.New().String()
	ch := make(chan struct{})
	s.mu.Lock()
	s.waiting[token] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.waiting, token)
		s.mu.Unlock()
	}()

	s.notify(token)

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		return ErrPullTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver stores the editor's scene and releases the matching Pull. A scene
// for an unknown token is still stored; it is the editor's latest state.
func (s *SceneSync) Deliver(token string, scene domain.Scene) {
	s.cell.Replace(scene)

	s.mu.Lock()
	ch, ok := s.waiting[token]
	delete(s.waiting, token)
	s.mu.Unlock()

	if !ok {
		s.logger.Debug("scene delivered for unknown pull", "token", token)
		return
	}
	close(ch)
}
