package storage

import (
	"sync"

	"excaliview/internal/domain"
)

// SceneStore is the single live scene shared by the surface and the webview.
// There is exactly one writer at a time: either the webview pushing edits
// or a load applying decoded data.
type SceneStore struct {
	mu      sync.RWMutex
	scene   domain.Scene
	onApply []func(domain.Scene)
}

func NewSceneStore() *SceneStore {
	return &SceneStore{scene: domain.Scene{Elements: []domain.Element{}, AppState: domain.AppState{}}}
}

// Snapshot returns a deep copy of the current scene.
func (s *SceneStore) Snapshot() domain.Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scene.Clone()
}

// Replace stores edits coming from the editor. Listeners are not notified,
// the editor already shows this scene.
func (s *SceneStore) Replace(scene domain.Scene) {
	s.mu.Lock()
	s.scene = scene.Clone()
	s.mu.Unlock()
}

// Apply replaces the scene with loaded data and notifies listeners so the
// editor can display it.
func (s *SceneStore) Apply(scene domain.Scene) {
	s.mu.Lock()
	s.scene = scene.Clone()
	listeners := append([]func(domain.Scene){}, s.onApply...)
	snapshot := s.scene.Clone()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// OnApply registers a callback fired after every Apply.
func (s *SceneStore) OnApply(fn func(domain.Scene)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onApply = append(s.onApply, fn)
}
