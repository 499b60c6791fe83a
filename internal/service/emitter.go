package service

import (
	"context"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples services from wailsRuntime
// ─────────────────────────────────────────────────────────────

// Events emitted to the webview.
const (
	// EventSceneApply carries a loaded scene the editor should display.
	EventSceneApply = "scene:apply"
	// EventSceneFlush carries a token the editor answers with SceneFlushed.
	EventSceneFlush = "scene:flush"
	// EventDocumentOpened and EventDocumentSaved carry a DocumentEvent.
	EventDocumentOpened = "document:opened"
	EventDocumentSaved  = "document:saved"
	EventDocumentError  = "document:error"
)

// EventEmitter is an interface for emitting events to the frontend.
// The App struct implements this by delegating to wailsRuntime.EventsEmit,
// which keeps services testable without a running window.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// DocumentEvent is the payload of the document:* events.
type DocumentEvent struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Export bool   `json:"export,omitempty"`
	Error  string `json:"error,omitempty"`
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Named returns the recorded events with the given name.
func (m *MockEmitter) Named(event string) []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EmittedEvent
	for _, e := range m.Events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
