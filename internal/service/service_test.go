package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"excaliview/internal/service"
	"excaliview/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// In-flight saves
// ─────────────────────────────────────────────────────────────

func TestDocumentService_WaitIdle(t *testing.T) {
	docs := service.NewDocumentService(nil, nil, &service.MockEmitter{}, nil, nil)
	if !docs.Wait(context.Background()) {
		t.Error("Wait should return true with nothing in flight")
	}
}

func TestDocumentService_WaitForRunningSave(t *testing.T) {
	b := newBlockingBridge()
	docs := service.NewDocumentService(b, storage.NewFileStore(), &service.MockEmitter{}, nil, nil)
	docs.Bind(filepath.Join(t.TempDir(), "slow.excalidraw"))

	go docs.Save(context.Background())
	<-b.started

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if docs.Wait(ctx) {
		t.Fatal("Wait returned true while a save was running")
	}

	close(b.release)
	ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	if !docs.Wait(ctx2) {
		t.Fatal("Wait never saw the save finish")
	}
}

func TestDocumentService_OtherPathNotBlocked(t *testing.T) {
	b := newBlockingBridge()
	docs := service.NewDocumentService(b, storage.NewFileStore(), &service.MockEmitter{}, nil, nil)
	dir := t.TempDir()
	docs.Bind(filepath.Join(dir, "first.excalidraw"))

	go docs.Save(context.Background())
	<-b.started

	// A save to another file still runs; it waits on the same bridge.
	docs.Bind(filepath.Join(dir, "second.excalidraw"))
	second := make(chan bool, 1)
	go func() {
		saved, _ := docs.Save(context.Background())
		second <- saved
	}()
	close(b.release)
	select {
	case saved := <-second:
		if !saved {
			t.Error("save to a different path should not be skipped")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second save never finished")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	docs.Wait(ctx)
}

// ─────────────────────────────────────────────────────────────
// MockEmitter tests
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_RecordsEvents(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, service.EventDocumentSaved, service.DocumentEvent{Path: "a.svg"})
	m.Emit(ctx, service.EventSceneApply, nil)

	if len(m.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(m.Events))
	}
	if m.Events[0].Event != service.EventDocumentSaved {
		t.Errorf("expected %q, got %q", service.EventDocumentSaved, m.Events[0].Event)
	}
	if got := len(m.Named(service.EventSceneApply)); got != 1 {
		t.Errorf("expected 1 scene:apply event, got %d", got)
	}
}
