package bridge_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"excaliview/internal/bridge"
	"excaliview/internal/codec"
	"excaliview/internal/domain"
	"excaliview/internal/render"
	"excaliview/internal/storage"
)

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []string
	ch     chan string
}

func newAlerter() *recordingAlerter {
	return &recordingAlerter{ch: make(chan string, 8)}
}

func (a *recordingAlerter) Alert(title, message string) {
	a.mu.Lock()
	a.alerts = append(a.alerts, title+": "+message)
	a.mu.Unlock()
	a.ch <- message
}

func (a *recordingAlerter) wait(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-a.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for alert")
		return ""
	}
}

type link struct {
	host    *bridge.Host
	surface *bridge.Surface
	store   *storage.SceneStore
	alerter *recordingAlerter
	toHost  *bridge.Channel
	cancel  context.CancelFunc
	ctx     context.Context
}

// newLink wires a host and a surface. The surface is not started so tests
// can observe the pre-initialized state; call start.
func newLink(t *testing.T, c bridge.SceneCodec) *link {
	t.Helper()
	if c == nil {
		e := render.New(nil)
		c = codec.New(e, e)
	}
	toSurface := bridge.NewChannel(16)
	toHost := bridge.NewChannel(16)
	store := storage.NewSceneStore()
	alerter := newAlerter()

	ctx, cancel := context.WithCancel(context.Background())
	l := &link{
		host:    bridge.NewHost(toSurface, toHost, nil),
		surface: bridge.NewSurface(toSurface, toHost, store, c, alerter, nil),
		store:   store,
		alerter: alerter,
		toHost:  toHost,
		cancel:  cancel,
		ctx:     ctx,
	}
	go l.host.Run(ctx)
	t.Cleanup(func() {
		cancel()
		l.host.Close()
	})
	return l
}

func (l *link) start(t *testing.T) {
	t.Helper()
	go l.surface.Run(l.ctx)
	select {
	case <-l.host.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("surface never initialized")
	}
}

func rectangle(id string) domain.Element {
	return domain.Element{"id": id, "type": "rectangle", "x": 10.0, "y": 10.0, "width": 50.0, "height": 30.0}
}

func jsonPayload(ids ...string) codec.Payload {
	s := domain.Scene{AppState: domain.AppState{"viewBackgroundColor": "#fff"}}
	for _, id := range ids {
		s.Elements = append(s.Elements, rectangle(id))
	}
	doc := domain.NewDocument(s)
	return codec.Payload{Format: codec.FormatJSON, Data: &doc}
}

func elementIDs(s domain.Scene) []string {
	ids := make([]string, len(s.Elements))
	for i, el := range s.Elements {
		ids[i] = el.ID()
	}
	return ids
}

// ─────────────────────────────────────────────────────────────
// Save / Load
// ─────────────────────────────────────────────────────────────

func TestSave_JSON(t *testing.T) {
	l := newLink(t, nil)
	l.start(t)
	l.store.Apply(domain.Scene{Elements: []domain.Element{rectangle("A")}, AppState: domain.AppState{}})

	p, err := l.host.Save(context.Background(), bridge.SaveRequest{Format: codec.FormatJSON})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if p.Data == nil || len(p.Data.Elements) != 1 || p.Data.Elements[0].ID() != "A" {
		t.Errorf("unexpected payload: %+v", p)
	}
	if l.host.Pending() != 0 {
		t.Errorf("expected no pending saves, got %d", l.host.Pending())
	}
}

func TestLoadThenSave_SVGRoundTrip(t *testing.T) {
	l := newLink(t, nil)
	l.start(t)
	ctx := context.Background()

	if err := l.host.Load(ctx, jsonPayload("A", "B")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	svg, err := l.host.Save(ctx, bridge.SaveRequest{Format: codec.FormatSVG})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Wipe and reload from the image.
	if err := l.host.Load(ctx, jsonPayload()); err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	if err := l.host.Load(ctx, svg); err != nil {
		t.Fatalf("Load svg: %v", err)
	}
	// Saves are served in order, so this one sees the svg load applied.
	back, err := l.host.Save(ctx, bridge.SaveRequest{Format: codec.FormatJSON})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := len(back.Data.Elements); got != 2 {
		t.Errorf("expected 2 elements after svg reload, got %d", got)
	}
}

func TestRequestsQueuedUntilInitialized(t *testing.T) {
	l := newLink(t, nil)
	ctx := context.Background()

	if err := l.host.Load(ctx, jsonPayload("queued")); err != nil {
		t.Fatalf("Load: %v", err)
	}

	type result struct {
		p   codec.Payload
		err error
	}
	done := make(chan result, 1)
	go func() {
		p, err := l.host.Save(ctx, bridge.SaveRequest{Format: codec.FormatJSON})
		done <- result{p, err}
	}()

	select {
	case <-l.host.Ready():
		t.Fatal("host reported ready before the surface initialized")
	case <-time.After(50 * time.Millisecond):
	}

	l.start(t)
	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Save: %v", r.err)
		}
		if len(r.p.Data.Elements) != 1 || r.p.Data.Elements[0].ID() != "queued" {
			t.Errorf("queued load was not applied before the save: %+v", r.p.Data.Elements)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queued save never completed")
	}
}

func TestManySavesQueuedBeforeInitialized(t *testing.T) {
	l := newLink(t, nil)
	l.store.Apply(domain.Scene{Elements: []domain.Element{rectangle("A")}, AppState: domain.AppState{}})

	// More requests than both link buffers hold together.
	const n = 40
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := l.host.Save(ctx, bridge.SaveRequest{Format: codec.FormatJSON})
			errs <- err
		}()
	}
	for i := 0; i < 400 && l.host.Pending() < n; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	if got := l.host.Pending(); got != n {
		t.Fatalf("expected %d queued saves, got %d", n, got)
	}

	l.start(t)
	for i := 0; i < n; i++ {
		select {
		case err := <-errs:
			if err != nil {
				t.Errorf("Save: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d queued saves completed", i, n)
		}
	}

	pending := make(chan int, 1)
	go func() { pending <- l.host.Pending() }()
	select {
	case got := <-pending:
		if got != 0 {
			t.Errorf("expected no pending saves, got %d", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Pending blocked after the flush")
	}
}

func TestConcurrentSaves(t *testing.T) {
	l := newLink(t, nil)
	l.start(t)
	l.store.Apply(domain.Scene{Elements: []domain.Element{rectangle("A")}, AppState: domain.AppState{}})

	formats := []codec.Format{codec.FormatJSON, codec.FormatSVG, codec.FormatPNG}
	var wg sync.WaitGroup
	errs := make(chan error, 9)
	for i := 0; i < 9; i++ {
		f := formats[i%len(formats)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := l.host.Save(context.Background(), bridge.SaveRequest{Format: f})
			if err != nil {
				errs <- err
				return
			}
			if p.Format != f {
				errs <- fmt.Errorf("asked for %s, got %s", f, p.Format)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

// ─────────────────────────────────────────────────────────────
// Failures
// ─────────────────────────────────────────────────────────────

func TestSave_UnknownFormat(t *testing.T) {
	l := newLink(t, nil)
	l.start(t)
	l.store.Apply(domain.Scene{Elements: []domain.Element{rectangle("A")}, AppState: domain.AppState{}})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := l.host.Save(ctx, bridge.SaveRequest{Format: "xml"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected no response (deadline), got %v", err)
	}

	msg := l.alerter.wait(t)
	if !strings.Contains(msg, "this is a bug") {
		t.Errorf("unexpected alert: %q", msg)
	}
	if ids := elementIDs(l.store.Snapshot()); len(ids) != 1 || ids[0] != "A" {
		t.Errorf("scene mutated: %v", ids)
	}
	if l.host.Pending() != 0 {
		t.Errorf("abandoned save should be forgotten, %d pending", l.host.Pending())
	}
}

func TestLoad_UnknownFormat(t *testing.T) {
	l := newLink(t, nil)
	l.start(t)
	l.store.Apply(domain.Scene{Elements: []domain.Element{rectangle("A")}, AppState: domain.AppState{}})

	if err := l.host.Load(context.Background(), codec.Payload{Format: "xml", Blob: "<x/>"}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if msg := l.alerter.wait(t); !strings.Contains(msg, "Unknown format") {
		t.Errorf("unexpected alert: %q", msg)
	}
	if ids := elementIDs(l.store.Snapshot()); len(ids) != 1 || ids[0] != "A" {
		t.Errorf("scene mutated: %v", ids)
	}
}

func TestLoad_CorruptImageLeavesScene(t *testing.T) {
	l := newLink(t, nil)
	l.start(t)
	l.store.Apply(domain.Scene{Elements: []domain.Element{rectangle("A")}, AppState: domain.AppState{}})

	corrupt := `<svg><metadata><!-- payload-type:application/vnd.excalidraw+json --><!-- payload-start -->@@@<!-- payload-end --></metadata></svg>`
	if err := l.host.Load(context.Background(), codec.Payload{Format: codec.FormatSVG, Blob: corrupt}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	l.alerter.wait(t)
	if ids := elementIDs(l.store.Snapshot()); len(ids) != 1 || ids[0] != "A" {
		t.Errorf("scene mutated: %v", ids)
	}
}

type failingCodec struct{}

func (failingCodec) Encode(context.Context, domain.Scene, codec.SaveOptions) (codec.Payload, error) {
	return codec.Payload{}, errors.New("rasterizer exploded")
}

func (failingCodec) Decode(context.Context, codec.Payload) (domain.Scene, error) {
	return domain.Scene{}, errors.New("not implemented")
}

func TestSave_EncodeErrorIsReported(t *testing.T) {
	l := newLink(t, failingCodec{})
	l.start(t)

	_, err := l.host.Save(context.Background(), bridge.SaveRequest{Format: codec.FormatPNG})
	if !errors.Is(err, bridge.ErrRemote) {
		t.Fatalf("expected ErrRemote, got %v", err)
	}
	if !strings.Contains(err.Error(), "rasterizer exploded") {
		t.Errorf("remote message lost: %v", err)
	}
}

func TestUnknownNonceDropped(t *testing.T) {
	l := newLink(t, nil)
	l.start(t)

	stray := bridge.Message{Kind: bridge.KindSaveResponse, Nonce: "bogus", Body: []byte(`{"nonce":"bogus","data":{"format":"json"}}`)}
	if err := l.toHost.Post(context.Background(), stray); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if _, err := l.host.Save(context.Background(), bridge.SaveRequest{Format: codec.FormatJSON}); err != nil {
		t.Fatalf("Save after stray response: %v", err)
	}
}

func TestClose_FailsPendingSave(t *testing.T) {
	l := newLink(t, nil)

	done := make(chan error, 1)
	go func() {
		_, err := l.host.Save(context.Background(), bridge.SaveRequest{Format: codec.FormatJSON})
		done <- err
	}()
	for i := 0; i < 100 && l.host.Pending() == 0; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	l.host.Close()

	select {
	case err := <-done:
		if !errors.Is(err, bridge.ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("save did not return after Close")
	}
	if _, err := l.host.Save(context.Background(), bridge.SaveRequest{Format: codec.FormatJSON}); !errors.Is(err, bridge.ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────
// Scene sync
// ─────────────────────────────────────────────────────────────

func TestSave_PullsEditorScene(t *testing.T) {
	l := newLink(t, nil)
	var ss *bridge.SceneSync
	ss = bridge.NewSceneSync(l.store, func(token string) {
		// The editor answers asynchronously, like a bound call from the page.
		go ss.Deliver(token, domain.Scene{Elements: []domain.Element{rectangle("latest")}, AppState: domain.AppState{}})
	}, time.Second, nil)
	l.surface.SetPuller(ss)
	l.start(t)
	l.store.Replace(domain.Scene{Elements: []domain.Element{rectangle("stale")}, AppState: domain.AppState{}})

	p, err := l.host.Save(context.Background(), bridge.SaveRequest{Format: codec.FormatJSON})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(p.Data.Elements) != 1 || p.Data.Elements[0].ID() != "latest" {
		t.Errorf("save did not use the editor's latest scene: %+v", p.Data.Elements)
	}
}

func TestSave_PullTimeoutUsesMirroredScene(t *testing.T) {
	l := newLink(t, nil)
	ss := bridge.NewSceneSync(l.store, func(string) {}, 50*time.Millisecond, nil)
	l.surface.SetPuller(ss)
	l.start(t)
	l.store.Replace(domain.Scene{Elements: []domain.Element{rectangle("mirrored")}, AppState: domain.AppState{}})

	p, err := l.host.Save(context.Background(), bridge.SaveRequest{Format: codec.FormatJSON})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(p.Data.Elements) != 1 || p.Data.Elements[0].ID() != "mirrored" {
		t.Errorf("expected the mirrored scene, got %+v", p.Data.Elements)
	}
}

func TestSceneSync_PullTimeout(t *testing.T) {
	store := storage.NewSceneStore()
	ss := bridge.NewSceneSync(store, func(string) {}, 20*time.Millisecond, nil)
	if err := ss.Pull(context.Background()); !errors.Is(err, bridge.ErrPullTimeout) {
		t.Errorf("expected ErrPullTimeout, got %v", err)
	}
}

func TestSceneSync_UnknownTokenStillStored(t *testing.T) {
	store := storage.NewSceneStore()
	ss := bridge.NewSceneSync(store, func(string) {}, time.Second, nil)
	ss.Deliver("nobody-waiting", domain.Scene{Elements: []domain.Element{rectangle("B")}, AppState: domain.AppState{}})
	if ids := elementIDs(store.Snapshot()); len(ids) != 1 || ids[0] != "B" {
		t.Errorf("scene not stored: %v", ids)
	}
}

// ─────────────────────────────────────────────────────────────
// Channel
// ─────────────────────────────────────────────────────────────

func TestChannel_PostAfterClose(t *testing.T) {
	c := bridge.NewChannel(1)
	c.Close()
	if err := c.Post(context.Background(), bridge.Message{Kind: bridge.KindInitialized}); !errors.Is(err, bridge.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, ok := <-c.Listen(); ok {
		t.Error("expected listen channel to be closed")
	}
}

func TestChannel_PostRespectsContext(t *testing.T) {
	c := bridge.NewChannel(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Post(ctx, bridge.Message{Kind: bridge.KindInitialized}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline, got %v", err)
	}
}
