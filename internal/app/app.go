package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"excaliview/internal/bridge"
	"excaliview/internal/codec"
	"excaliview/internal/config"
	"excaliview/internal/domain"
	"excaliview/internal/render"
	"excaliview/internal/service"
	"excaliview/internal/storage"
	"excaliview/internal/watch"
)

// shutdownGrace bounds how long quitting waits for a save in flight.
const shutdownGrace = 5 * time.Second

// Options are fixed at startup from flags and environment.
type Options struct {
	Path   string
	Config config.Config
	Logger *slog.Logger
}

// App is the main Wails application struct.
// All exported methods are available as Wails bindings.
type App struct {
	ctx    context.Context
	opts   Options
	logger *slog.Logger

	scene     *storage.SceneStore
	toSurface *bridge.Channel
	toHost    *bridge.Channel
	host      *bridge.Host
	surface   *bridge.Surface
	sceneSync *bridge.SceneSync
	docs      *service.DocumentService
	watcher   *watch.Watcher
	autosave  *cron.Cron

	surfaceOnce sync.Once
}

// New creates a new App.
func New(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{opts: opts, logger: logger}
}

// Startup is called when the app starts.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx
	cfg := a.opts.Config

	engine := render.New(a.logger.With("component", "render"))
	c := codec.New(engine, engine,
		codec.WithLogger(a.logger.With("component", "codec")),
		codec.WithExportLayout(cfg.ExportPadding, cfg.ExportScale),
	)

	a.scene = storage.NewSceneStore()
	a.scene.OnApply(func(s domain.Scene) {
		wailsRuntime.EventsEmit(ctx, service.EventSceneApply, s)
	})

	// Host → surface and surface → host are independent one-way links.
	a.toSurface = bridge.NewChannel(16)
	a.toHost = bridge.NewChannel(16)
	a.host = bridge.NewHost(a.toSurface, a.toHost, a.logger.With("component", "host"))
	a.surface = bridge.NewSurface(a.toSurface, a.toHost, a.scene, c, dialogAlerter{app: a}, a.logger.With("component", "surface"))
	a.sceneSync = bridge.NewSceneSync(a.scene, func(token string) {
		wailsRuntime.EventsEmit(ctx, service.EventSceneFlush, token)
	}, bridge.DefaultPullTimeout, a.logger.With("component", "sync"))
	a.surface.SetPuller(a.sceneSync)
	go func() {
		if err := a.host.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			wailsRuntime.LogErrorf(ctx, "bridge host stopped: %v", err)
		}
	}()

	var tracker service.ChangeTracker
	if cfg.Watch {
		w, err := watch.New(a.onExternalChange, a.logger.With("component", "watch"))
		if err != nil {
			wailsRuntime.LogErrorf(ctx, "Failed to create file watcher: %v", err)
		} else {
			a.watcher = w
			tracker = w
		}
	}
	a.docs = service.NewDocumentService(a.host, storage.NewFileStore(), runtimeEmitter{}, tracker, a.logger.With("component", "documents"))

	if path := a.opts.Path; path != "" {
		if _, err := os.Stat(path); err == nil {
			// Queued until the surface reports initialized.
			if err := a.docs.Open(ctx, path); err != nil {
				wailsRuntime.LogErrorf(ctx, "Failed to open '%s': %v", path, err)
			}
		} else {
			a.docs.Bind(path)
		}
	}
	a.docs.SetCloseOnSave(cfg.CloseOnSave)

	if cfg.Autosave != "" {
		a.startAutosave(cfg.Autosave)
	}
	wailsRuntime.LogInfof(ctx, "excaliview started (file=%q)", a.opts.Path)
}

// Shutdown is called when the app is closing.
func (a *App) Shutdown(ctx context.Context) {
	if a.autosave != nil {
		<-a.autosave.Stop().Done()
	}
	if a.docs != nil {
		waitCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
		if !a.docs.Wait(waitCtx) {
			wailsRuntime.LogErrorf(ctx, "quitting with a save still in flight")
		}
		cancel()
	}
	if a.host != nil {
		a.host.Close()
	}
	if a.toSurface != nil {
		a.toSurface.Close()
		a.toHost.Close()
	}
	if a.watcher != nil {
		a.watcher.Close()
	}
}

// ── Wails glue ─────────────────────────────────────────────

// These adapters live outside App so Wails does not bind them to the page.

// runtimeEmitter implements service.EventEmitter.
type runtimeEmitter struct{}

func (runtimeEmitter) Emit(ctx context.Context, event string, data any) {
	wailsRuntime.EventsEmit(ctx, event, data)
}

// dialogAlerter implements bridge.Alerter with a native error dialog.
type dialogAlerter struct {
	app *App
}

func (d dialogAlerter) Alert(title, message string) {
	d.app.alert(title, message)
}

func (a *App) alert(title, message string) {
	_, err := wailsRuntime.MessageDialog(a.ctx, wailsRuntime.MessageDialogOptions{
		Type:    wailsRuntime.ErrorDialog,
		Title:   title,
		Message: message,
	})
	if err != nil {
		wailsRuntime.LogErrorf(a.ctx, "alert %q: %v", title, err)
	}
}

func (a *App) onExternalChange(path string, data []byte) {
	if err := a.docs.Reload(a.ctx, path, data); err != nil {
		wailsRuntime.LogErrorf(a.ctx, "reload %s: %v", path, err)
	}
}

func (a *App) startAutosave(spec string) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if a.docs.Path() == "" {
			return
		}
		if _, err := a.docs.Save(a.ctx); err != nil {
			wailsRuntime.LogErrorf(a.ctx, "autosave: %v", err)
		}
	})
	if err != nil {
		wailsRuntime.LogErrorf(a.ctx, "invalid autosave schedule %q: %v", spec, err)
		return
	}
	c.Start()
	a.autosave = c
	wailsRuntime.LogInfof(a.ctx, "autosave enabled (%s)", spec)
}

// ============================================================
// Bindings called by the editor page
// ============================================================

// SurfaceReady is called once the editor has mounted. Only then does the
// surface start listening and announce itself to the host.
func (a *App) SurfaceReady() {
	a.surfaceOnce.Do(func() {
		go func() {
			if err := a.surface.Run(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
				wailsRuntime.LogErrorf(a.ctx, "surface stopped: %v", err)
			}
		}()
	})
}

// SceneChanged mirrors editor edits into the live scene.
func (a *App) SceneChanged(scene domain.Scene) {
	a.scene.Replace(scene)
}

// SceneFlushed answers a scene:flush request with the editor's current scene.
func (a *App) SceneFlushed(token string, scene domain.Scene) {
	a.sceneSync.Deliver(token, scene)
}

// CurrentPath returns the bound file, empty for a new drawing.
func (a *App) CurrentPath() string {
	return a.docs.Path()
}
