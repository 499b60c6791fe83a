package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"excaliview/internal/bridge"
	"excaliview/internal/codec"
)

// ─────────────────────────────────────────────────────────────
// Document Service: open, save and export of the bound drawing
// ─────────────────────────────────────────────────────────────

var (
	// ErrNoLocation is returned by Save when no file is bound yet.
	// Callers fall back to Save As.
	ErrNoLocation = errors.New("no save location")
	// ErrNotImage is returned when exporting to a non-image path.
	ErrNotImage = errors.New("export target must be .svg or .png")
)

const (
	// DefaultName is suggested when nothing has been saved yet.
	DefaultName = "Untitled.excalidraw.svg"
	// fallbackExportStem is used when stripping suffixes leaves nothing.
	fallbackExportStem = "output"
)

var drawingSuffix = regexp.MustCompile(`(\.excalidraw)?(\.(svg|png))?$`)

// Bridge is the host side of the surface link.
type Bridge interface {
	Save(ctx context.Context, req bridge.SaveRequest) (codec.Payload, error)
	Load(ctx context.Context, p codec.Payload) error
}

// FileStore reads and writes drawing files.
type FileStore interface {
	Read(path string) ([]byte, error)
	Write(path string, data []byte) error
}

// ChangeTracker follows the bound file so external edits can be reloaded.
// It is told about every byte sequence we read or write ourselves.
type ChangeTracker interface {
	Watch(path string) error
	Remember(data []byte)
}

// DocumentService owns the bound file location and drives the bridge for
// every file operation.
type DocumentService struct {
	bridge  Bridge
	files   FileStore
	emitter EventEmitter
	tracker ChangeTracker
	logger  *slog.Logger
	busy    busyPaths

	mu          sync.Mutex
	path        string
	lastExport  string
	closeOnSave bool
}

// NewDocumentService creates a DocumentService. tracker may be nil.
func NewDocumentService(b Bridge, files FileStore, emitter EventEmitter, tracker ChangeTracker, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DocumentService{
		bridge:  b,
		files:   files,
		emitter: emitter,
		tracker: tracker,
		logger:  logger,
	}
}

// ── Location ───────────────────────────────────────────────

func (s *DocumentService) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// SetCloseOnSave arms quitting after the next successful Save.
func (s *DocumentService) SetCloseOnSave(v bool) {
	s.mu.Lock()
	s.closeOnSave = v
	s.mu.Unlock()
}

func (s *DocumentService) CloseOnSave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeOnSave
}

// Bind sets the save location without reading it. Used for a startup path
// that does not exist yet.
func (s *DocumentService) Bind(path string) {
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
	if s.tracker != nil {
		if err := s.tracker.Watch(path); err != nil {
			s.logger.Warn("watch drawing", "path", path, "error", err)
		}
	}
}

// SuggestedSaveName is the name offered by the Save As and Open dialogs.
func (s *DocumentService) SuggestedSaveName() string {
	if p := s.Path(); p != "" {
		return filepath.Base(p)
	}
	return DefaultName
}

// SuggestedExportPath returns the last export target, or the bound file with
// its drawing suffixes replaced by .svg.
func (s *DocumentService) SuggestedExportPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastExport != "" {
		return s.lastExport
	}
	if s.path == "" {
		return DefaultName
	}
	return ExportName(s.path)
}

// ExportName strips .excalidraw/.svg/.png suffixes from path and appends .svg.
func ExportName(path string) string {
	dir, base := filepath.Split(path)
	stem := drawingSuffix.ReplaceAllString(base, "")
	if stem == "" {
		stem = fallbackExportStem
	}
	return dir + stem + ".svg"
}

// ── Operations ─────────────────────────────────────────────

// Open binds path and loads its content into the surface.
func (s *DocumentService) Open(ctx context.Context, path string) error {
	s.Bind(path)
	data, err := s.files.Read(path)
	if err != nil {
		s.emitError(ctx, path, err)
		return fmt.Errorf("open %s: %w", path, err)
	}
	if err := s.load(ctx, path, data); err != nil {
		s.emitError(ctx, path, err)
		return err
	}
	s.emitter.Emit(ctx, EventDocumentOpened, DocumentEvent{Path: path, Format: string(codec.FormatFromFilename(path))})
	s.logger.Info("opened drawing", "path", path, "bytes", len(data))
	return nil
}

// Reload pushes content that changed on disk into the surface.
func (s *DocumentService) Reload(ctx context.Context, path string, data []byte) error {
	if path != s.Path() {
		return nil
	}
	s.logger.Info("drawing changed on disk, reloading", "path", path)
	return s.load(ctx, path, data)
}

func (s *DocumentService) load(ctx context.Context, path string, data []byte) error {
	format := codec.FormatFromFilename(path)
	p, err := codec.PayloadFromBytes(format, data)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if s.tracker != nil {
		s.tracker.Remember(data)
	}
	if err := s.bridge.Load(ctx, p); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Save writes the live scene to the bound file in the format its extension
// names, embedding the scene in images. It returns false when a save to the
// same path was already running and this one was skipped.
func (s *DocumentService) Save(ctx context.Context) (bool, error) {
	path := s.Path()
	if path == "" {
		return false, ErrNoLocation
	}
	release, ok := s.busy.claim(path)
	if !ok {
		s.logger.Debug("save already running, skipped", "path", path)
		return false, nil
	}
	defer release()

	format := codec.FormatFromFilename(path)
	if err := s.writeFrom(ctx, path, bridge.SaveRequest{Format: format}); err != nil {
		s.emitError(ctx, path, err)
		return false, err
	}
	s.emitter.Emit(ctx, EventDocumentSaved, DocumentEvent{Path: path, Format: string(format)})
	s.logger.Info("saved drawing", "path", path, "format", format)
	return true, nil
}

// SaveAs rebinds to path and saves there. Close-on-save is disarmed since
// the user is clearly still working.
func (s *DocumentService) SaveAs(ctx context.Context, path string) (bool, error) {
	s.Bind(path)
	saved, err := s.Save(ctx)
	s.SetCloseOnSave(false)
	return saved, err
}

// Export writes an image-only SVG or PNG; the scene is not embedded.
// Anything not ending in .png is exported as SVG.
func (s *DocumentService) Export(ctx context.Context, path string) error {
	format := codec.FormatSVG
	if strings.HasSuffix(strings.ToLower(path), ".png") {
		format = codec.FormatPNG
	}

	s.mu.Lock()
	s.lastExport = path
	s.mu.Unlock()

	if err := s.writeFrom(ctx, path, bridge.SaveRequest{Format: format, Export: true}); err != nil {
		s.emitError(ctx, path, err)
		return err
	}
	s.emitter.Emit(ctx, EventDocumentSaved, DocumentEvent{Path: path, Format: string(format), Export: true})
	s.logger.Info("exported drawing", "path", path, "format", format)
	return nil
}

func (s *DocumentService) writeFrom(ctx context.Context, path string, req bridge.SaveRequest) error {
	p, err := s.bridge.Save(ctx, req)
	if err != nil {
		return fmt.Errorf("encode %s: %w", req.Format, err)
	}
	data, err := p.Bytes()
	if err != nil {
		return fmt.Errorf("encode %s: %w", req.Format, err)
	}
	if s.tracker != nil && !req.Export {
		s.tracker.Remember(data)
	}
	if err := s.files.Write(path, data); err != nil {
		return err
	}
	return nil
}

// Wait blocks until in-flight saves finish or ctx ends. Shutdown calls it
// so quitting never cuts a write short. It reports whether saves drained.
func (s *DocumentService) Wait(ctx context.Context) bool {
	select {
	case <-s.busy.drained():
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *DocumentService) emitError(ctx context.Context, path string, err error) {
	s.logger.Error("document operation failed", "path", path, "error", err)
	s.emitter.Emit(ctx, EventDocumentError, DocumentEvent{Path: path, Error: err.Error()})
}
