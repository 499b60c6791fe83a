package app

import (
	"errors"
	"path/filepath"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"excaliview/internal/service"
)

// drawingFilters lists SVG first since it is the most convenient format.
var drawingFilters = []wailsRuntime.FileFilter{
	{DisplayName: "Excalidraw SVG", Pattern: "*.excalidraw.svg"},
	{DisplayName: "Excalidraw PNG", Pattern: "*.excalidraw.png"},
	{DisplayName: "Excalidraw JSON", Pattern: "*.excalidraw"},
}

var exportFilters = []wailsRuntime.FileFilter{
	{DisplayName: "svg", Pattern: "*.svg"},
	{DisplayName: "png", Pattern: "*.png"},
}

// Save writes to the bound file, falling back to Save As when there is none.
// With close-on-save armed the window quits after a successful save.
func (a *App) Save() error {
	saved, err := a.docs.Save(a.ctx)
	if errors.Is(err, service.ErrNoLocation) {
		return a.SaveAs()
	}
	if err != nil {
		a.alert("Save failed", err.Error())
		return err
	}
	if saved && a.docs.CloseOnSave() {
		wailsRuntime.LogInfof(a.ctx, "closing after save")
		wailsRuntime.Quit(a.ctx)
	}
	return nil
}

// SaveAs asks for a new location and saves there.
func (a *App) SaveAs() error {
	path, err := wailsRuntime.SaveFileDialog(a.ctx, wailsRuntime.SaveDialogOptions{
		Title:                "Save As",
		DefaultDirectory:     a.dialogDir(a.docs.Path()),
		DefaultFilename:      a.docs.SuggestedSaveName(),
		Filters:              drawingFilters,
		CanCreateDirectories: true,
	})
	if err != nil || path == "" {
		return err
	}
	if _, err := a.docs.SaveAs(a.ctx, path); err != nil {
		a.alert("Save failed", err.Error())
		return err
	}
	wailsRuntime.WindowSetTitle(a.ctx, windowTitle(path))
	return nil
}

// Open replaces the drawing with a file picked by the user.
func (a *App) Open() error {
	path, err := wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title:            "Open",
		DefaultDirectory: a.dialogDir(a.docs.Path()),
		Filters:          drawingFilters,
	})
	if err != nil || path == "" {
		return err
	}
	if err := a.docs.Open(a.ctx, path); err != nil {
		wailsRuntime.LogErrorf(a.ctx, "Failed to open '%s': %v", path, err)
		return err
	}
	wailsRuntime.WindowSetTitle(a.ctx, windowTitle(path))
	return nil
}

// Export writes an image-only SVG or PNG.
func (a *App) Export() error {
	suggested := a.docs.SuggestedExportPath()
	path, err := wailsRuntime.SaveFileDialog(a.ctx, wailsRuntime.SaveDialogOptions{
		Title:                "Export",
		DefaultDirectory:     a.dialogDir(suggested),
		DefaultFilename:      filepath.Base(suggested),
		Filters:              exportFilters,
		CanCreateDirectories: true,
	})
	if err != nil || path == "" {
		return err
	}
	if err := a.docs.Export(a.ctx, path); err != nil {
		a.alert("Export failed", err.Error())
		return err
	}
	return nil
}

// Print opens the system print dialog for the page.
func (a *App) Print() {
	wailsRuntime.WindowPrint(a.ctx)
}

// ToggleFullscreen leaves fullscreen or maximized state, or enters fullscreen.
func (a *App) ToggleFullscreen() {
	if wailsRuntime.WindowIsFullscreen(a.ctx) {
		wailsRuntime.WindowUnfullscreen(a.ctx)
		return
	}
	if wailsRuntime.WindowIsMaximised(a.ctx) {
		wailsRuntime.WindowUnmaximise(a.ctx)
		return
	}
	wailsRuntime.WindowFullscreen(a.ctx)
}

func (a *App) Quit() {
	wailsRuntime.Quit(a.ctx)
}

// dialogDir is the directory of path, or empty to let the OS choose.
func (a *App) dialogDir(path string) string {
	if path == "" || path == service.DefaultName {
		return ""
	}
	return filepath.Dir(path)
}

// windowTitle is shown in the title bar for a bound file.
func windowTitle(path string) string {
	if path == "" {
		return "Excalidraw"
	}
	return filepath.Base(path) + " - Excalidraw"
}

// WindowTitle returns the title for the startup file.
func WindowTitle(path string) string {
	return windowTitle(path)
}
