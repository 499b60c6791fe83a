package main

import (
	"embed"
	"fmt"
	"log/slog"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"github.com/wailsapp/wails/v2/pkg/options/mac"

	excaliviewApp "excaliview/internal/app"
	"excaliview/internal/config"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	Execute()
}

// runWindow opens the editor window bound to path and blocks until it closes.
func runWindow(path string, cfg config.Config) error {
	app := excaliviewApp.New(excaliviewApp.Options{
		Path:   path,
		Config: cfg,
		Logger: slog.Default(),
	})

	logLevel := logger.INFO
	if cfg.Debug {
		logLevel = logger.DEBUG
	}
	startState := options.Normal
	if cfg.Fullscreen {
		startState = options.Fullscreen
	}

	err := wails.Run(&options.App{
		Title:            excaliviewApp.WindowTitle(path),
		Width:            1280,
		Height:           800,
		MinWidth:         640,
		MinHeight:        480,
		WindowStartState: startState,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 255, G: 255, B: 255, A: 1},
		Menu:             excaliviewApp.NewMenu(app),
		LogLevel:         logLevel,
		OnStartup:        app.Startup,
		OnShutdown:       app.Shutdown,
		Bind: []interface{}{
			app,
		},
		Mac: &mac.Options{
			About: &mac.AboutInfo{
				Title:   "Excaliview",
				Message: "Desktop shell for Excalidraw drawings",
			},
		},
		Linux: &linux.Options{
			ProgramName: "excaliview",
		},
	})
	if err != nil {
		return fmt.Errorf("run window: %w", err)
	}
	return nil
}
