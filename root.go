package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"excaliview/internal/config"
)

var (
	flagCloseOnSave bool
	flagFullscreen  bool
	flagDebug       bool
	flagAutosave    string
	flagNoWatch     bool
)

// rootCmd opens the editor window.
var rootCmd = &cobra.Command{
	Use:   "excaliview [file]",
	Short: "Edit Excalidraw drawings stored as .excalidraw, .svg or .png",
	Long: `Excaliview opens a drawing in an Excalidraw window. SVG and PNG files
keep the editable scene embedded, so the same file is both an image and a
document. Without a file a new drawing is started; Save asks where to put it.`,
	Args: cobra.MaximumNArgs(1),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if flagDebug || os.Getenv("EXCALIDRAW_DEBUG") == "true" {
			level = slog.LevelDebug
		}
		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		var path string
		if len(args) == 1 {
			path = args[0]
		}
		return runWindow(path, cfg)
	},
}

// loadConfig reads the environment and applies flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("close-on-save") {
		cfg.CloseOnSave = flagCloseOnSave
	}
	if flags.Changed("fullscreen") {
		cfg.Fullscreen = flagFullscreen
	}
	if flags.Changed("debug") {
		cfg.Debug = flagDebug
	}
	if flags.Changed("autosave") {
		cfg.Autosave = flagAutosave
	}
	if flags.Changed("no-watch") {
		cfg.Watch = !flagNoWatch
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// Execute runs the root command. Called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "Enable debug logging")
	rootCmd.Flags().BoolVarP(&flagCloseOnSave, "close-on-save", "c", false, "Quit after the first successful save")
	rootCmd.Flags().BoolVarP(&flagFullscreen, "fullscreen", "f", false, "Start in fullscreen")
	rootCmd.Flags().StringVar(&flagAutosave, "autosave", "", `Autosave schedule in cron syntax, e.g. "@every 2m"`)
	rootCmd.Flags().BoolVar(&flagNoWatch, "no-watch", false, "Do not reload the file when it changes on disk")
}
