// Package config loads runtime settings from the environment. Command-line
// flags are applied on top by the caller.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
)

// Config holds everything the desktop shell needs besides the file path.
type Config struct {
	Debug       bool   `env:"EXCALIDRAW_DEBUG" envDefault:"false"`
	Fullscreen  bool   `env:"EXCALIDRAW_FULLSCREEN" envDefault:"false"`
	CloseOnSave bool   `env:"EXCALIDRAW_CLOSE_ON_SAVE" envDefault:"false"`
	Watch       bool   `env:"EXCALIDRAW_WATCH" envDefault:"true"`
	// Autosave is a cron spec such as "@every 5m". Empty disables it.
	Autosave string `env:"EXCALIDRAW_AUTOSAVE"`

	ExportScale   float64 `env:"EXCALIDRAW_EXPORT_SCALE" envDefault:"1"`
	ExportPadding float64 `env:"EXCALIDRAW_EXPORT_PADDING" envDefault:"10"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that can be wrong after flags are applied too.
func (c Config) Validate() error {
	if c.ExportScale <= 0 {
		return fmt.Errorf("export scale must be positive, got %v", c.ExportScale)
	}
	if c.ExportPadding < 0 {
		return fmt.Errorf("export padding must not be negative, got %v", c.ExportPadding)
	}
	if c.Autosave != "" {
		if _, err := cron.ParseStandard(c.Autosave); err != nil {
			return fmt.Errorf("autosave schedule %q: %w", c.Autosave, err)
		}
	}
	return nil
}
