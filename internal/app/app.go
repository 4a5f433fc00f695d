// Package app wires the application together: settings, the coordinate
// cache, the execution log, the runner registry and the pipeline.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/mkweon/cephauto/internal/coords"
	"github.com/mkweon/cephauto/internal/registry"
	"github.com/mkweon/cephauto/internal/runlog"
	"github.com/mkweon/cephauto/internal/settings"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	settings *settings.Settings
	store    *settings.Store
	coords   *coords.Cache
	runLog   *runlog.Log
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// Everything the logger emits is also appended to the execution log file.
func NewApp(outW io.Writer, appConfig *Config, modules ...registry.Module) *App {
	store := settings.NewStore(appConfig.DataDir)
	cfg, err := store.Load()
	if err != nil {
		panic(fmt.Errorf("failed to load settings: %w", err))
	}

	runLog, err := runlog.Open(filepath.Join(appConfig.DataDir, "logs", "automation.log"))
	if err != nil {
		panic(fmt.Errorf("failed to open execution log: %w", err))
	}

	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat,
		io.MultiWriter(outW, runLog.Writer()))
	logger.Debug("Logger configured successfully.")

	cache, err := coords.Load(filepath.Join(appConfig.DataDir, "coordinates.json"))
	if err != nil {
		panic(fmt.Errorf("failed to load coordinate cache: %w", err))
	}
	logger.Debug("Coordinate cache loaded.", "targets", len(cache.Names()))

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All automation modules registered.", "count", len(modules))

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		settings: cfg,
		store:    store,
		coords:   cache,
		runLog:   runLog,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Settings returns the loaded settings. This is primarily for testing.
func (a *App) Settings() *settings.Settings {
	return a.settings
}
