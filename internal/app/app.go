// Package app wires configuration, logging, the search-path engine, the
// validator and the script-facing filesystem together, and runs scripts
// against the result.
package app

import (
	"io"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/dshills/luafs/internal/config"
	"github.com/dshills/luafs/internal/engine"
	"github.com/dshills/luafs/internal/fsys"
	"github.com/dshills/luafs/internal/logging"
	"github.com/dshills/luafs/internal/metrics"
	"github.com/dshills/luafs/internal/validate"
)

// Options configures application startup.
type Options struct {
	// ConfigPath is the config file to load. Empty means defaults only.
	ConfigPath string

	// LogLevel and Policy override the loaded configuration when set.
	LogLevel string
	Policy   string

	// WorkDir roots the default mount layout used when the configuration
	// has no mounts. Empty disables the default layout.
	WorkDir string

	// Fs is the host filesystem. Defaults to afero.OsFs.
	Fs afero.Fs

	// Output receives script print output. Defaults to os.Stdout.
	Output io.Writer

	// LogOutput receives log lines when no log file is configured.
	// Defaults to os.Stderr.
	LogOutput io.Writer

	// Registry receives the metrics. Defaults to a fresh registry.
	Registry *prometheus.Registry

	// Lookup reads environment overrides. Defaults to os.LookupEnv.
	Lookup config.LookupFunc
}

// Application owns every component needed to run sandboxed scripts.
type Application struct {
	opts Options

	config    *config.Config
	logger    *logging.Logger
	metrics   *metrics.Metrics
	engine    *engine.SearchPathFS
	validator *validate.Validator
	fs        *fsys.Filesystem

	mu     sync.Mutex
	closed bool
}

// New loads the configuration and builds every component. On failure,
// components already built are released.
func New(opts Options) (*Application, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Lookup == nil {
		opts.Lookup = os.LookupEnv
	}

	app := &Application{opts: opts}
	if err := newBootstrapper(app).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// Config returns the effective configuration.
func (app *Application) Config() *config.Config {
	return app.config
}

// Logger returns the application logger.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}

// Metrics returns the admission and script metrics.
func (app *Application) Metrics() *metrics.Metrics {
	return app.metrics
}

// Engine returns the search-path engine.
func (app *Application) Engine() *engine.SearchPathFS {
	return app.engine
}

// Filesystem returns the script-facing filesystem.
func (app *Application) Filesystem() *fsys.Filesystem {
	return app.fs
}

// Close releases the engine and the log file. It is safe to call more than
// once.
func (app *Application) Close() error {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.closed {
		return nil
	}
	app.closed = true

	var firstErr error
	if app.engine != nil {
		if err := app.engine.Shutdown(); err != nil {
			firstErr = err
		}
	}
	if app.logger != nil {
		if err := app.logger.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (app *Application) isClosed() bool {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.closed
}
