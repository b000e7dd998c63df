package app

import (
	"fmt"
	"strings"

	"github.com/dshills/luafs/internal/config"
	"github.com/dshills/luafs/internal/engine"
	"github.com/dshills/luafs/internal/fsys"
	"github.com/dshills/luafs/internal/logging"
	"github.com/dshills/luafs/internal/metrics"
	"github.com/dshills/luafs/internal/validate"
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app       *Application
	initOrder []string
}

func newBootstrapper(app *Application) *bootstrapper {
	return &bootstrapper{
		app:       app,
		initOrder: make([]string, 0, 6),
	}
}

// bootstrap initializes all components in dependency order.
func (b *bootstrapper) bootstrap() error {
	steps := []func() error{
		b.initConfig,
		b.initLogger,
		b.initMetrics,
		b.initEngine,
		b.initValidator,
		b.initMounts,
		b.initFilesystem,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			b.cleanup()
			return err
		}
	}
	b.app.logger.Debug("initialized %s", strings.Join(b.initOrder, ", "))
	return nil
}

// initConfig loads the config file and applies flag overrides.
func (b *bootstrapper) initConfig() error {
	opts := b.app.opts
	cfg, err := config.LoadWithEnv(opts.Fs, opts.ConfigPath, opts.Lookup)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.Policy != "" {
		cfg.Policy = opts.Policy
	}
	if len(cfg.Mounts) == 0 && opts.WorkDir != "" {
		cfg.Mounts = defaultMounts(opts.WorkDir)
	}
	if err := cfg.Validate(); err != nil {
		return &InitError{Component: "config", Err: err}
	}

	b.app.config = cfg
	b.initOrder = append(b.initOrder, "config")
	return nil
}

func (b *bootstrapper) initLogger() error {
	lc := b.app.config.LoggerConfig()
	lc.Output = b.app.opts.LogOutput
	logger, err := logging.New(lc)
	if err != nil {
		return &InitError{Component: "logger", Err: err}
	}
	b.app.logger = logger
	b.initOrder = append(b.initOrder, "logger")
	return nil
}

func (b *bootstrapper) initMetrics() error {
	m, err := metrics.New(b.app.opts.Registry)
	if err != nil {
		return &InitError{Component: "metrics", Err: err}
	}
	b.app.metrics = m
	b.initOrder = append(b.initOrder, "metrics")
	return nil
}

func (b *bootstrapper) initEngine() error {
	b.app.engine = engine.NewSearchPathFS(b.app.opts.Fs, engine.WithLogger(b.app.logger))
	b.initOrder = append(b.initOrder, "engine")
	return nil
}

func (b *bootstrapper) initValidator() error {
	policy, err := b.app.config.PathPolicy()
	if err != nil {
		return &InitError{Component: "validator", Err: err}
	}
	b.app.validator = validate.New(b.app.engine, validate.WithPolicy(policy))
	b.initOrder = append(b.initOrder, "validator")
	return nil
}

// initMounts registers every configured root in sorted mount order. Roots of
// write mounts are created when missing; read-only roots must already exist.
func (b *bootstrapper) initMounts() error {
	cfg := b.app.config

	writable := map[string]bool{
		validate.FoldMountID(engine.DefaultWritePathID): true,
	}
	for _, id := range b.app.validator.Mounts(validate.IntentWrite) {
		writable[id] = true
	}

	hasWriteRoot := false
	for _, id := range cfg.MountIDs() {
		folded := validate.FoldMountID(id)
		if folded == validate.FoldMountID(engine.DefaultWritePathID) {
			hasWriteRoot = len(cfg.Mounts[id]) > 0
		}
		for _, root := range cfg.Mounts[id] {
			if writable[folded] {
				if err := b.app.opts.Fs.MkdirAll(root, 0o755); err != nil {
					return &InitError{Component: "mounts", Err: fmt.Errorf("creating %s: %w", root, err)}
				}
			}
			if err := b.app.engine.Mount(id, root, engine.AddToTail); err != nil {
				return &InitError{Component: "mounts", Err: err}
			}
		}
	}
	if !hasWriteRoot {
		return &InitError{Component: "mounts", Err: ErrNoWriteMount}
	}

	b.initOrder = append(b.initOrder, "mounts")
	return nil
}

func (b *bootstrapper) initFilesystem() error {
	fs, err := fsys.New(b.app.engine, b.app.opts.Fs, b.app.validator,
		fsys.WithLogger(b.app.logger),
		fsys.WithRecorder(b.app.metrics),
	)
	if err != nil {
		return &InitError{Component: "filesystem", Err: err}
	}
	b.app.fs = fs
	b.initOrder = append(b.initOrder, "filesystem")
	return nil
}

// cleanup releases components in reverse initialization order.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		switch b.initOrder[i] {
		case "engine":
			if b.app.engine != nil {
				_ = b.app.engine.Shutdown()
			}
		case "logger":
			if b.app.logger != nil {
				_ = b.app.logger.Close()
			}
		}
	}
}
