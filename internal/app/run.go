package app

import (
	"context"
	"time"

	"github.com/dshills/luafs/internal/script"
	"github.com/dshills/luafs/internal/watch"
)

// RunScript executes the Lua file at path in a fresh sandboxed state with the
// filesystem global installed. Scripts are read from the host filesystem.
func (app *Application) RunScript(ctx context.Context, path string) error {
	if app.isClosed() {
		return ErrClosed
	}

	state, err := script.NewState(
		script.WithExecutionTimeout(app.config.Script.Timeout.Std()),
		script.WithInstructionLimit(app.config.Script.InstructionLimit),
		script.WithScriptFs(app.opts.Fs),
		script.WithOutput(app.opts.Output),
		script.WithLogger(app.logger),
	)
	if err != nil {
		return err
	}
	defer func() { _ = state.Close() }()

	state.OpenFilesystem(app.fs)

	start := time.Now()
	err = state.DoFile(ctx, path)
	app.metrics.RecordScriptRun(time.Since(start), err)
	return err
}

// WatchScript runs path once and again after every change to it or to any of
// extra, until ctx is done. Script failures are logged and do not stop the
// loop.
func (app *Application) WatchScript(ctx context.Context, path string, extra ...string) error {
	w, err := watch.New(watch.WithLogger(app.logger))
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	for _, p := range append([]string{path}, extra...) {
		if err := w.Add(p); err != nil {
			return err
		}
	}

	app.runLogged(ctx, path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-w.Batches():
			if !ok {
				return nil
			}
			for _, ev := range batch {
				app.logger.Info("%s %s", ev.Op, ev.Path)
			}
			app.runLogged(ctx, path)
		}
	}
}

func (app *Application) runLogged(ctx context.Context, path string) {
	if err := app.RunScript(ctx, path); err != nil {
		app.logger.Error("%s: %v", path, err)
	}
}
