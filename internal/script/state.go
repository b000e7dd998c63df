package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/afero"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luafs/internal/fsys"
	"github.com/dshills/luafs/internal/logging"
)

// Default limits for Lua state.
const (
	DefaultExecutionTimeout = 5 * time.Second
	DefaultInstructionLimit = 1_000_000 // host calls per execution
)

// State wraps gopher-lua for running filesystem scripts.
//
// gopher-lua's LState is not goroutine-safe. The mutex serialises callers
// from Go; Lua itself runs single-threaded.
type State struct {
	L *lua.LState

	mu sync.Mutex

	executionTimeout time.Duration
	instructionLimit int64
	scripts          afero.Fs
	out              io.Writer
	logger           *logging.Logger

	sandbox *Sandbox
	module  *Module

	closed bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout bounds each DoFile or DoString. Zero disables the
// timeout.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.executionTimeout = d
	}
}

// WithInstructionLimit bounds the number of host calls per execution. Zero
// disables the limit.
func WithInstructionLimit(limit int64) StateOption {
	return func(s *State) {
		s.instructionLimit = limit
	}
}

// WithScriptFs sets the filesystem DoFile reads scripts from. Scripts are
// trusted input and are not subject to the sandbox.
func WithScriptFs(fs afero.Fs) StateOption {
	return func(s *State) {
		s.scripts = fs
	}
}

// WithOutput redirects print.
func WithOutput(w io.Writer) StateOption {
	return func(s *State) {
		s.out = w
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) StateOption {
	return func(s *State) {
		if l != nil {
			s.logger = l.WithComponent("script")
		}
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) (*State, error) {
	state := &State{
		executionTimeout: DefaultExecutionTimeout,
		instructionLimit: DefaultInstructionLimit,
		scripts:          afero.NewOsFs(),
		out:              io.Discard,
		logger:           logging.Nop(),
	}
	for _, opt := range opts {
		opt(state)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	state.L = L

	openSafeLibraries(L)

	state.sandbox = NewSandbox(L, state.instructionLimit, state.out)
	state.sandbox.Install()

	return state, nil
}

// openSafeLibraries opens only safe Lua standard libraries.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// io, os, debug and package are never opened.
}

// OpenFilesystem installs the filesystem global backed by fs. Handles opened
// by scripts are closed when the State is closed.
func (s *State) OpenFilesystem(fs *fsys.Filesystem) *Module {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if s.module != nil {
		s.module.CloseAll()
	}
	s.module = OpenFilesystem(s.L, fs, withCharge(s.sandbox.charge))
	s.sandbox.AddModule(ModuleName, s.L.GetGlobal(ModuleName))
	return s.module
}

// Module returns the installed filesystem module, or nil.
func (s *State) Module() *Module {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.module
}

// DoFile executes a Lua file read from the script filesystem.
func (s *State) DoFile(ctx context.Context, path string) error {
	src, err := afero.ReadFile(s.scripts, path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	return s.run(ctx, path, src)
}

// DoString executes a Lua string.
func (s *State) DoString(ctx context.Context, code string) error {
	return s.run(ctx, "<string>", []byte(code))
}

func (s *State) run(ctx context.Context, name string, src []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	s.sandbox.ResetInstructionCount()

	if s.executionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.executionTimeout)
		defer cancel()
	}
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	start := time.Now()
	err := s.doWithRecovery(func() error {
		fn, err := s.L.Load(bytes.NewReader(src), name)
		if err != nil {
			return err
		}
		s.L.Push(fn)
		return s.L.PCall(0, lua.MultRet, nil)
	})
	s.L.SetTop(0)

	switch {
	case err == nil:
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("%w: %v", ErrExecutionTimeout, err)
	case s.sandbox.instructionLimit > 0 && s.sandbox.InstructionCount() > s.sandbox.instructionLimit:
		err = fmt.Errorf("%w: %v", ErrInstructionLimit, err)
	}

	s.logger.WithFields(map[string]any{
		"script":  name,
		"elapsed": time.Since(start).Round(time.Microsecond),
		"calls":   s.sandbox.InstructionCount(),
	}).Debug("executed")
	return err
}

// doWithRecovery executes a function with panic recovery.
func (s *State) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close closes every handle left open by scripts and releases the Lua state.
// After Close is called, all other methods will return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	if s.module != nil {
		if n := s.module.CloseAll(); n > 0 {
			s.logger.Debug("closed %d leaked handles", n)
		}
	}
	s.L.Close()
	s.closed = true
	return nil
}
