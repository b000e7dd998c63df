package engine

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"
)

type openFile struct {
	f      afero.File
	eof    bool
	failed bool
}

// ParseMode maps an fopen-style mode to os.OpenFile flags. 'b' and 't' are
// ignored.
func ParseMode(mode string) (int, bool) {
	m := strings.NewReplacer("b", "", "t", "").Replace(strings.ToLower(mode))
	switch m {
	case "r":
		return os.O_RDONLY, true
	case "r+":
		return os.O_RDWR, true
	case "w":
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, true
	case "w+":
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, true
	case "a":
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, true
	case "a+":
		return os.O_RDWR | os.O_CREATE | os.O_APPEND, true
	}
	return 0, false
}

// Open opens path. Read-only modes search every root in order; other modes
// operate on the mount's write root.
func (e *SearchPathFS) Open(path, mode, mountID string) Handle {
	flag, ok := ParseMode(mode)
	if !ok {
		return InvalidHandle
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return InvalidHandle
	}
	m := e.lookup(mountID)
	if m == nil {
		return InvalidHandle
	}

	p := viewPath(path)
	var f afero.File
	if flag == os.O_RDONLY {
		for _, r := range m.roots {
			candidate, err := r.view.Open(p)
			if err != nil {
				continue
			}
			if info, err := candidate.Stat(); err == nil && !info.IsDir() {
				f = candidate
				break
			}
			_ = candidate.Close()
		}
	} else if r := m.writeRoot(); r != nil {
		candidate, err := r.view.OpenFile(p, flag, 0o644)
		if err != nil {
			e.logger.Debug("open %s (%s) on %s: %v", path, mode, mountID, err)
		} else {
			f = candidate
		}
	}
	if f == nil {
		return InvalidHandle
	}

	e.nextHandle++
	if e.nextHandle == InvalidHandle {
		e.nextHandle++
	}
	h := e.nextHandle
	e.files[h] = &openFile{f: f}
	return h
}

func (e *SearchPathFS) file(h Handle) *openFile {
	return e.files[h]
}

func (e *SearchPathFS) Close(h Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if of := e.file(h); of != nil {
		_ = of.f.Close()
		delete(e.files, h)
	}
}

// Read fills p, stopping early only at end of file.
func (e *SearchPathFS) Read(h Handle, p []byte) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	of := e.file(h)
	if of == nil {
		return 0
	}
	n, err := io.ReadFull(of.f, p)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		of.eof = true
	case err != nil:
		of.failed = true
	}
	return n
}

func (e *SearchPathFS) Write(h Handle, p []byte) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	of := e.file(h)
	if of == nil {
		return 0
	}
	n, err := of.f.Write(p)
	if err != nil {
		of.failed = true
	}
	return n
}

func (e *SearchPathFS) Seek(h Handle, offset int64, whence Whence) {
	e.mu.Lock()
	defer e.mu.Unlock()
	of := e.file(h)
	if of == nil {
		return
	}
	// A rejected seek leaves the position and the error state untouched.
	if _, err := of.f.Seek(offset, int(whence)); err != nil {
		return
	}
	of.eof = false
}

func (e *SearchPathFS) Tell(h Handle) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	of := e.file(h)
	if of == nil {
		return 0
	}
	pos, err := of.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0
	}
	return pos
}

func (e *SearchPathFS) SizeOf(h Handle) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	of := e.file(h)
	if of == nil {
		return 0
	}
	info, err := of.f.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

func (e *SearchPathFS) Flush(h Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if of := e.file(h); of != nil {
		if err := of.f.Sync(); err != nil {
			of.failed = true
		}
	}
}

func (e *SearchPathFS) EndOfFile(h Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	of := e.file(h)
	return of == nil || of.eof
}

func (e *SearchPathFS) IsOk(h Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	of := e.file(h)
	return of != nil && !of.failed
}
