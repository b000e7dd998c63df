package fsys

import (
	"errors"
	"io"

	"github.com/spf13/afero"

	"github.com/dshills/luafs/internal/engine"
)

// stream is the byte-level contract shared by both handle kinds.
type stream interface {
	read(p []byte) int
	write(p []byte) int
	seek(offset int64, whence engine.Whence) bool
	tell() int64
	size() int64
	flush() bool
	eof() bool
	ok() bool
	close()
}

type engineStream struct {
	eng engine.Engine
	h   engine.Handle
}

func (s *engineStream) read(p []byte) int  { return s.eng.Read(s.h, p) }
func (s *engineStream) write(p []byte) int { return s.eng.Write(s.h, p) }
func (s *engineStream) tell() int64        { return s.eng.Tell(s.h) }
func (s *engineStream) size() int64        { return s.eng.SizeOf(s.h) }
func (s *engineStream) eof() bool          { return s.eng.EndOfFile(s.h) }
func (s *engineStream) ok() bool           { return s.eng.IsOk(s.h) }
func (s *engineStream) close()             { s.eng.Close(s.h) }

// seek reports success when the engine lands on the requested offset. The
// engine's Seek has no result, so the outcome is read back through Tell.
func (s *engineStream) seek(offset int64, whence engine.Whence) bool {
	var base int64
	switch whence {
	case engine.SeekCurrent:
		base = s.eng.Tell(s.h)
	case engine.SeekEnd:
		base = s.eng.SizeOf(s.h)
	}
	target := base + offset
	if target < 0 {
		return false
	}
	s.eng.Seek(s.h, offset, whence)
	return s.eng.Tell(s.h) == target
}

func (s *engineStream) flush() bool {
	s.eng.Flush(s.h)
	return s.eng.IsOk(s.h)
}

// nativeStream reads and writes a host file directly, tracking end-of-file
// and error state the way a C stream does.
type nativeStream struct {
	f      afero.File
	atEOF  bool
	failed bool
}

func (s *nativeStream) read(p []byte) int {
	n, err := io.ReadFull(s.f, p)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		s.atEOF = true
	case err != nil:
		s.failed = true
	}
	return n
}

func (s *nativeStream) write(p []byte) int {
	n, err := s.f.Write(p)
	if err != nil {
		s.failed = true
	}
	return n
}

func (s *nativeStream) seek(offset int64, whence engine.Whence) bool {
	if _, err := s.f.Seek(offset, int(whence)); err != nil {
		return false
	}
	s.atEOF = false
	return true
}

func (s *nativeStream) tell() int64 {
	pos, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0
	}
	return pos
}

func (s *nativeStream) size() int64 {
	info, err := s.f.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

func (s *nativeStream) flush() bool {
	if err := s.f.Sync(); err != nil {
		s.failed = true
		return false
	}
	return true
}

func (s *nativeStream) eof() bool { return s.atEOF }
func (s *nativeStream) ok() bool  { return !s.failed }
func (s *nativeStream) close()    { _ = s.f.Close() }
