package fsys

import (
	"github.com/stretchr/testify/mock"

	"github.com/dshills/luafs/internal/engine"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Open(path, mode, mountID string) engine.Handle {
	return m.Called(path, mode, mountID).Get(0).(engine.Handle)
}
func (m *mockEngine) Close(h engine.Handle) { m.Called(h) }
func (m *mockEngine) Read(h engine.Handle, p []byte) int {
	return m.Called(h, p).Int(0)
}
func (m *mockEngine) Write(h engine.Handle, p []byte) int {
	return m.Called(h, p).Int(0)
}
func (m *mockEngine) Seek(h engine.Handle, offset int64, whence engine.Whence) {
	m.Called(h, offset, whence)
}
func (m *mockEngine) Tell(h engine.Handle) int64   { return m.Called(h).Get(0).(int64) }
func (m *mockEngine) SizeOf(h engine.Handle) int64 { return m.Called(h).Get(0).(int64) }
func (m *mockEngine) Flush(h engine.Handle)        { m.Called(h) }
func (m *mockEngine) EndOfFile(h engine.Handle) bool {
	return m.Called(h).Bool(0)
}
func (m *mockEngine) IsOk(h engine.Handle) bool { return m.Called(h).Bool(0) }

func (m *mockEngine) FileExists(path, mountID string) bool {
	return m.Called(path, mountID).Bool(0)
}
func (m *mockEngine) IsDirectory(path, mountID string) bool {
	return m.Called(path, mountID).Bool(0)
}
func (m *mockEngine) GetPathTime(path, mountID string) int64 {
	return m.Called(path, mountID).Get(0).(int64)
}
func (m *mockEngine) Size(path, mountID string) int64 {
	return m.Called(path, mountID).Get(0).(int64)
}
func (m *mockEngine) RenameFile(oldPath, newPath, mountID string) bool {
	return m.Called(oldPath, newPath, mountID).Bool(0)
}
func (m *mockEngine) RemoveFile(path, mountID string)         { m.Called(path, mountID) }
func (m *mockEngine) CreateDirHierarchy(path, mountID string) { m.Called(path, mountID) }

func (m *mockEngine) FindFirst(pattern, mountID string) (engine.FindHandle, string) {
	args := m.Called(pattern, mountID)
	return args.Get(0).(engine.FindHandle), args.String(1)
}
func (m *mockEngine) FindNext(fh engine.FindHandle) (string, bool) {
	args := m.Called(fh)
	return args.String(0), args.Bool(1)
}
func (m *mockEngine) FindIsDirectory(fh engine.FindHandle) bool { return m.Called(fh).Bool(0) }
func (m *mockEngine) FindClose(fh engine.FindHandle)            { m.Called(fh) }

func (m *mockEngine) GetSearchPath(mountID string, expandPacks bool) string {
	return m.Called(mountID, expandPacks).String(0)
}
func (m *mockEngine) SearchPaths() []engine.SearchPath {
	return m.Called().Get(0).([]engine.SearchPath)
}
func (m *mockEngine) AddSearchPath(dir, mountID string, pos engine.Position) {
	m.Called(dir, mountID, pos)
}
func (m *mockEngine) RemoveSearchPath(dir, mountID string) bool {
	return m.Called(dir, mountID).Bool(0)
}
func (m *mockEngine) FullPathToRelativePath(fullPath, mountID string) (string, bool) {
	args := m.Called(fullPath, mountID)
	return args.String(0), args.Bool(1)
}
func (m *mockEngine) RelativePathToFullPath(relPath, mountID string) (string, bool) {
	args := m.Called(relPath, mountID)
	return args.String(0), args.Bool(1)
}

var _ engine.Engine = (*mockEngine)(nil)

// newMockEngine answers the root lookups New performs at construction.
func newMockEngine() *mockEngine {
	m := &mockEngine{}
	m.On("GetSearchPath", engine.DefaultWritePathID, false).Return("/game/garrysmod")
	m.On("GetSearchPath", "data", false).Return("/game/garrysmod/data")
	m.On("GetSearchPath", "download", false).Return("/game/garrysmod/download")
	return m
}
