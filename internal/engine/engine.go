// Package engine defines the host search-path filesystem the facade
// delegates to, and provides SearchPathFS, an implementation over afero.
//
// The contract mirrors a game-engine style virtual filesystem: paths are
// relative to a named mount ("pathID") that maps to an ordered list of
// physical directories or pack archives. Reads search the list in order;
// writes land in the first writable directory.
package engine

// DefaultWritePathID names the mount whose first root receives writes that
// are not tied to a particular content mount.
const DefaultWritePathID = "DEFAULT_WRITE_PATH"

// Handle is an open file in the engine. The zero value is invalid.
type Handle uint32

// InvalidHandle is returned when an open fails.
const InvalidHandle Handle = 0

// FindHandle is an in-progress enumeration. The zero value is invalid.
type FindHandle uint32

// InvalidFindHandle is returned when a find matches nothing.
const InvalidFindHandle FindHandle = 0

// Whence is the origin of a seek.
type Whence int

const (
	SeekStart Whence = iota
	SeekCurrent
	SeekEnd
)

// Position selects where AddSearchPath inserts a root.
type Position int

const (
	AddToTail Position = iota
	AddToHead
)

// SearchPath is one physical root registered under a mount.
type SearchPath struct {
	MountID string
	Path    string
	// Pack is set for archive roots.
	Pack bool
}

// Engine is the host filesystem consumed by the facade. Every path argument
// is relative to mountID. Failures are reported the way the host reports
// them: zero values, false, or InvalidHandle.
type Engine interface {
	Open(path, mode, mountID string) Handle
	Close(h Handle)
	Read(h Handle, p []byte) int
	Write(h Handle, p []byte) int
	Seek(h Handle, offset int64, whence Whence)
	Tell(h Handle) int64
	SizeOf(h Handle) int64
	Flush(h Handle)
	EndOfFile(h Handle) bool
	IsOk(h Handle) bool

	FileExists(path, mountID string) bool
	IsDirectory(path, mountID string) bool
	GetPathTime(path, mountID string) int64
	Size(path, mountID string) int64
	RenameFile(oldPath, newPath, mountID string) bool
	RemoveFile(path, mountID string)
	CreateDirHierarchy(path, mountID string)

	FindFirst(pattern, mountID string) (FindHandle, string)
	FindNext(fh FindHandle) (string, bool)
	FindIsDirectory(fh FindHandle) bool
	FindClose(fh FindHandle)

	// GetSearchPath returns mountID's roots joined with ';'. Pack roots are
	// included only when expandPacks is set.
	GetSearchPath(mountID string, expandPacks bool) string
	SearchPaths() []SearchPath
	AddSearchPath(dir, mountID string, pos Position)
	RemoveSearchPath(dir, mountID string) bool

	FullPathToRelativePath(fullPath, mountID string) (string, bool)
	RelativePathToFullPath(relPath, mountID string) (string, bool)
}
