// Package fsys is the script-facing filesystem. Every operation is admitted
// by a validate.Validator before the host engine is consulted; denials come
// back as false, zero or empty results, never as errors.
package fsys

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/spf13/afero"

	"github.com/dshills/luafs/internal/engine"
	"github.com/dshills/luafs/internal/logging"
	"github.com/dshills/luafs/internal/validate"
)

// Recorder observes admission decisions.
type Recorder interface {
	Admission(op string, intent validate.Intent, err error)
}

type nopRecorder struct{}

func (nopRecorder) Admission(string, validate.Intent, error) {}

// Filesystem mediates script access to an engine.
type Filesystem struct {
	eng      engine.Engine
	native   afero.Fs
	v        *validate.Validator
	logger   *logging.Logger
	recorder Recorder

	// writeRoot is the physical root of DEFAULT_WRITE_PATH. Search-path
	// directories are always rebased under it.
	writeRoot string
	// writeRoots holds the physical root of each write-whitelisted mount.
	writeRoots map[string]string
}

// Option configures a Filesystem.
type Option func(*Filesystem)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(fs *Filesystem) {
		if l != nil {
			fs.logger = l.WithComponent("fsys")
		}
	}
}

// WithRecorder sets the admission observer.
func WithRecorder(r Recorder) Option {
	return func(fs *Filesystem) {
		if r != nil {
			fs.recorder = r
		}
	}
}

// New captures the write roots from eng. It fails when DEFAULT_WRITE_PATH or
// any write-whitelisted mount has no directory root. native is the host
// filesystem used for directory renames, directory removal and the
// non-ASCII fallback.
func New(eng engine.Engine, native afero.Fs, v *validate.Validator, opts ...Option) (*Filesystem, error) {
	fs := &Filesystem{
		eng:        eng,
		native:     native,
		v:          v,
		logger:     logging.Nop(),
		recorder:   nopRecorder{},
		writeRoots: make(map[string]string),
	}
	for _, opt := range opts {
		opt(fs)
	}

	fs.writeRoot = firstRoot(eng.GetSearchPath(engine.DefaultWritePathID, false))
	if fs.writeRoot == "" {
		return nil, fmt.Errorf("%w: %s has no search path", ErrEngineUnavailable, engine.DefaultWritePathID)
	}

	mounts := v.Mounts(validate.IntentWrite)
	sort.Strings(mounts)
	for _, id := range mounts {
		root := firstRoot(eng.GetSearchPath(id, false))
		if root == "" {
			return nil, fmt.Errorf("%w: write mount %q has no search path", ErrEngineUnavailable, id)
		}
		fs.writeRoots[id] = root
	}

	fs.logger.Debug("write root %s", fs.writeRoot)
	return fs, nil
}

// WriteRoot returns the captured default write root.
func (fs *Filesystem) WriteRoot() string { return fs.writeRoot }

func splitSearchPath(list string) []string {
	parts := strings.Split(list, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstRoot(list string) string {
	if roots := splitSearchPath(list); len(roots) > 0 {
		return roots[0]
	}
	return ""
}

func (fs *Filesystem) admit(op, path, mountID string, intent validate.Intent) (validate.Decision, bool) {
	d, err := fs.v.Admit(path, mountID, intent)
	fs.record(op, path, mountID, intent, err)
	return d, err == nil
}

func (fs *Filesystem) record(op, path, mountID string, intent validate.Intent, err error) {
	fs.recorder.Admission(op, intent, err)
	if err == nil || !fs.logger.Enabled(logging.LevelDebug) {
		return
	}
	fs.logger.WithFields(map[string]any{
		"op":     op,
		"path":   path,
		"mount":  mountID,
		"intent": intent,
		"reason": validate.Reason(err),
	}).Debug("denied")
}

// Open opens path on mountID. A mode holding 'w', 'a' or '+' is validated
// as a write.
func (fs *Filesystem) Open(path, mode, mountID string) (*File, bool) {
	d, ok := fs.admit("open", path, mountID, validate.IntentFromMode(mode))
	if !ok {
		return nil, false
	}

	if fs.useNative(d) {
		return fs.openNative(d, mode)
	}

	h := fs.eng.Open(d.Path, mode, d.MountID)
	if h == engine.InvalidHandle {
		return nil, false
	}
	return newFile(HandleEngine, &engineStream{eng: fs.eng, h: h}), true
}

func (fs *Filesystem) Exists(path, mountID string) bool {
	d, ok := fs.admit("exists", path, mountID, validate.IntentRead)
	if !ok {
		return false
	}
	if fs.useNative(d) {
		_, ok := fs.nativeStat(d)
		return ok
	}
	return fs.eng.FileExists(d.Path, d.MountID)
}

func (fs *Filesystem) IsDirectory(path, mountID string) bool {
	d, ok := fs.admit("isdirectory", path, mountID, validate.IntentRead)
	if !ok {
		return false
	}
	if fs.useNative(d) {
		info, ok := fs.nativeStat(d)
		return ok && info.IsDir()
	}
	return fs.eng.IsDirectory(d.Path, d.MountID)
}

func (fs *Filesystem) GetSize(path, mountID string) int64 {
	d, ok := fs.admit("getsize", path, mountID, validate.IntentRead)
	if !ok {
		return 0
	}
	if fs.useNative(d) {
		if info, ok := fs.nativeStat(d); ok && !info.IsDir() {
			return info.Size()
		}
		return 0
	}
	return fs.eng.Size(d.Path, d.MountID)
}

// GetTime returns the modification time in Unix seconds.
func (fs *Filesystem) GetTime(path, mountID string) int64 {
	d, ok := fs.admit("gettime", path, mountID, validate.IntentRead)
	if !ok {
		return 0
	}
	if fs.useNative(d) {
		if info, ok := fs.nativeStat(d); ok {
			return info.ModTime().Unix()
		}
		return 0
	}
	return fs.eng.GetPathTime(d.Path, d.MountID)
}

// Rename moves oldPath to newPath within mountID. The engine cannot rename
// directories, so those are renamed natively on their resolved paths.
func (fs *Filesystem) Rename(oldPath, newPath, mountID string) bool {
	from, ok := fs.admit("rename", oldPath, mountID, validate.IntentWrite)
	if !ok {
		return false
	}
	to, ok := fs.admit("rename", newPath, mountID, validate.IntentWrite)
	if !ok {
		return false
	}

	if fs.useNative(from) || fs.useNative(to) || fs.eng.IsDirectory(from.Path, from.MountID) {
		src, ok := fs.resolve(from)
		if !ok {
			return false
		}
		dst, ok := fs.resolve(to)
		if !ok {
			return false
		}
		if err := fs.native.Rename(src, dst); err != nil {
			fs.logger.Warn("rename %s -> %s: %v", src, dst, err)
			return false
		}
		return true
	}

	return fs.eng.RenameFile(from.Path, to.Path, from.MountID)
}

// Remove deletes a file or an empty directory. File removal is confirmed by
// checking that the file no longer exists.
func (fs *Filesystem) Remove(path, mountID string) bool {
	d, ok := fs.admit("remove", path, mountID, validate.IntentWrite)
	if !ok {
		return false
	}

	if fs.useNative(d) || fs.eng.IsDirectory(d.Path, d.MountID) {
		full, ok := fs.resolve(d)
		if !ok {
			return false
		}
		if err := fs.native.Remove(full); err != nil {
			fs.logger.Warn("remove %s: %v", full, err)
			return false
		}
		return true
	}

	if !fs.eng.FileExists(d.Path, d.MountID) {
		return false
	}
	fs.eng.RemoveFile(d.Path, d.MountID)
	return !fs.eng.FileExists(d.Path, d.MountID)
}

// MakeDirectory creates path and any missing parents.
func (fs *Filesystem) MakeDirectory(path, mountID string) bool {
	d, ok := fs.admit("makedirectory", path, mountID, validate.IntentWrite)
	if !ok {
		return false
	}
	if fs.useNative(d) {
		full, ok := fs.nativePath(d)
		if !ok {
			return false
		}
		if err := fs.native.MkdirAll(full, 0o755); err != nil {
			fs.logger.Warn("mkdir %s: %v", full, err)
			return false
		}
		return true
	}
	fs.eng.CreateDirHierarchy(d.Path, d.MountID)
	return fs.eng.IsDirectory(d.Path, d.MountID)
}

// Find lists entries matching pattern, split into files and directories.
// Both slices are sorted and never nil.
func (fs *Filesystem) Find(pattern, mountID string) (files, dirs []string) {
	files, dirs = []string{}, []string{}

	d, err := fs.v.AdmitFind(pattern, mountID)
	fs.record("find", pattern, mountID, validate.IntentRead, err)
	if err != nil {
		return files, dirs
	}

	fh, name := fs.eng.FindFirst(d.Path, d.MountID)
	if fh == engine.InvalidFindHandle {
		return files, dirs
	}
	defer fs.eng.FindClose(fh)

	for ok := true; ok; name, ok = fs.eng.FindNext(fh) {
		if name == "." || name == ".." || name == "" {
			continue
		}
		if fs.eng.FindIsDirectory(fh) {
			dirs = append(dirs, name)
		} else {
			files = append(files, name)
		}
	}

	sort.Strings(files)
	sort.Strings(dirs)
	return files, dirs
}

// SearchPathMap returns every mount with its physical roots in search
// order. It is informational and not gated.
func (fs *Filesystem) SearchPathMap() map[string][]string {
	out := make(map[string][]string)
	for _, sp := range fs.eng.SearchPaths() {
		out[sp.MountID] = append(out[sp.MountID], sp.Path)
	}
	return out
}

// SearchPaths returns mountID's physical roots, packs included.
func (fs *Filesystem) SearchPaths(mountID string) []string {
	return splitSearchPath(fs.eng.GetSearchPath(mountID, true))
}

// AddSearchPath appends dir, taken relative to the default write root, to
// mountID's search path.
func (fs *Filesystem) AddSearchPath(dir, mountID string) bool {
	d, full, ok := fs.admitSearchPath("addsearchpath", dir, mountID)
	if !ok {
		return false
	}
	fs.eng.AddSearchPath(full, d.MountID, engine.AddToTail)
	return true
}

// RemoveSearchPath removes dir, taken relative to the default write root,
// from mountID's search path.
func (fs *Filesystem) RemoveSearchPath(dir, mountID string) bool {
	d, full, ok := fs.admitSearchPath("removesearchpath", dir, mountID)
	if !ok {
		return false
	}
	return fs.eng.RemoveSearchPath(full, d.MountID)
}

func (fs *Filesystem) admitSearchPath(op, dir, mountID string) (validate.Decision, string, bool) {
	d, err := fs.v.AdmitSearchPath(dir, mountID)
	fs.record(op, dir, mountID, validate.IntentSearchPath, err)
	if err != nil {
		return d, "", false
	}
	full, err := securejoin.SecureJoinVFS(fs.writeRoot, filepath.FromSlash(d.Path), aferoVFS{fs.native})
	if err != nil {
		fs.logger.Warn("%s %s: %v", op, dir, err)
		return d, "", false
	}
	return d, full, true
}

// resolve maps an admitted path to its physical location.
func (fs *Filesystem) resolve(d validate.Decision) (string, bool) {
	if fs.useNative(d) {
		return fs.nativePath(d)
	}
	return fs.eng.RelativePathToFullPath(d.Path, d.MountID)
}

// aferoVFS lets securejoin walk symlinks through an afero filesystem.
type aferoVFS struct{ fs afero.Fs }

func (v aferoVFS) Lstat(name string) (os.FileInfo, error) {
	if l, ok := v.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(name)
		return info, err
	}
	return v.fs.Stat(name)
}

func (v aferoVFS) Readlink(name string) (string, error) {
	if r, ok := v.fs.(afero.LinkReader); ok {
		return r.ReadlinkIfPossible(name)
	}
	return "", &os.PathError{Op: "readlink", Path: name, Err: afero.ErrNoReadlink}
}
