package engine

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/spf13/afero/zipfs"

	"github.com/dshills/luafs/internal/logging"
)

// root is one physical search directory or pack archive.
type root struct {
	path string
	pack bool
	view afero.Fs
	// archive stays open for the lifetime of a pack root.
	archive afero.File
}

type mount struct {
	id    string
	roots []*root
}

// writeRoot is the first directory root; packs are never written.
func (m *mount) writeRoot() *root {
	for _, r := range m.roots {
		if !r.pack {
			return r
		}
	}
	return nil
}

// SearchPathFS is an Engine over an afero filesystem. Mount IDs are
// case-insensitive. It is safe for concurrent use.
type SearchPathFS struct {
	mu sync.Mutex

	fs     afero.Fs
	mounts map[string]*mount
	order  []string

	files      map[Handle]*openFile
	finds      map[FindHandle]*findState
	nextHandle Handle
	nextFind   FindHandle

	logger *logging.Logger
	closed bool
}

// Option configures a SearchPathFS.
type Option func(*SearchPathFS)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *SearchPathFS) {
		if l != nil {
			e.logger = l.WithComponent("engine")
		}
	}
}

// NewSearchPathFS returns an engine with no mounts.
func NewSearchPathFS(fs afero.Fs, opts ...Option) *SearchPathFS {
	e := &SearchPathFS{
		fs:     fs,
		mounts: make(map[string]*mount),
		files:  make(map[Handle]*openFile),
		finds:  make(map[FindHandle]*findState),
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fs returns the backing filesystem.
func (e *SearchPathFS) Fs() afero.Fs { return e.fs }

func foldID(id string) string { return strings.ToLower(id) }

// Mount registers dir under mountID. dir must be an existing directory or a
// .zip archive. Registering the same root twice is a no-op.
func (e *SearchPathFS) Mount(mountID, dir string, pos Position) error {
	id := foldID(mountID)
	if id == "" {
		return ErrEmptyMount
	}
	clean := filepath.Clean(dir)

	info, err := e.fs.Stat(clean)
	if err != nil {
		return fmt.Errorf("mounting %s on %s: %w", clean, mountID, err)
	}

	var r *root
	switch {
	case info.IsDir():
		r = &root{path: clean, view: afero.NewBasePathFs(e.fs, clean)}
	case strings.EqualFold(filepath.Ext(clean), ".zip"):
		r, err = e.openPack(clean, info.Size())
		if err != nil {
			return fmt.Errorf("mounting %s on %s: %w", clean, mountID, err)
		}
	default:
		return fmt.Errorf("mounting %s on %s: %w", clean, mountID, ErrNotMountable)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		r.close()
		return ErrClosed
	}

	m := e.mounts[id]
	if m == nil {
		m = &mount{id: id}
		e.mounts[id] = m
		e.order = append(e.order, id)
	}
	for _, existing := range m.roots {
		if existing.path == clean {
			r.close()
			return nil
		}
	}
	if pos == AddToHead {
		m.roots = append([]*root{r}, m.roots...)
	} else {
		m.roots = append(m.roots, r)
	}
	e.logger.Debug("mounted %s on %s", clean, id)
	return nil
}

func (e *SearchPathFS) openPack(path string, size int64) (*root, error) {
	f, err := e.fs.Open(path)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(f, size)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &root{path: path, pack: true, view: zipfs.New(zr), archive: f}, nil
}

func (r *root) close() {
	if r.archive != nil {
		_ = r.archive.Close()
		r.archive = nil
	}
}

// Shutdown releases open files, enumerations and pack archives. It is safe
// to call more than once.
func (e *SearchPathFS) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	for h, of := range e.files {
		_ = of.f.Close()
		delete(e.files, h)
	}
	clear(e.finds)
	for _, m := range e.mounts {
		for _, r := range m.roots {
			r.close()
		}
	}
	return nil
}

// lookup returns the mount for id. Callers hold e.mu.
func (e *SearchPathFS) lookup(mountID string) *mount {
	return e.mounts[foldID(mountID)]
}

// locate returns the first root of mountID holding path.
func (e *SearchPathFS) locate(path, mountID string) (*root, os.FileInfo) {
	m := e.lookup(mountID)
	if m == nil {
		return nil, nil
	}
	p := viewPath(path)
	for _, r := range m.roots {
		if info, err := r.view.Stat(p); err == nil {
			return r, info
		}
	}
	return nil, nil
}

func viewPath(rel string) string {
	if rel == "" {
		return "."
	}
	return filepath.FromSlash(rel)
}

func (e *SearchPathFS) FileExists(path, mountID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, _ := e.locate(path, mountID)
	return r != nil
}

func (e *SearchPathFS) IsDirectory(path, mountID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, info := e.locate(path, mountID)
	return info != nil && info.IsDir()
}

func (e *SearchPathFS) GetPathTime(path, mountID string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, info := e.locate(path, mountID)
	if info == nil {
		return 0
	}
	return info.ModTime().Unix()
}

func (e *SearchPathFS) Size(path, mountID string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, info := e.locate(path, mountID)
	if info == nil || info.IsDir() {
		return 0
	}
	return info.Size()
}

// RenameFile renames within the root that holds oldPath.
func (e *SearchPathFS) RenameFile(oldPath, newPath, mountID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, info := e.locate(oldPath, mountID)
	if r == nil || r.pack || info.IsDir() {
		return false
	}
	if err := r.view.Rename(viewPath(oldPath), viewPath(newPath)); err != nil {
		e.logger.Warn("rename %s -> %s: %v", oldPath, newPath, err)
		return false
	}
	return true
}

func (e *SearchPathFS) RemoveFile(path, mountID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, info := e.locate(path, mountID)
	if r == nil || r.pack || info.IsDir() {
		return
	}
	if err := r.view.Remove(viewPath(path)); err != nil {
		e.logger.Warn("remove %s: %v", path, err)
	}
}

func (e *SearchPathFS) CreateDirHierarchy(path, mountID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.lookup(mountID)
	if m == nil {
		return
	}
	r := m.writeRoot()
	if r == nil {
		return
	}
	if err := r.view.MkdirAll(viewPath(path), 0o755); err != nil {
		e.logger.Warn("mkdir %s: %v", path, err)
	}
}

func (e *SearchPathFS) GetSearchPath(mountID string, expandPacks bool) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.lookup(mountID)
	if m == nil {
		return ""
	}
	paths := make([]string, 0, len(m.roots))
	for _, r := range m.roots {
		if r.pack && !expandPacks {
			continue
		}
		paths = append(paths, r.path)
	}
	return strings.Join(paths, ";")
}

func (e *SearchPathFS) SearchPaths() []SearchPath {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []SearchPath
	for _, id := range e.order {
		for _, r := range e.mounts[id].roots {
			out = append(out, SearchPath{MountID: id, Path: r.path, Pack: r.pack})
		}
	}
	return out
}

func (e *SearchPathFS) AddSearchPath(dir, mountID string, pos Position) {
	if err := e.Mount(mountID, dir, pos); err != nil {
		e.logger.Warn("add search path: %v", err)
	}
}

func (e *SearchPathFS) RemoveSearchPath(dir, mountID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.lookup(mountID)
	if m == nil {
		return false
	}
	clean := filepath.Clean(dir)
	for i, r := range m.roots {
		if r.path == clean {
			r.close()
			m.roots = append(m.roots[:i], m.roots[i+1:]...)
			return true
		}
	}
	return false
}

// FullPathToRelativePath finds the first directory root of mountID that
// contains fullPath. An empty mountID searches every mount in registration
// order.
func (e *SearchPathFS) FullPathToRelativePath(fullPath, mountID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := e.order
	if mountID != "" {
		ids = []string{foldID(mountID)}
	}
	clean := filepath.Clean(filepath.FromSlash(fullPath))
	for _, id := range ids {
		m := e.mounts[id]
		if m == nil {
			continue
		}
		for _, r := range m.roots {
			if r.pack {
				continue
			}
			rel, err := filepath.Rel(r.path, clean)
			if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				continue
			}
			return filepath.ToSlash(rel), true
		}
	}
	return "", false
}

// RelativePathToFullPath resolves relPath to the directory root that holds
// it, or to the write root when no root does.
func (e *SearchPathFS) RelativePathToFullPath(relPath, mountID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.lookup(mountID)
	if m == nil {
		return "", false
	}
	p := viewPath(relPath)
	for _, r := range m.roots {
		if r.pack {
			continue
		}
		if _, err := r.view.Stat(p); err == nil {
			return filepath.Join(r.path, p), true
		}
	}
	if r := m.writeRoot(); r != nil {
		return filepath.Join(r.path, p), true
	}
	return "", false
}

var _ Engine = (*SearchPathFS)(nil)
