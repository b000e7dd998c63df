package fsys

import (
	"os"
	"path/filepath"

	"github.com/dshills/luafs/internal/engine"
	"github.com/dshills/luafs/internal/validate"
)

// useNative reports whether d must bypass the engine. Engines on
// case-insensitive hosts mangle non-ASCII names, so those paths are served
// from the host filesystem directly.
func (fs *Filesystem) useNative(d validate.Decision) bool {
	return d.NonASCII && fs.v.Policy().CaseInsensitive
}

// nativePath resolves d on the host. Reads use the first search root that
// holds the path; writes use the mount's captured write root.
func (fs *Filesystem) nativePath(d validate.Decision) (string, bool) {
	rel := filepath.FromSlash(d.Path)
	if d.Intent == validate.IntentWrite {
		root, ok := fs.writeRoots[d.MountID]
		if !ok {
			return "", false
		}
		return filepath.Join(root, rel), true
	}
	for _, root := range splitSearchPath(fs.eng.GetSearchPath(d.MountID, false)) {
		p := filepath.Join(root, rel)
		if _, err := fs.native.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func (fs *Filesystem) nativeStat(d validate.Decision) (os.FileInfo, bool) {
	p, ok := fs.nativePath(d)
	if !ok {
		return nil, false
	}
	info, err := fs.native.Stat(p)
	if err != nil {
		return nil, false
	}
	return info, true
}

func (fs *Filesystem) openNative(d validate.Decision, mode string) (*File, bool) {
	flag, ok := engine.ParseMode(mode)
	if !ok {
		return nil, false
	}
	p, ok := fs.nativePath(d)
	if !ok {
		return nil, false
	}
	f, err := fs.native.OpenFile(p, flag, 0o644)
	if err != nil {
		fs.logger.Debug("native open %s: %v", p, err)
		return nil, false
	}
	if info, err := f.Stat(); err != nil || info.IsDir() {
		_ = f.Close()
		return nil, false
	}
	return newFile(HandleNative, &nativeStream{f: f}), true
}
