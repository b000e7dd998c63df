package engine

import (
	"path"
	"strings"

	"github.com/spf13/afero"
)

type findEntry struct {
	name string
	dir  bool
}

type findState struct {
	entries []findEntry
	idx     int
}

// FindFirst starts enumerating entries matching pattern, whose final
// component may hold '*' and '?' wildcards. Names found in more than one
// root are reported once, classified by the first root.
func (e *SearchPathFS) FindFirst(pattern, mountID string) (FindHandle, string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := e.lookup(mountID)
	if m == nil || e.closed {
		return InvalidFindHandle, ""
	}

	pattern = strings.TrimSuffix(pattern, "/")
	dir, glob := path.Split(pattern)
	if glob == "" {
		return InvalidFindHandle, ""
	}

	seen := make(map[string]bool)
	var entries []findEntry
	for _, r := range m.roots {
		infos, err := afero.ReadDir(r.view, viewPath(strings.TrimSuffix(dir, "/")))
		if err != nil {
			continue
		}
		for _, info := range infos {
			name := info.Name()
			if seen[name] {
				continue
			}
			if ok, _ := path.Match(glob, name); !ok {
				continue
			}
			seen[name] = true
			entries = append(entries, findEntry{name: name, dir: info.IsDir()})
		}
	}
	if len(entries) == 0 {
		return InvalidFindHandle, ""
	}

	e.nextFind++
	if e.nextFind == InvalidFindHandle {
		e.nextFind++
	}
	fh := e.nextFind
	e.finds[fh] = &findState{entries: entries}
	return fh, entries[0].name
}

func (e *SearchPathFS) FindNext(fh FindHandle) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.finds[fh]
	if st == nil || st.idx+1 >= len(st.entries) {
		return "", false
	}
	st.idx++
	return st.entries[st.idx].name, true
}

func (e *SearchPathFS) FindIsDirectory(fh FindHandle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.finds[fh]
	return st != nil && st.entries[st.idx].dir
}

func (e *SearchPathFS) FindClose(fh FindHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.finds, fh)
}
