package script

import (
	"encoding/binary"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luafs/internal/engine"
	"github.com/dshills/luafs/internal/fsys"
)

// Module identity exposed to scripts.
const (
	ModuleName = "filesystem"
	Version    = "filesystem 1.4.2"
	VersionNum = 10402 // xxyyzz
)

// Module is an installed filesystem global. It owns every handle its
// scripts open.
type Module struct {
	fs    *fsys.Filesystem
	mt    *lua.LTable
	files map[*fsys.File]struct{}

	charge func(*lua.LState)
}

type moduleOption func(*Module)

func withCharge(fn func(*lua.LState)) moduleOption {
	return func(m *Module) { m.charge = fn }
}

// OpenFilesystem sets the filesystem global on L.
func OpenFilesystem(L *lua.LState, fs *fsys.Filesystem, opts ...moduleOption) *Module {
	m := &Module{
		fs:     fs,
		files:  make(map[*fsys.File]struct{}),
		charge: func(*lua.LState) {},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.mt = m.registerHandleType(L)

	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"Open":             m.open,
		"Exists":           m.exists,
		"IsDirectory":      m.isDirectory,
		"GetSize":          m.getSize,
		"GetTime":          m.getTime,
		"Rename":           m.rename,
		"Remove":           m.remove,
		"MakeDirectory":    m.makeDirectory,
		"Find":             m.find,
		"GetSearchPaths":   m.getSearchPaths,
		"AddSearchPath":    m.addSearchPath,
		"RemoveSearchPath": m.removeSearchPath,
	})
	L.SetField(mod, "Version", lua.LString(Version))
	L.SetField(mod, "VersionNum", lua.LNumber(VersionNum))
	L.SetField(mod, "IsLittleEndian", lua.LBool(isLittleEndian()))
	L.SetField(mod, "SEEK_SET", lua.LNumber(engine.SeekStart))
	L.SetField(mod, "SEEK_CUR", lua.LNumber(engine.SeekCurrent))
	L.SetField(mod, "SEEK_END", lua.LNumber(engine.SeekEnd))

	L.SetGlobal(ModuleName, mod)
	return m
}

func isLittleEndian() bool {
	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 1)
	return probe[0] == 1
}

// OpenHandles returns the number of handles still open.
func (m *Module) OpenHandles() int { return len(m.files) }

// CloseAll closes every handle still open and returns how many there were.
func (m *Module) CloseAll() int {
	n := len(m.files)
	for f := range m.files {
		f.Close()
	}
	clear(m.files)
	return n
}

func (m *Module) open(L *lua.LState) int {
	m.charge(L)
	path, mode, mount := L.CheckString(1), L.CheckString(2), L.CheckString(3)
	f, ok := m.fs.Open(path, mode, mount)
	if !ok {
		return 0
	}
	m.files[f] = struct{}{}
	L.Push(m.newHandle(L, f))
	return 1
}

func (m *Module) exists(L *lua.LState) int {
	m.charge(L)
	L.Push(lua.LBool(m.fs.Exists(L.CheckString(1), L.CheckString(2))))
	return 1
}

func (m *Module) isDirectory(L *lua.LState) int {
	m.charge(L)
	L.Push(lua.LBool(m.fs.IsDirectory(L.CheckString(1), L.CheckString(2))))
	return 1
}

func (m *Module) getSize(L *lua.LState) int {
	m.charge(L)
	L.Push(lua.LNumber(m.fs.GetSize(L.CheckString(1), L.CheckString(2))))
	return 1
}

func (m *Module) getTime(L *lua.LState) int {
	m.charge(L)
	L.Push(lua.LNumber(m.fs.GetTime(L.CheckString(1), L.CheckString(2))))
	return 1
}

func (m *Module) rename(L *lua.LState) int {
	m.charge(L)
	L.Push(lua.LBool(m.fs.Rename(L.CheckString(1), L.CheckString(2), L.CheckString(3))))
	return 1
}

func (m *Module) remove(L *lua.LState) int {
	m.charge(L)
	L.Push(lua.LBool(m.fs.Remove(L.CheckString(1), L.CheckString(2))))
	return 1
}

func (m *Module) makeDirectory(L *lua.LState) int {
	m.charge(L)
	L.Push(lua.LBool(m.fs.MakeDirectory(L.CheckString(1), L.CheckString(2))))
	return 1
}

func (m *Module) find(L *lua.LState) int {
	m.charge(L)
	files, dirs := m.fs.Find(L.CheckString(1), L.CheckString(2))
	L.Push(stringList(L, files))
	L.Push(stringList(L, dirs))
	return 2
}

// getSearchPaths returns every mount's roots, or one mount's roots when a
// mount ID is given.
func (m *Module) getSearchPaths(L *lua.LState) int {
	m.charge(L)
	if L.Get(1) == lua.LNil {
		all := m.fs.SearchPathMap()
		ids := make([]string, 0, len(all))
		for id := range all {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		tbl := L.CreateTable(0, len(all))
		for _, id := range ids {
			tbl.RawSetString(id, stringList(L, all[id]))
		}
		L.Push(tbl)
		return 1
	}
	L.Push(stringList(L, m.fs.SearchPaths(L.CheckString(1))))
	return 1
}

func (m *Module) addSearchPath(L *lua.LState) int {
	m.charge(L)
	L.Push(lua.LBool(m.fs.AddSearchPath(L.CheckString(1), L.CheckString(2))))
	return 1
}

func (m *Module) removeSearchPath(L *lua.LState) int {
	m.charge(L)
	L.Push(lua.LBool(m.fs.RemoveSearchPath(L.CheckString(1), L.CheckString(2))))
	return 1
}

func stringList(L *lua.LState, items []string) *lua.LTable {
	tbl := L.CreateTable(len(items), 0)
	for _, s := range items {
		tbl.Append(lua.LString(s))
	}
	return tbl
}
