package script

import (
	"errors"
	"math"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luafs/internal/engine"
	"github.com/dshills/luafs/internal/fsys"
)

// HandleTypeName names the FileHandle metatable in the registry.
const HandleTypeName = "FileHandle"

// registerHandleType builds the FileHandle metatable. Methods are stored on
// the metatable itself; __index falls back to the handle's own field table.
func (m *Module) registerHandleType(L *lua.LState) *lua.LTable {
	mt := L.NewTypeMetatable(HandleTypeName)
	L.SetFuncs(mt, map[string]lua.LGFunction{
		"__tostring": m.handleToString,
		"__eq":       m.handleEq,
		"__index":    m.handleIndex,
		"__newindex": m.handleNewIndex,
		"__gc":       m.handleClose,

		"Close":       m.handleClose,
		"IsValid":     m.handleIsValid,
		"EOF":         m.handleEOF,
		"OK":          m.handleOK,
		"Size":        m.handleSize,
		"Tell":        m.handleTell,
		"Seek":        m.handleSeek,
		"Flush":       m.handleFlush,
		"InvertBytes": m.handleInvertBytes,
		"Read":        m.handleRead,
		"ReadString":  m.handleReadString,
		"ReadInt":     m.handleReadInt,
		"ReadUInt":    m.handleReadUInt,
		"ReadFloat":   m.handleReadFloat,
		"ReadDouble":  m.handleReadDouble,
		"Write":       m.handleWrite,
		"WriteString": m.handleWriteString,
		"WriteInt":    m.handleWriteInt,
		"WriteUInt":   m.handleWriteUInt,
		"WriteFloat":  m.handleWriteFloat,
		"WriteDouble": m.handleWriteDouble,
	})
	return mt
}

func (m *Module) newHandle(L *lua.LState, f *fsys.File) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = f
	ud.Env = L.NewTable()
	L.SetMetatable(ud, m.mt)
	return ud
}

// checkFile returns the File at n, open or not.
func checkFile(L *lua.LState, n int) *fsys.File {
	if ud, ok := L.Get(n).(*lua.LUserData); ok {
		if f, ok := ud.Value.(*fsys.File); ok {
			return f
		}
	}
	L.ArgError(n, HandleTypeName+" expected")
	return nil
}

// openFile returns the File at n, raising when it has been closed.
func openFile(L *lua.LState, n int) *fsys.File {
	f := checkFile(L, n)
	if !f.IsValid() {
		L.ArgError(n, fsys.ErrInvalidHandle.Error())
	}
	return f
}

// raise turns a caller error into a Lua argument error on arg.
func raise(L *lua.LState, err error, arg int) {
	if errors.Is(err, fsys.ErrInvalidHandle) {
		arg = 1
	}
	L.ArgError(arg, err.Error())
}

func toUint64(n lua.LNumber) uint64 {
	if n < 0 {
		return uint64(int64(n))
	}
	return uint64(n)
}

func (m *Module) handleToString(L *lua.LState) int {
	f := checkFile(L, 1)
	L.Push(lua.LString(HandleTypeName + ": " + f.ID().String()))
	return 1
}

func (m *Module) handleEq(L *lua.LState) int {
	L.Push(lua.LBool(openFile(L, 1) == openFile(L, 2)))
	return 1
}

// handleIndex runs for every method lookup, so it is where handle calls are
// charged against the instruction budget.
func (m *Module) handleIndex(L *lua.LState) int {
	m.charge(L)
	ud := L.CheckUserData(1)
	key := L.Get(2)
	if v := m.mt.RawGet(key); v != lua.LNil {
		L.Push(v)
		return 1
	}
	if ud.Env == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(ud.Env.RawGet(key))
	return 1
}

func (m *Module) handleNewIndex(L *lua.LState) int {
	ud := L.CheckUserData(1)
	key := L.Get(2)
	if key == lua.LNil {
		L.ArgError(2, "index is nil")
	}
	if ud.Env == nil {
		ud.Env = L.NewTable()
	}
	ud.Env.RawSet(key, L.Get(3))
	return 0
}

func (m *Module) handleClose(L *lua.LState) int {
	f := checkFile(L, 1)
	if f.IsValid() {
		f.Close()
		delete(m.files, f)
	}
	return 0
}

func (m *Module) handleIsValid(L *lua.LState) int {
	L.Push(lua.LBool(checkFile(L, 1).IsValid()))
	return 1
}

func (m *Module) handleEOF(L *lua.LState) int {
	eof, err := openFile(L, 1).EndOfFile()
	if err != nil {
		raise(L, err, 1)
	}
	L.Push(lua.LBool(eof))
	return 1
}

func (m *Module) handleOK(L *lua.LState) int {
	ok, err := openFile(L, 1).OK()
	if err != nil {
		raise(L, err, 1)
	}
	L.Push(lua.LBool(ok))
	return 1
}

func (m *Module) handleSize(L *lua.LState) int {
	size, err := openFile(L, 1).Size()
	if err != nil {
		raise(L, err, 1)
	}
	L.Push(lua.LNumber(size))
	return 1
}

func (m *Module) handleTell(L *lua.LState) int {
	pos, err := openFile(L, 1).Tell()
	if err != nil {
		raise(L, err, 1)
	}
	L.Push(lua.LNumber(pos))
	return 1
}

// handleSeek seeks from the start unless arg 3 names a known whence.
func (m *Module) handleSeek(L *lua.LState) int {
	f := openFile(L, 1)
	offset := L.CheckNumber(2)
	whence := engine.SeekStart
	if n, ok := L.Get(3).(lua.LNumber); ok {
		if w := engine.Whence(n); w >= engine.SeekStart && w <= engine.SeekEnd {
			whence = w
		}
	}
	ok, err := f.SeekTo(int64(offset), whence)
	if err != nil {
		raise(L, err, 2)
	}
	L.Push(lua.LBool(ok))
	return 1
}

func (m *Module) handleFlush(L *lua.LState) int {
	ok, err := openFile(L, 1).Flush()
	if err != nil {
		raise(L, err, 1)
	}
	L.Push(lua.LBool(ok))
	return 1
}

func (m *Module) handleInvertBytes(L *lua.LState) int {
	f := openFile(L, 1)
	if err := f.SetInvertBytes(L.CheckBool(2)); err != nil {
		raise(L, err, 1)
	}
	return 0
}

func (m *Module) handleRead(L *lua.LState) int {
	f := openFile(L, 1)
	n := L.CheckNumber(2)
	if n < 1 || n > math.MaxUint32 {
		L.ArgError(2, fsys.ErrInvalidSize.Error())
	}
	b, err := f.Read(int64(n))
	if err != nil {
		raise(L, err, 2)
	}
	if b == nil {
		return 0
	}
	L.Push(lua.LString(b))
	return 1
}

func (m *Module) handleReadString(L *lua.LState) int {
	s, ok, err := openFile(L, 1).ReadString()
	if err != nil {
		raise(L, err, 1)
	}
	if !ok {
		return 0
	}
	L.Push(lua.LString(s))
	return 1
}

func (m *Module) handleReadInt(L *lua.LState) int {
	f := openFile(L, 1)
	v, ok, err := f.ReadInt(L.CheckInt(2))
	if err != nil {
		raise(L, err, 2)
	}
	if !ok {
		return 0
	}
	L.Push(lua.LNumber(v))
	return 1
}

func (m *Module) handleReadUInt(L *lua.LState) int {
	f := openFile(L, 1)
	v, ok, err := f.ReadUInt(L.CheckInt(2))
	if err != nil {
		raise(L, err, 2)
	}
	if !ok {
		return 0
	}
	L.Push(lua.LNumber(v))
	return 1
}

func (m *Module) handleReadFloat(L *lua.LState) int {
	v, ok, err := openFile(L, 1).ReadFloat()
	if err != nil {
		raise(L, err, 1)
	}
	if !ok {
		return 0
	}
	L.Push(lua.LNumber(v))
	return 1
}

func (m *Module) handleReadDouble(L *lua.LState) int {
	v, ok, err := openFile(L, 1).ReadDouble()
	if err != nil {
		raise(L, err, 1)
	}
	if !ok {
		return 0
	}
	L.Push(lua.LNumber(v))
	return 1
}

func (m *Module) handleWrite(L *lua.LState) int {
	f := openFile(L, 1)
	n, err := f.Write([]byte(L.CheckString(2)))
	if err != nil {
		raise(L, err, 2)
	}
	L.Push(lua.LNumber(n))
	return 1
}

func (m *Module) handleWriteString(L *lua.LState) int {
	f := openFile(L, 1)
	n, err := f.WriteString(L.CheckString(2))
	if err != nil {
		raise(L, err, 2)
	}
	L.Push(lua.LNumber(n))
	return 1
}

func (m *Module) handleWriteInt(L *lua.LState) int {
	f := openFile(L, 1)
	v := L.CheckNumber(2)
	ok, err := f.WriteInt(int64(v), L.CheckInt(3))
	if err != nil {
		raise(L, err, 3)
	}
	L.Push(lua.LBool(ok))
	return 1
}

func (m *Module) handleWriteUInt(L *lua.LState) int {
	f := openFile(L, 1)
	v := L.CheckNumber(2)
	ok, err := f.WriteUInt(toUint64(v), L.CheckInt(3))
	if err != nil {
		raise(L, err, 3)
	}
	L.Push(lua.LBool(ok))
	return 1
}

func (m *Module) handleWriteFloat(L *lua.LState) int {
	f := openFile(L, 1)
	ok, err := f.WriteFloat(float32(L.CheckNumber(2)))
	if err != nil {
		raise(L, err, 2)
	}
	L.Push(lua.LBool(ok))
	return 1
}

func (m *Module) handleWriteDouble(L *lua.LState) int {
	f := openFile(L, 1)
	ok, err := f.WriteDouble(float64(L.CheckNumber(2)))
	if err != nil {
		raise(L, err, 2)
	}
	L.Push(lua.LBool(ok))
	return 1
}
