package fsys

import (
	"math"
	"path/filepath"
	"slices"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/luafs/internal/engine"
	"github.com/dshills/luafs/internal/validate"
)

// setupFS wires a Filesystem to a real search-path engine over memory.
func setupFS(t *testing.T) (*Filesystem, afero.Fs) {
	t.Helper()
	mem := afero.NewMemMapFs()
	return setupFSOn(t, mem, "/game", validate.PosixPolicy()), mem
}

// setupFSOn lays out the default mounts under base on host.
func setupFSOn(t *testing.T, host afero.Fs, base string, policy validate.PathPolicy) *Filesystem {
	t.Helper()
	root := filepath.Join(base, "garrysmod")
	for _, dir := range []string{
		filepath.Join(root, "data"),
		filepath.Join(root, "download"),
		filepath.Join(root, "lua", "autorun"),
		filepath.Join(base, "base"),
	} {
		require.NoError(t, host.MkdirAll(dir, 0o755))
	}

	eng := engine.NewSearchPathFS(host)
	t.Cleanup(func() { _ = eng.Shutdown() })
	mounts := []struct{ id, dir string }{
		{engine.DefaultWritePathID, root},
		{"data", filepath.Join(root, "data")},
		{"download", filepath.Join(root, "download")},
		{"game", root},
		{"game", filepath.Join(base, "base")},
		{"lua", filepath.Join(root, "lua")},
	}
	for _, m := range mounts {
		require.NoError(t, eng.Mount(m.id, m.dir, engine.AddToTail))
	}

	v := validate.New(eng, validate.WithPolicy(policy))
	fs, err := New(eng, host, v)
	require.NoError(t, err)
	return fs
}

func openFile(t *testing.T, fs *Filesystem, path, mode, mount string) *File {
	t.Helper()
	f, ok := fs.Open(path, mode, mount)
	require.True(t, ok, "open %s %s on %s", path, mode, mount)
	t.Cleanup(f.Close)
	return f
}

func TestIntegrationOpenAndQueries(t *testing.T) {
	t.Parallel()
	fs, mem := setupFS(t)

	f := openFile(t, fs, "save.txt", "w", "data")
	n, err := f.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	f.Close()

	data, err := afero.ReadFile(mem, "/game/garrysmod/data/save.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, ok := fs.Open("save.exe", "w", "data")
	assert.False(t, ok)
	ok, _ = afero.Exists(mem, "/game/garrysmod/data/save.exe")
	assert.False(t, ok)

	_, ok = fs.Open("../config.txt", "r", "data")
	assert.False(t, ok)

	assert.True(t, fs.Exists("save.txt", "data"))
	assert.True(t, fs.Exists("/game/garrysmod/data/save.txt", "data"))
	assert.False(t, fs.Exists("/etc/passwd", "data"))
	assert.EqualValues(t, 5, fs.GetSize("save.txt", "DATA"))
	assert.NotZero(t, fs.GetTime("save.txt", "data"))
}

func TestIntegrationFind(t *testing.T) {
	t.Parallel()
	fs, mem := setupFS(t)
	require.NoError(t, afero.WriteFile(mem, "/game/garrysmod/lua/init.lua", nil, 0o644))
	require.NoError(t, afero.WriteFile(mem, "/game/garrysmod/lua/cl_init.lua", nil, 0o644))
	require.NoError(t, afero.WriteFile(mem, "/game/garrysmod/lua/notes.txt", nil, 0o644))

	files, dirs := fs.Find("*.lua", "lua")
	assert.Equal(t, []string{"cl_init.lua", "init.lua"}, files)
	assert.Empty(t, dirs)

	files, dirs = fs.Find("*", "lua")
	assert.Equal(t, []string{"cl_init.lua", "init.lua", "notes.txt"}, files)
	assert.Equal(t, []string{"autorun"}, dirs)
}

func TestIntegrationDirectoryLifecycle(t *testing.T) {
	t.Parallel()
	fs, mem := setupFS(t)

	require.True(t, fs.MakeDirectory("saves/slot1", "data"))
	assert.True(t, fs.IsDirectory("saves/slot1", "data"))
	require.True(t, fs.Rename("saves", "backup", "data"))
	assert.True(t, fs.IsDirectory("backup/slot1", "data"))
	require.True(t, fs.Remove("backup/slot1", "data"))

	ok, err := afero.DirExists(mem, "/game/garrysmod/data/backup/slot1")
	require.NoError(t, err)
	assert.False(t, ok)

	f := openFile(t, fs, "a.txt", "w", "data")
	f.Close()
	require.True(t, fs.Rename("a.txt", "b.txt", "data"))
	assert.True(t, fs.Remove("b.txt", "data"))
	assert.False(t, fs.Remove("b.txt", "data"))
}

func TestIntegrationAddSearchPath(t *testing.T) {
	t.Parallel()
	fs, mem := setupFS(t)
	require.NoError(t, mem.MkdirAll("/game/garrysmod/addons/mine/maps", 0o755))
	require.NoError(t, afero.WriteFile(mem, "/game/garrysmod/addons/mine/maps/x.bsp", []byte("x"), 0o644))

	require.True(t, fs.AddSearchPath("addons/mine", "game"))
	assert.Contains(t, fs.SearchPaths("game"), "/game/garrysmod/addons/mine")
	assert.True(t, fs.Exists("maps/x.bsp", "game"))

	require.True(t, fs.RemoveSearchPath("addons/mine", "game"))
	assert.False(t, fs.Exists("maps/x.bsp", "game"))
	assert.False(t, fs.RemoveSearchPath("addons/mine", "game"))
}

func TestReadFixedRefusesReadsEndingAtEOF(t *testing.T) {
	t.Parallel()
	fs, mem := setupFS(t)
	require.NoError(t, afero.WriteFile(mem, "/game/garrysmod/data/three.dat", []byte{1, 2, 3}, 0o644))
	f := openFile(t, fs, "three.dat", "rb", "data")

	ok, err := f.SeekTo(2, engine.SeekStart)
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = f.ReadUInt(16)
	require.NoError(t, err)
	assert.False(t, ok, "two bytes at the last byte")
	_, ok, err = f.ReadUInt(8)
	require.NoError(t, err)
	assert.False(t, ok, "the final byte is never returned")

	_, err = f.SeekTo(1, engine.SeekStart)
	require.NoError(t, err)
	v, ok, err := f.ReadUInt(8)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 2, v)

	_, err = f.SeekTo(0, engine.SeekStart)
	require.NoError(t, err)
	_, ok, err = f.ReadUInt(32)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvertBytesRoundTrip(t *testing.T) {
	t.Parallel()
	fs, mem := setupFS(t)

	plain := openFile(t, fs, "plain.dat", "wb", "data")
	swapped := openFile(t, fs, "swapped.dat", "wb", "data")
	require.NoError(t, swapped.SetInvertBytes(true))
	assert.True(t, swapped.InvertBytes())

	for _, f := range []*File{plain, swapped} {
		ok, err := f.WriteUInt(0x0102, 16)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = f.WriteUInt(0x01020304, 32)
		require.NoError(t, err)
		assert.True(t, ok)
		_, err = f.Write([]byte{0xff})
		require.NoError(t, err)
		f.Close()
	}

	a, err := afero.ReadFile(mem, "/game/garrysmod/data/plain.dat")
	require.NoError(t, err)
	b, err := afero.ReadFile(mem, "/game/garrysmod/data/swapped.dat")
	require.NoError(t, err)
	require.Len(t, b, 7)
	first, second := slices.Clone(a[:2]), slices.Clone(a[2:6])
	slices.Reverse(first)
	slices.Reverse(second)
	assert.Equal(t, first, b[:2])
	assert.Equal(t, second, b[2:6])

	r := openFile(t, fs, "swapped.dat", "rb", "data")
	require.NoError(t, r.SetInvertBytes(true))
	v16, ok, err := r.ReadUInt(16)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 0x0102, v16)
	v32, ok, err := r.ReadUInt(32)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 0x01020304, v32)
}

func TestSignedAndFloatValues(t *testing.T) {
	t.Parallel()
	fs, _ := setupFS(t)

	f := openFile(t, fs, "nums.dat", "w+b", "data")
	for _, bits := range []int{8, 16, 32, 64} {
		ok, err := f.WriteInt(-2, bits)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := f.WriteFloat(1.5)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.WriteDouble(math.Pi)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = f.Write([]byte{0})
	require.NoError(t, err)

	_, err = f.SeekTo(0, engine.SeekStart)
	require.NoError(t, err)
	for _, bits := range []int{8, 16, 32, 64} {
		v, ok, err := f.ReadInt(bits)
		require.NoError(t, err)
		require.True(t, ok, "%d bits", bits)
		assert.EqualValues(t, -2, v)
	}
	fv, ok, err := f.ReadFloat()
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 1.5, fv, 0)
	dv, ok, err := f.ReadDouble()
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, math.Pi, dv, 0)
}

func TestUnsupportedBits(t *testing.T) {
	t.Parallel()
	fs, _ := setupFS(t)
	f := openFile(t, fs, "bits.dat", "w+", "data")

	_, _, err := f.ReadInt(12)
	assert.ErrorIs(t, err, ErrUnsupportedBits)
	_, err = f.WriteUInt(1, 0)
	assert.ErrorIs(t, err, ErrUnsupportedBits)
}

func TestStringsAndRawBytes(t *testing.T) {
	t.Parallel()
	fs, _ := setupFS(t)
	f := openFile(t, fs, "strings.txt", "w+", "data")

	n, err := f.WriteString("hello")
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	n, err = f.WriteString("")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = f.Write(nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = f.Write([]byte("tail"))
	require.NoError(t, err)

	_, err = f.SeekTo(0, engine.SeekStart)
	require.NoError(t, err)
	s, ok, err := f.ReadString()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", s)
	pos, err := f.Tell()
	require.NoError(t, err)
	assert.EqualValues(t, 6, pos)

	_, ok, err = f.ReadString()
	require.NoError(t, err)
	assert.False(t, ok)
	pos, err = f.Tell()
	require.NoError(t, err)
	assert.EqualValues(t, 6, pos, "position restored without a terminator")

	b, err := f.Read(100)
	require.NoError(t, err)
	assert.Equal(t, "tail", string(b))
	b, err = f.Read(1)
	require.NoError(t, err)
	assert.Nil(t, b)

	_, err = f.Read(0)
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = f.Read(math.MaxUint32 + 1)
	assert.ErrorIs(t, err, ErrInvalidSize)

	size, err := f.Size()
	require.NoError(t, err)
	assert.EqualValues(t, 10, size)
}

func TestSeekAndStatus(t *testing.T) {
	t.Parallel()
	fs, mem := setupFS(t)
	require.NoError(t, afero.WriteFile(mem, "/game/garrysmod/data/s.txt", []byte("abcdef"), 0o644))
	f := openFile(t, fs, "s.txt", "r", "data")

	ok, err := f.SeekTo(-2, engine.SeekEnd)
	require.NoError(t, err)
	assert.True(t, ok)
	pos, _ := f.Tell()
	assert.EqualValues(t, 4, pos)

	ok, err = f.SeekTo(1, engine.Whence(9))
	require.NoError(t, err)
	assert.True(t, ok)
	pos, _ = f.Tell()
	assert.EqualValues(t, 1, pos)

	_, err = f.SeekTo(math.MaxInt32+1, engine.SeekStart)
	assert.ErrorIs(t, err, ErrSeekRange)

	b, err := f.Read(10)
	require.NoError(t, err)
	assert.Equal(t, "bcdef", string(b))
	eof, err := f.EndOfFile()
	require.NoError(t, err)
	assert.False(t, eof, "a read capped to the remaining bytes stops short of EOF")

	good, err := f.OK()
	require.NoError(t, err)
	assert.True(t, good)
	flushed, err := f.Flush()
	require.NoError(t, err)
	assert.True(t, flushed)
}

func TestRejectedSeekLeavesHandleUsable(t *testing.T) {
	t.Parallel()
	fs := setupFSOn(t, afero.NewOsFs(), t.TempDir(), validate.WindowsPolicy())

	for _, tt := range []struct {
		name string
		kind HandleKind
	}{
		{"s.txt", HandleEngine},
		{"données.txt", HandleNative},
	} {
		t.Run(tt.kind.String(), func(t *testing.T) {
			w := openFile(t, fs, tt.name, "w", "data")
			_, err := w.Write([]byte("abcdef"))
			require.NoError(t, err)
			w.Close()

			f := openFile(t, fs, tt.name, "r", "data")
			require.Equal(t, tt.kind, f.Kind())

			ok, err := f.SeekTo(-5, engine.SeekStart)
			require.NoError(t, err)
			assert.False(t, ok)
			good, err := f.OK()
			require.NoError(t, err)
			assert.True(t, good, "a rejected seek must not poison the handle")
			pos, _ := f.Tell()
			assert.EqualValues(t, 0, pos)

			ok, err = f.SeekTo(2, engine.SeekStart)
			require.NoError(t, err)
			assert.True(t, ok)
			pos, _ = f.Tell()
			assert.EqualValues(t, 2, pos)

			ok, err = f.SeekTo(-1, engine.SeekEnd)
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = f.SeekTo(-10, engine.SeekCurrent)
			require.NoError(t, err)
			assert.False(t, ok)
			pos, _ = f.Tell()
			assert.EqualValues(t, 5, pos)

			b, err := f.Read(1)
			require.NoError(t, err)
			assert.Equal(t, "f", string(b))
			good, _ = f.OK()
			assert.True(t, good)
		})
	}
}

func TestClosedFileRejectsEverything(t *testing.T) {
	t.Parallel()
	fs, _ := setupFS(t)
	f := openFile(t, fs, "c.txt", "w", "data")
	assert.NotEqual(t, f.ID(), openFile(t, fs, "d.txt", "w", "data").ID())

	f.Close()
	f.Close()
	assert.False(t, f.IsValid())

	_, err := f.Read(1)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = f.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = f.Tell()
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, _, err = f.ReadUInt(8)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, _, err = f.ReadDouble()
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = f.WriteFloat(1)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	assert.ErrorIs(t, f.SetInvertBytes(true), ErrInvalidHandle)
}

func TestSwapBytes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint8(0xab), swapBytes(uint8(0xab)))
	assert.Equal(t, uint16(0x0201), swapBytes(uint16(0x0102)))
	assert.Equal(t, uint32(0x04030201), swapBytes(uint32(0x01020304)))
	assert.Equal(t, uint64(0x0807060504030201), swapBytes(uint64(0x0102030405060708)))
	assert.Equal(t, uint32(0x01020304), swapBytes(swapBytes(uint32(0x01020304))))
}

func TestHandleKindString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "engine", HandleEngine.String())
	assert.Equal(t, "native", HandleNative.String())
}
