package engine

import (
	"archive/zip"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEngine(t *testing.T) (*SearchPathFS, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, dir := range []string{"/game/garrysmod", "/game/garrysmod/data", "/game/base", "/game/garrysmod/lua"} {
		require.NoError(t, fs.MkdirAll(dir, 0o755))
	}
	e := NewSearchPathFS(fs)
	t.Cleanup(func() { _ = e.Shutdown() })

	require.NoError(t, e.Mount(DefaultWritePathID, "/game/garrysmod", AddToTail))
	require.NoError(t, e.Mount("DATA", "/game/garrysmod/data", AddToTail))
	require.NoError(t, e.Mount("game", "/game/garrysmod", AddToTail))
	require.NoError(t, e.Mount("game", "/game/base", AddToTail))
	require.NoError(t, e.Mount("lua", "/game/garrysmod/lua", AddToTail))
	return e, fs
}

func writeZip(t *testing.T, fs afero.Fs, name string, files map[string]string) {
	t.Helper()
	f, err := fs.Create(name)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for n, body := range files {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestMountRejectsMissingAndPlainFiles(t *testing.T) {
	t.Parallel()
	e, fs := setupEngine(t)

	require.Error(t, e.Mount("data", "/nope", AddToTail))
	require.NoError(t, afero.WriteFile(fs, "/game/readme.txt", []byte("x"), 0o644))
	require.ErrorIs(t, e.Mount("data", "/game/readme.txt", AddToTail), ErrNotMountable)
	require.ErrorIs(t, e.Mount("", "/game", AddToTail), ErrEmptyMount)
}

func TestOpenWriteThenRead(t *testing.T) {
	t.Parallel()
	e, fs := setupEngine(t)

	h := e.Open("save.txt", "w", "data")
	require.NotEqual(t, InvalidHandle, h)
	assert.Equal(t, 5, e.Write(h, []byte("hello")))
	e.Flush(h)
	assert.True(t, e.IsOk(h))
	e.Close(h)

	data, err := afero.ReadFile(fs, "/game/garrysmod/data/save.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	h = e.Open("save.txt", "rb", "data")
	require.NotEqual(t, InvalidHandle, h)
	defer e.Close(h)
	assert.EqualValues(t, 5, e.SizeOf(h))

	buf := make([]byte, 3)
	assert.Equal(t, 3, e.Read(h, buf))
	assert.Equal(t, "hel", string(buf))
	assert.EqualValues(t, 3, e.Tell(h))
	assert.False(t, e.EndOfFile(h))

	assert.Equal(t, 2, e.Read(h, buf))
	assert.True(t, e.EndOfFile(h))

	e.Seek(h, 0, SeekStart)
	assert.False(t, e.EndOfFile(h))
	assert.EqualValues(t, 0, e.Tell(h))

	e.Seek(h, -1, SeekEnd)
	assert.EqualValues(t, 4, e.Tell(h))
}

func TestOpenAppend(t *testing.T) {
	t.Parallel()
	e, fs := setupEngine(t)
	require.NoError(t, afero.WriteFile(fs, "/game/garrysmod/data/log.txt", []byte("one\n"), 0o644))

	h := e.Open("log.txt", "a", "data")
	require.NotEqual(t, InvalidHandle, h)
	e.Write(h, []byte("two\n"))
	e.Close(h)

	data, err := afero.ReadFile(fs, "/game/garrysmod/data/log.txt")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestOpenFailures(t *testing.T) {
	t.Parallel()
	e, _ := setupEngine(t)

	assert.Equal(t, InvalidHandle, e.Open("missing.txt", "r", "data"))
	assert.Equal(t, InvalidHandle, e.Open("x.txt", "q", "data"))
	assert.Equal(t, InvalidHandle, e.Open("x.txt", "r", "nomount"))
	assert.Equal(t, InvalidHandle, e.Open(".", "r", "data"), "directories are not files")
}

func TestReadSearchesRootsInOrder(t *testing.T) {
	t.Parallel()
	e, fs := setupEngine(t)
	require.NoError(t, afero.WriteFile(fs, "/game/base/shared.txt", []byte("base"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/game/base/only_base.txt", []byte("b"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/game/garrysmod/shared.txt", []byte("gmod"), 0o644))

	h := e.Open("shared.txt", "r", "GAME")
	require.NotEqual(t, InvalidHandle, h)
	buf := make([]byte, 4)
	e.Read(h, buf)
	e.Close(h)
	assert.Equal(t, "gmod", string(buf))

	assert.True(t, e.FileExists("only_base.txt", "game"))
	assert.EqualValues(t, 1, e.Size("only_base.txt", "game"))
	assert.NotZero(t, e.GetPathTime("only_base.txt", "game"))
	assert.False(t, e.FileExists("only_base.txt", "data"))
}

func TestDirectoryOperations(t *testing.T) {
	t.Parallel()
	e, _ := setupEngine(t)

	e.CreateDirHierarchy("a/b/c", "data")
	assert.True(t, e.IsDirectory("a/b/c", "data"))
	assert.False(t, e.IsDirectory("a/b/c/d", "data"))
	assert.EqualValues(t, 0, e.Size("a/b", "data"))
}

func TestRenameAndRemoveFile(t *testing.T) {
	t.Parallel()
	e, fs := setupEngine(t)
	require.NoError(t, afero.WriteFile(fs, "/game/garrysmod/data/old.txt", []byte("x"), 0o644))

	assert.True(t, e.RenameFile("old.txt", "new.txt", "data"))
	assert.False(t, e.FileExists("old.txt", "data"))
	assert.True(t, e.FileExists("new.txt", "data"))
	assert.False(t, e.RenameFile("missing.txt", "x.txt", "data"))

	e.RemoveFile("new.txt", "data")
	assert.False(t, e.FileExists("new.txt", "data"))
}

func TestFindMergesRoots(t *testing.T) {
	t.Parallel()
	e, fs := setupEngine(t)
	require.NoError(t, afero.WriteFile(fs, "/game/base/maps/a.bsp", []byte("1"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/game/garrysmod/maps/b.bsp", []byte("2"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/game/base/maps/b.bsp", []byte("3"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/game/base/maps/readme.txt", []byte("4"), 0o644))
	require.NoError(t, fs.MkdirAll("/game/base/maps/graphs.bsp", 0o755))

	type hit struct {
		name string
		dir  bool
	}
	var got []hit
	fh, name := e.FindFirst("maps/*.bsp", "game")
	require.NotEqual(t, InvalidFindHandle, fh)
	for ok := true; ok; name, ok = e.FindNext(fh) {
		got = append(got, hit{name, e.FindIsDirectory(fh)})
	}
	e.FindClose(fh)

	assert.Equal(t, []hit{{"b.bsp", false}, {"a.bsp", false}, {"graphs.bsp", true}}, got)
}

func TestFindNoMatch(t *testing.T) {
	t.Parallel()
	e, _ := setupEngine(t)

	fh, name := e.FindFirst("*.nothing", "data")
	assert.Equal(t, InvalidFindHandle, fh)
	assert.Empty(t, name)
	_, ok := e.FindNext(fh)
	assert.False(t, ok)
}

func TestSearchPathIntrospection(t *testing.T) {
	t.Parallel()
	e, fs := setupEngine(t)
	writeZip(t, fs, "/game/garrysmod/content.zip", map[string]string{"models/box.mdl": "mdl"})
	require.NoError(t, e.Mount("game", "/game/garrysmod/content.zip", AddToTail))

	assert.Equal(t, "/game/garrysmod;/game/base", e.GetSearchPath("game", false))
	assert.Equal(t, "/game/garrysmod;/game/base;/game/garrysmod/content.zip", e.GetSearchPath("GAME", true))
	assert.Empty(t, e.GetSearchPath("unknown", true))

	var packs int
	for _, sp := range e.SearchPaths() {
		if sp.Pack {
			packs++
			assert.Equal(t, "game", sp.MountID)
		}
	}
	assert.Equal(t, 1, packs)
}

func TestPackRootIsReadable(t *testing.T) {
	t.Parallel()
	e, fs := setupEngine(t)
	writeZip(t, fs, "/game/content.zip", map[string]string{"models/box.mdl": "mdl!"})
	require.NoError(t, e.Mount("mod", "/game/content.zip", AddToTail))

	assert.True(t, e.FileExists("models/box.mdl", "mod"))
	h := e.Open("models/box.mdl", "rb", "mod")
	require.NotEqual(t, InvalidHandle, h)
	buf := make([]byte, 4)
	assert.Equal(t, 4, e.Read(h, buf))
	assert.Equal(t, "mdl!", string(buf))
	e.Close(h)

	assert.Equal(t, InvalidHandle, e.Open("models/box.mdl", "w", "mod"), "packs are never written")
}

func TestAddRemoveSearchPath(t *testing.T) {
	t.Parallel()
	e, fs := setupEngine(t)
	require.NoError(t, fs.MkdirAll("/game/garrysmod/addons/mine", 0o755))

	e.AddSearchPath("/game/garrysmod/addons/mine", "game", AddToHead)
	assert.Equal(t, "/game/garrysmod/addons/mine;/game/garrysmod;/game/base", e.GetSearchPath("game", false))

	e.AddSearchPath("/game/garrysmod/addons/mine", "game", AddToTail)
	assert.Equal(t, "/game/garrysmod/addons/mine;/game/garrysmod;/game/base", e.GetSearchPath("game", false))

	e.AddSearchPath("/game/does-not-exist", "game", AddToTail)
	assert.Equal(t, "/game/garrysmod/addons/mine;/game/garrysmod;/game/base", e.GetSearchPath("game", false))

	assert.True(t, e.RemoveSearchPath("/game/garrysmod/addons/mine/", "game"))
	assert.False(t, e.RemoveSearchPath("/game/garrysmod/addons/mine", "game"))
	assert.False(t, e.RemoveSearchPath("/x", "nomount"))
}

func TestPathConversion(t *testing.T) {
	t.Parallel()
	e, fs := setupEngine(t)
	require.NoError(t, afero.WriteFile(fs, "/game/base/cfg/x.cfg", []byte("x"), 0o644))

	rel, ok := e.FullPathToRelativePath("/game/garrysmod/data/saves/a.txt", "data")
	require.True(t, ok)
	assert.Equal(t, "saves/a.txt", rel)

	_, ok = e.FullPathToRelativePath("/etc/passwd", "data")
	assert.False(t, ok)

	rel, ok = e.FullPathToRelativePath("/game/base/cfg", "")
	require.True(t, ok)
	assert.Equal(t, "cfg", rel)

	full, ok := e.RelativePathToFullPath("cfg/x.cfg", "game")
	require.True(t, ok)
	assert.Equal(t, "/game/base/cfg/x.cfg", full)

	full, ok = e.RelativePathToFullPath("new/file.txt", "game")
	require.True(t, ok)
	assert.Equal(t, "/game/garrysmod/new/file.txt", full)

	_, ok = e.RelativePathToFullPath("x", "nomount")
	assert.False(t, ok)
}

func TestSeekErrorIsNotSticky(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fs := afero.NewOsFs()
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "s.txt"), []byte("abcdef"), 0o644))

	e := NewSearchPathFS(fs)
	t.Cleanup(func() { _ = e.Shutdown() })
	require.NoError(t, e.Mount("data", dir, AddToTail))

	h := e.Open("s.txt", "r", "data")
	require.NotEqual(t, InvalidHandle, h)
	defer e.Close(h)

	e.Seek(h, -5, SeekStart)
	assert.True(t, e.IsOk(h))
	assert.EqualValues(t, 0, e.Tell(h))

	e.Seek(h, 2, SeekStart)
	assert.True(t, e.IsOk(h))
	assert.EqualValues(t, 2, e.Tell(h))

	buf := make([]byte, 2)
	assert.Equal(t, 2, e.Read(h, buf))
	assert.Equal(t, "cd", string(buf))
}

func TestClosedEngineRefusesWork(t *testing.T) {
	t.Parallel()
	e, fs := setupEngine(t)
	require.NoError(t, afero.WriteFile(fs, "/game/garrysmod/data/a.txt", []byte("x"), 0o644))
	h := e.Open("a.txt", "r", "data")
	require.NotEqual(t, InvalidHandle, h)

	require.NoError(t, e.Shutdown())
	require.NoError(t, e.Shutdown())

	assert.False(t, e.IsOk(h))
	assert.Equal(t, InvalidHandle, e.Open("a.txt", "r", "data"))
	assert.ErrorIs(t, e.Mount("data", "/game", AddToTail), ErrClosed)
}

func TestParseMode(t *testing.T) {
	t.Parallel()
	valid := []string{"r", "rb", "rt", "r+", "rb+", "r+b", "w", "wb", "w+", "a", "ab", "a+", "a+b", "R"}
	for _, m := range valid {
		_, ok := ParseMode(m)
		assert.True(t, ok, m)
	}
	for _, m := range []string{"", "x", "rw", "ww", "+"} {
		_, ok := ParseMode(m)
		assert.False(t, ok, m)
	}
}
