// Package script runs untrusted Lua against a sandboxed filesystem.
//
// A State is a gopher-lua runtime with only the base, table, string and math
// libraries opened. dofile, loadfile, load and loadstring are removed and
// require resolves only those libraries plus the filesystem module:
//
//	state, err := script.NewState(
//	    script.WithExecutionTimeout(5 * time.Second),
//	    script.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//
//	state.OpenFilesystem(fs)
//	if err := state.DoFile(ctx, "autorun.lua"); err != nil {
//	    return err
//	}
//
// # The filesystem global
//
// OpenFilesystem installs a global table named filesystem. Every call is
// admitted by the validator behind fsys.Filesystem; denied calls return
// false, 0, nothing or empty tables. Caller mistakes such as a wrong argument
// type, an unsupported bit width or use of a closed handle raise Lua argument
// errors instead.
//
//	local f = filesystem.Open("save.txt", "wb", "DATA")
//	if f then
//	    f:WriteUInt(42, 32)
//	    f:Close()
//	end
//
//	local files, dirs = filesystem.Find("maps/*.bsp", "GAME")
//
// # FileHandle
//
// Open returns a FileHandle userdata. Methods live on its metatable; other
// keys assigned to a handle are kept in a table private to that handle.
// gopher-lua does not run __gc, so the State closes every handle a script
// left open when the State itself is closed.
package script
