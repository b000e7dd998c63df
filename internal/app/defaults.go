package app

import (
	"path/filepath"

	"github.com/dshills/luafs/internal/engine"
)

// defaultMounts lays out a game directory rooted at dir. It is used when the
// configuration names no mounts at all.
func defaultMounts(dir string) map[string][]string {
	return map[string][]string{
		engine.DefaultWritePathID: {dir},
		"DATA":                    {filepath.Join(dir, "data")},
		"DOWNLOAD":                {filepath.Join(dir, "download")},
		"GAME":                    {dir},
	}
}
