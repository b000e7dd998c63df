package validate

import "strings"

var defaultExtensions = []string{
	"lua", "gma", "cache", "txt", "dat", "nav", "ain",
	"vpk", "vtf", "vmt", "mdl", "vtx", "phy", "vvd", "pcf", "bsp",
	"tga", "jpg", "png",
	"wav", "mp3", "mp4", "ogg", "avi", "mkv",
	"ttf", "ttc",
	"tmp", "md", "db", "inf",
}

// ExtensionGate restricts which file extensions may be written.
type ExtensionGate struct {
	allowed map[string]struct{}
}

// NewExtensionGate builds a gate allowing exts. Leading dots are ignored.
func NewExtensionGate(exts ...string) ExtensionGate {
	allowed := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(e, "."))
		if e != "" {
			allowed[e] = struct{}{}
		}
	}
	return ExtensionGate{allowed: allowed}
}

// DefaultExtensionGate returns the compiled-in write whitelist.
func DefaultExtensionGate() ExtensionGate {
	return NewExtensionGate(defaultExtensions...)
}

// IsExtensionAllowed always allows read and search-path intents. Under write
// intent a path without an extension is allowed; otherwise its lower-cased
// extension must be whitelisted. A trailing dot counts as an empty
// extension and is denied.
func (g ExtensionGate) IsExtensionAllowed(path string, intent Intent) bool {
	if intent != IntentWrite {
		return true
	}
	ext, ok := Extension(path)
	if !ok {
		return true
	}
	_, allowed := g.allowed[strings.ToLower(ext)]
	return allowed
}

// Extension returns the text after the last '.' of the final path component.
// ok is false when the component has no dot.
func Extension(path string) (ext string, ok bool) {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return "", false
	}
	return base[i+1:], true
}
