package validate

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Default mount whitelists. Read covers engine content and user data, write
// covers user data only, search-path management covers the two roots
// scripts may extend.
var (
	defaultReadMounts = []string{
		"data", "download", "lua", "lcl", "lsv", "game", "garrysmod", "gamebin",
		"mod", "base_path", "executable_path", "default_write_path",
	}
	defaultWriteMounts      = []string{"data", "download"}
	defaultSearchPathMounts = []string{"game", "lcl"}
)

// MountGate holds the three mount whitelists. The zero value denies everything.
type MountGate struct {
	read   map[string]struct{}
	write  map[string]struct{}
	search map[string]struct{}
}

// NewMountGate builds a gate from explicit whitelists.
func NewMountGate(read, write, search []string) MountGate {
	return MountGate{
		read:   toSet(read),
		write:  toSet(write),
		search: toSet(search),
	}
}

// DefaultMountGate returns the compiled-in whitelists.
func DefaultMountGate() MountGate {
	return NewMountGate(defaultReadMounts, defaultWriteMounts, defaultSearchPathMounts)
}

// IsAllowed reports whether mountID may be used under intent. Matching is
// exact after case folding.
func (g MountGate) IsAllowed(mountID string, intent Intent) bool {
	id := FoldMountID(mountID)
	if id == "" {
		return false
	}
	var set map[string]struct{}
	switch intent {
	case IntentRead:
		set = g.read
	case IntentWrite:
		set = g.write
	case IntentSearchPath:
		set = g.search
	}
	_, ok := set[id]
	return ok
}

// Mounts returns the whitelist for intent in no particular order.
func (g MountGate) Mounts(intent Intent) []string {
	var set map[string]struct{}
	switch intent {
	case IntentRead:
		set = g.read
	case IntentWrite:
		set = g.write
	case IntentSearchPath:
		set = g.search
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// FoldMountID lower-cases a mount ID. A cases.Caser is not safe for
// concurrent use, so one is built per call.
func FoldMountID(id string) string {
	if id == "" {
		return ""
	}
	return cases.Lower(language.Und).String(id)
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if f := FoldMountID(id); f != "" {
			set[f] = struct{}{}
		}
	}
	return set
}
