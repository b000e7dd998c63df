package validate

import (
	"strings"
	"unicode/utf8"
)

// Rebaser turns an absolute path into one relative to a mount's roots.
// The host engine implements it.
type Rebaser interface {
	FullPathToRelativePath(fullPath, mountID string) (string, bool)
}

// Normalized is a path that passed normalisation.
type Normalized struct {
	// Path is relative, '/'-separated and free of '.' and '..' segments.
	// The mount root itself is ".".
	Path string
	// NonASCII is set when Path holds a codepoint >= 0x80.
	NonASCII bool
}

// Normalizer collapses and scans logical paths. It never touches disk.
type Normalizer struct {
	policy  PathPolicy
	rebaser Rebaser
	cache   *pathCache
}

// NewNormalizer returns a Normalizer for policy. rebaser may be nil, in which
// case absolute paths are always refused.
func NewNormalizer(policy PathPolicy, rebaser Rebaser, cacheSize int) *Normalizer {
	return &Normalizer{
		policy:  policy,
		rebaser: rebaser,
		cache:   newPathCache(cacheSize),
	}
}

// Normalize fixes up path for use under mountHint. find permits '*'.
//
// Character checks run on the path before '.' and '..' are collapsed, so a
// forbidden character inside a discarded segment still denies the path.
func (n *Normalizer) Normalize(path, mountHint string, find bool) (Normalized, error) {
	if path == "" {
		return Normalized{}, ErrEmptyPath
	}
	if !utf8.ValidString(path) {
		return Normalized{}, ErrInvalidEncoding
	}
	if strings.IndexFunc(path, isControl) >= 0 {
		return Normalized{}, ErrControlChar
	}

	if n.policy.CaseInsensitive {
		path = strings.ReplaceAll(path, `\`, "/")
	}

	if n.policy.isAbsolute(path) {
		return n.normalizeAbsolute(path, mountHint, find)
	}

	if r, ok := n.cache.get(path, find); ok {
		return r.norm, r.err
	}
	norm, err := n.normalizeRelative(path, find)
	n.cache.put(path, find, cachedResult{norm: norm, err: err})
	return norm, err
}

func (n *Normalizer) normalizeAbsolute(path, mountHint string, find bool) (Normalized, error) {
	if n.rebaser == nil {
		return Normalized{}, ErrOutsideMount
	}
	rel, ok := n.rebaser.FullPathToRelativePath(path, mountHint)
	if !ok {
		return Normalized{}, ErrOutsideMount
	}
	if n.policy.CaseInsensitive {
		rel = strings.ReplaceAll(rel, `\`, "/")
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return Normalized{}, ErrPathEscape
	}
	if rel == "" || n.policy.isAbsolute(rel) {
		return Normalized{}, ErrOutsideMount
	}
	if !utf8.ValidString(rel) {
		return Normalized{}, ErrInvalidEncoding
	}
	if strings.IndexFunc(rel, isControl) >= 0 {
		return Normalized{}, ErrControlChar
	}
	return n.normalizeRelative(rel, find)
}

func (n *Normalizer) normalizeRelative(path string, find bool) (Normalized, error) {
	nonASCII := false
	for _, r := range path {
		switch {
		case r == '*' && !find:
			return Normalized{}, ErrWildcard
		case r >= utf8.RuneSelf:
			nonASCII = true
		}
		if _, bad := n.policy.BlacklistChars[r]; bad {
			return Normalized{}, ErrForbiddenChar
		}
	}

	collapsed, err := collapse(path)
	if err != nil {
		return Normalized{}, err
	}

	for _, component := range strings.Split(collapsed, "/") {
		if n.policy.isReserved(component) {
			return Normalized{}, ErrReservedName
		}
	}

	return Normalized{Path: collapsed, NonASCII: nonASCII && hasNonASCII(collapsed)}, nil
}

// collapse resolves '.', '..' and repeated separators lexically.
func collapse(path string) (string, error) {
	segs := strings.Split(path, "/")
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		switch s {
		case "", ".":
		case "..":
			if len(out) == 0 {
				return "", ErrPathEscape
			}
			out = out[:len(out)-1]
		default:
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return ".", nil
	}
	return strings.Join(out, "/"), nil
}

func isControl(r rune) bool { return r < 0x20 }

func hasNonASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return true
		}
	}
	return false
}
