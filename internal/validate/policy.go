package validate

import (
	"fmt"
	"runtime"
	"strings"
)

// PathPolicy describes what the host filesystem accepts in a path component.
type PathPolicy struct {
	Name string

	// CaseInsensitive hosts also accept '\' as a separator and drive-letter
	// absolute paths.
	CaseInsensitive bool

	// ReservedNames holds upper-case device stems.
	ReservedNames map[string]struct{}

	// BlacklistChars are rejected anywhere in the path.
	BlacklistChars map[rune]struct{}
}

// PosixPolicy accepts every character except NUL and controls, which the
// normalizer rejects on all hosts.
func PosixPolicy() PathPolicy {
	return PathPolicy{
		Name:           "posix",
		ReservedNames:  map[string]struct{}{},
		BlacklistChars: map[rune]struct{}{},
	}
}

// WindowsPolicy rejects the device names and punctuation that Win32 refuses
// in file names.
func WindowsPolicy() PathPolicy {
	reserved := map[string]struct{}{
		"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	}
	for i := 1; i <= 9; i++ {
		reserved[fmt.Sprintf("COM%d", i)] = struct{}{}
		reserved[fmt.Sprintf("LPT%d", i)] = struct{}{}
	}

	blacklist := map[rune]struct{}{}
	for _, r := range `<>:"|?` {
		blacklist[r] = struct{}{}
	}

	return PathPolicy{
		Name:            "windows",
		CaseInsensitive: true,
		ReservedNames:   reserved,
		BlacklistChars:  blacklist,
	}
}

// HostPolicy returns the policy for the running operating system.
func HostPolicy() PathPolicy {
	if runtime.GOOS == "windows" {
		return WindowsPolicy()
	}
	return PosixPolicy()
}

// ParsePolicy maps a configuration value to a policy. The empty string and
// "auto" select HostPolicy.
func ParsePolicy(name string) (PathPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return HostPolicy(), nil
	case "posix":
		return PosixPolicy(), nil
	case "windows":
		return WindowsPolicy(), nil
	default:
		return PathPolicy{}, fmt.Errorf("unknown path policy %q", name)
	}
}

func (p PathPolicy) isReserved(component string) bool {
	if len(p.ReservedNames) == 0 || len(component) < 3 {
		return false
	}
	stem := component
	if len(stem) > 4 {
		stem = stem[:4]
	}
	if len(stem) == 4 && stem[3] == '.' {
		stem = stem[:3]
	}
	_, ok := p.ReservedNames[strings.ToUpper(stem)]
	return ok
}

func (p PathPolicy) isAbsolute(path string) bool {
	if strings.HasPrefix(path, "/") {
		return true
	}
	if !p.CaseInsensitive || len(path) < 2 || path[1] != ':' {
		return false
	}
	c := path[0] | 0x20
	return c >= 'a' && c <= 'z'
}
