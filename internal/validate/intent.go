package validate

import "strings"

// Intent is the access mode a path and mount ID are validated under.
type Intent int

const (
	IntentRead Intent = iota
	IntentWrite
	IntentSearchPath
)

// String returns the lower-case intent name.
func (i Intent) String() string {
	switch i {
	case IntentRead:
		return "read"
	case IntentWrite:
		return "write"
	case IntentSearchPath:
		return "searchpath"
	default:
		return "unknown"
	}
}

// IntentFromMode derives the intent of an fopen-style mode string. Any of
// 'w', 'a' or '+' makes it a write.
func IntentFromMode(mode string) Intent {
	if strings.ContainsAny(strings.ToLower(mode), "wa+") {
		return IntentWrite
	}
	return IntentRead
}
