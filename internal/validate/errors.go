package validate

import "errors"

// Denial reasons. Every admission failure wraps exactly one of these.
var (
	ErrEmptyPath       = errors.New("path is empty")
	ErrEmptyMount      = errors.New("mount id is empty")
	ErrMountDenied     = errors.New("mount id not permitted for this intent")
	ErrOutsideMount    = errors.New("absolute path is not under a mount root")
	ErrPathEscape      = errors.New("path escapes the mount root")
	ErrInvalidEncoding = errors.New("path is not valid UTF-8")
	ErrControlChar     = errors.New("path contains a control character")
	ErrWildcard        = errors.New("path contains a wildcard")
	ErrForbiddenChar   = errors.New("path contains a forbidden character")
	ErrReservedName    = errors.New("path names a reserved device")
	ErrExtensionDenied = errors.New("extension not permitted for writing")
	ErrNonASCII        = errors.New("non-ASCII search path on a case-insensitive host")
)

var reasons = []struct {
	err   error
	label string
}{
	{ErrEmptyPath, "empty_path"},
	{ErrEmptyMount, "empty_mount"},
	{ErrMountDenied, "mount_denied"},
	{ErrOutsideMount, "outside_mount"},
	{ErrPathEscape, "path_escape"},
	{ErrInvalidEncoding, "invalid_encoding"},
	{ErrControlChar, "control_char"},
	{ErrWildcard, "wildcard"},
	{ErrForbiddenChar, "forbidden_char"},
	{ErrReservedName, "reserved_name"},
	{ErrExtensionDenied, "extension_denied"},
	{ErrNonASCII, "non_ascii"},
}

// Reason returns a stable, low-cardinality label for err, suitable for log
// fields and metric labels. A nil error yields "admitted".
func Reason(err error) string {
	if err == nil {
		return "admitted"
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.label
		}
	}
	return "other"
}
