// Package validate decides whether a logical path and mount ID may be used
// for a given operation, and produces the fixed-up path handed to the engine.
//
// Every filesystem call made on behalf of a script passes through a
// Validator before the host engine is consulted:
//
//	v := validate.New(engine)
//	d, err := v.Admit("saves/slot1.txt", "DATA", validate.IntentWrite)
//	if err != nil {
//	    return false // policy denial, never surfaced as a script error
//	}
//	h, err := engine.Open(d.Path, "w", d.MountID)
//
// # Order of checks
//
// Admission runs three gates and stops at the first failure:
//
//   - MountGate: the mount ID, folded to lower case, must be in the
//     whitelist selected by the intent (read, write or search-path).
//   - Normalizer: the path is rebased (when absolute) and collapsed, then
//     scanned for control characters, wildcards, characters the host
//     forbids and reserved device names.
//   - ExtensionGate: under write intent the extension must be whitelisted.
//
// The mount gate runs first because rebasing an absolute path needs to know
// which root the mount resolves to.
//
// # Platform policy
//
// Host differences are data, not branches. A PathPolicy carries whether the
// host is case-insensitive, its reserved device names and the characters it
// forbids in path components. WindowsPolicy and PosixPolicy cover the two
// families; HostPolicy picks one from runtime.GOOS.
//
// All whitelists are fixed at construction. A Validator is safe for
// concurrent use.
package validate
