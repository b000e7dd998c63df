package app

import (
	"github.com/dshills/luafs/internal/engine"
	"github.com/dshills/luafs/internal/validate"
)

// CheckRequest describes one admission to dry-run.
type CheckRequest struct {
	Path    string
	MountID string
	// Mode is an fopen-style mode; it selects read or write intent.
	Mode string
	// Find checks Path as a Find pattern.
	Find bool
	// Search checks Path as a search-path directory.
	Search bool
}

// CheckResult is the outcome of a dry-run admission.
type CheckResult struct {
	Intent   validate.Intent
	Decision validate.Decision
	Err      error
}

// Admitted reports whether the request was admitted.
func (r CheckResult) Admitted() bool { return r.Err == nil }

// Reason returns the denial label, or "admitted".
func (r CheckResult) Reason() string { return validate.Reason(r.Err) }

// Check runs the validator without touching the engine.
func (app *Application) Check(req CheckRequest) CheckResult {
	var (
		res CheckResult
		err error
	)
	switch {
	case req.Search:
		res.Intent = validate.IntentSearchPath
		res.Decision, err = app.validator.AdmitSearchPath(req.Path, req.MountID)
	case req.Find:
		res.Intent = validate.IntentRead
		res.Decision, err = app.validator.AdmitFind(req.Path, req.MountID)
	default:
		res.Intent = validate.IntentFromMode(req.Mode)
		res.Decision, err = app.validator.Admit(req.Path, req.MountID, res.Intent)
	}
	res.Err = err
	app.metrics.Admission("check", res.Intent, err)
	return res
}

// SearchPaths returns the registered roots, optionally filtered to one mount.
func (app *Application) SearchPaths(mountID string) []engine.SearchPath {
	all := app.engine.SearchPaths()
	if mountID == "" {
		return all
	}
	want := validate.FoldMountID(mountID)
	out := make([]engine.SearchPath, 0, len(all))
	for _, sp := range all {
		if validate.FoldMountID(sp.MountID) == want {
			out = append(out, sp)
		}
	}
	return out
}
