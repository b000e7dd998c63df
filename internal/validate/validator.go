package validate

import "fmt"

// writeRootMount is the mount search-path directories are normalised against.
const writeRootMount = "DEFAULT_WRITE_PATH"

// Decision is the outcome of a successful admission.
type Decision struct {
	// Path is the fixed-up relative path to hand to the engine.
	Path string
	// MountID is the folded mount ID.
	MountID  string
	Intent   Intent
	NonASCII bool
}

type options struct {
	mounts    MountGate
	exts      ExtensionGate
	policy    PathPolicy
	cacheSize int
}

// Option configures a Validator.
type Option func(*options)

// WithMountGate replaces the compiled-in mount whitelists.
func WithMountGate(g MountGate) Option {
	return func(o *options) { o.mounts = g }
}

// WithExtensions replaces the compiled-in extension whitelist.
func WithExtensions(g ExtensionGate) Option {
	return func(o *options) { o.exts = g }
}

// WithPolicy sets the host path policy. Defaults to HostPolicy.
func WithPolicy(p PathPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithCacheSize bounds the relative-path memo. Zero disables it.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// Validator composes the mount, path and extension gates. It is immutable
// after New.
type Validator struct {
	mounts MountGate
	exts   ExtensionGate
	policy PathPolicy
	norm   *Normalizer
}

// New builds a Validator. rebaser resolves absolute paths against mount
// roots and is usually the host engine.
func New(rebaser Rebaser, opts ...Option) *Validator {
	o := options{
		mounts:    DefaultMountGate(),
		exts:      DefaultExtensionGate(),
		policy:    HostPolicy(),
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Validator{
		mounts: o.mounts,
		exts:   o.exts,
		policy: o.policy,
		norm:   NewNormalizer(o.policy, rebaser, o.cacheSize),
	}
}

// Policy returns the host path policy in force.
func (v *Validator) Policy() PathPolicy { return v.policy }

// Mounts returns the mount whitelist for intent.
func (v *Validator) Mounts(intent Intent) []string { return v.mounts.Mounts(intent) }

// Admit checks path and mountID under intent.
func (v *Validator) Admit(path, mountID string, intent Intent) (Decision, error) {
	return v.admit(path, mountID, intent, false)
}

// AdmitFind checks a find pattern under read intent. Wildcards are allowed.
func (v *Validator) AdmitFind(pattern, mountID string) (Decision, error) {
	return v.admit(pattern, mountID, IntentRead, true)
}

// AdmitSearchPath checks a directory a script wants to add to or remove from
// mountID. The directory is normalised against the default write path, not
// against mountID, since it will be rebased under that root.
func (v *Validator) AdmitSearchPath(dir, mountID string) (Decision, error) {
	if err := v.checkMount(mountID, IntentSearchPath); err != nil {
		return Decision{}, err
	}
	norm, err := v.norm.Normalize(dir, writeRootMount, false)
	if err != nil {
		return Decision{}, fmt.Errorf("search path %q: %w", dir, err)
	}
	if norm.NonASCII && v.policy.CaseInsensitive {
		return Decision{}, fmt.Errorf("search path %q: %w", dir, ErrNonASCII)
	}
	return Decision{
		Path:     norm.Path,
		MountID:  FoldMountID(mountID),
		Intent:   IntentSearchPath,
		NonASCII: norm.NonASCII,
	}, nil
}

func (v *Validator) admit(path, mountID string, intent Intent, find bool) (Decision, error) {
	if err := v.checkMount(mountID, intent); err != nil {
		return Decision{}, err
	}
	id := FoldMountID(mountID)

	norm, err := v.norm.Normalize(path, id, find)
	if err != nil {
		return Decision{}, fmt.Errorf("path %q: %w", path, err)
	}

	if !v.exts.IsExtensionAllowed(norm.Path, intent) {
		return Decision{}, fmt.Errorf("path %q: %w", path, ErrExtensionDenied)
	}

	return Decision{
		Path:     norm.Path,
		MountID:  id,
		Intent:   intent,
		NonASCII: norm.NonASCII,
	}, nil
}

func (v *Validator) checkMount(mountID string, intent Intent) error {
	if mountID == "" {
		return ErrEmptyMount
	}
	if !v.mounts.IsAllowed(mountID, intent) {
		return fmt.Errorf("mount %q for %s: %w", mountID, intent, ErrMountDenied)
	}
	return nil
}
