package buildplan

// UnitKey identifies a compilation unit. Multiple physical compiler
// invocations for the same (package, target, mode) triple — e.g.
// compiling and then running a build script — coalesce onto one key.
type UnitKey struct {
	PackageID string
	Target    string
	Mode      string
}

// Unit is one node of the build plan graph.
type Unit struct {
	Key UnitKey

	// Command and Env are the cached compiler invocation for replay.
	Command []string
	Env     []string
	Cwd     string

	// SourceRoot is the directory this unit's inputs are rooted under;
	// used by the dirty-set "shared path component" rule.
	SourceRoot string
	// InputFiles is the set of source files this unit consumed the
	// last time it was built.
	InputFiles []string

	// Primary units belong to a workspace member or a path dependency.
	// The flag is recorded and reported by the debug surface only: the
	// graph stores, dirties and replays primary and non-primary units
	// alike, and their diagnostics are published the same way.
	Primary bool
	// BuildScript marks a build.rs-style unit: a modified file that is
	// exactly this unit's source path makes the unit dirty regardless
	// of the shared-path-component rule.
	BuildScript bool
}
