package buildplan

// WorkDecision is the result of PrepareWork: either the caller must
// fall back to a full rebuild (re-running the package manager's
// planning step), or it can replay the given jobs in order.
type WorkDecision struct {
	NeedsFullRebuild bool
	// PackageArg is a best-effort hint for the full-rebuild fallback
	// (e.g. "-p <package>"); empty when no single package can be
	// identified from the dirty set.
	PackageArg string
	Jobs       []UnitKey
}

// PrepareWork decides how to react to a set of modified files: a full
// rebuild when the plan is empty, a dirty file matches no unit at all
// (so it may belong to a package the cached plan has never seen), or
// any dirtied unit is a build script (whose side effects the plan
// can't model incrementally). Otherwise it returns the transitive
// dirty closure in topological replay order.
func (g *Graph) PrepareWork(files []string) WorkDecision {
	g.mu.RLock()
	empty := len(g.units) == 0
	g.mu.RUnlock()
	if empty {
		return WorkDecision{NeedsFullRebuild: true}
	}

	g.mu.RLock()
	unmatched := false
	for _, f := range files {
		if !g.anyMatch(f) {
			unmatched = true
			break
		}
	}
	g.mu.RUnlock()
	if unmatched {
		return WorkDecision{NeedsFullRebuild: true}
	}

	dirty := g.DirtyUnits(files)
	g.mu.RLock()
	for _, k := range dirty {
		if u, ok := g.units[k]; ok && u.BuildScript {
			g.mu.RUnlock()
			return WorkDecision{NeedsFullRebuild: true, PackageArg: k.PackageID}
		}
	}
	g.mu.RUnlock()

	transitive := g.DirtyTransitive(files)
	sorted, err := g.TopologicalSort(transitive)
	if err != nil {
		return WorkDecision{NeedsFullRebuild: true}
	}
	return WorkDecision{Jobs: sorted}
}
