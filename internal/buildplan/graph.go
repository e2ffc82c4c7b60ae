package buildplan

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Graph is a directed graph of compilation units: units depend on the
// units that must be built before them. An edge u -> v means "u
// depends on v" (v must be compiled first).
type Graph struct {
	mu      sync.RWMutex
	units   map[UnitKey]*Unit
	deps    map[UnitKey][]UnitKey
	revDeps map[UnitKey][]UnitKey
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		units:   make(map[UnitKey]*Unit),
		deps:    make(map[UnitKey][]UnitKey),
		revDeps: make(map[UnitKey][]UnitKey),
	}
}

// Add inserts or replaces unit and its dependency edges. Idempotent:
// calling Add again with the same key and deps leaves the graph
// unchanged in shape (edges aren't duplicated).
func (g *Graph) Add(unit *Unit, deps []UnitKey) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.deps[unit.Key]; ok {
		for _, d := range old {
			g.revDeps[d] = removeKey(g.revDeps[d], unit.Key)
		}
	}

	g.units[unit.Key] = unit
	g.deps[unit.Key] = append([]UnitKey(nil), deps...)
	for _, d := range deps {
		if !containsKey(g.revDeps[d], unit.Key) {
			g.revDeps[d] = append(g.revDeps[d], unit.Key)
		}
	}
}

// Units returns every node in the graph.
func (g *Graph) Units() []*Unit {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Unit, 0, len(g.units))
	for _, u := range g.units {
		out = append(out, u)
	}
	return out
}

// Unit returns the node stored under key, if any.
func (g *Graph) Unit(key UnitKey) (*Unit, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	u, ok := g.units[key]
	return u, ok
}

// Len reports how many units the graph currently holds.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.units)
}

// Deps returns the units key directly depends on.
func (g *Graph) Deps(key UnitKey) []UnitKey {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]UnitKey(nil), g.deps[key]...)
}

// RevDeps returns the units that directly depend on key.
func (g *Graph) RevDeps(key UnitKey) []UnitKey {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]UnitKey(nil), g.revDeps[key]...)
}

// matchScore counts the path components root and file share, provided
// file lies under root; 0 if it does not. A deeper (more specific)
// root that still contains file yields a higher score than a shallow
// one, which is how nested crate roots outrank their workspace root.
func matchScore(file, root string) int {
	if root == "" {
		return 0
	}
	fc := pathComponents(file)
	rc := pathComponents(root)
	if len(rc) > len(fc) {
		return 0
	}
	for i, c := range rc {
		if fc[i] != c {
			return 0
		}
	}
	return len(rc)
}

func pathComponents(p string) []string {
	clean := filepath.ToSlash(filepath.Clean(p))
	return strings.Split(clean, "/")
}

// DirtyUnits applies the dirty-unit selection rules to a set of
// modified files: an exact build-script path match takes priority;
// otherwise every unit whose source root achieves the maximum
// matchScore against the file is selected (ties all included).
func (g *Graph) DirtyUnits(files []string) []UnitKey {
	g.mu.RLock()
	defer g.mu.RUnlock()

	dirty := make(map[UnitKey]bool)
	for _, f := range files {
		matchedScript := false
		for _, u := range g.units {
			if u.BuildScript && containsStr(u.InputFiles, f) {
				dirty[u.Key] = true
				matchedScript = true
			}
		}
		if matchedScript {
			continue
		}

		best := 0
		var bestUnits []UnitKey
		for _, u := range g.units {
			if u.BuildScript {
				continue
			}
			score := matchScore(f, u.SourceRoot)
			if score == 0 {
				continue
			}
			if score > best {
				best = score
				bestUnits = bestUnits[:0]
				bestUnits = append(bestUnits, u.Key)
			} else if score == best {
				bestUnits = append(bestUnits, u.Key)
			}
		}
		for _, k := range bestUnits {
			dirty[k] = true
		}
	}
	return keysOf(dirty)
}

// anyMatch reports whether any unit's source root (or, for build
// scripts, input file) matches file at all.
func (g *Graph) anyMatch(file string) bool {
	for _, u := range g.units {
		if u.BuildScript {
			if containsStr(u.InputFiles, file) {
				return true
			}
			continue
		}
		if matchScore(file, u.SourceRoot) > 0 {
			return true
		}
	}
	return false
}

// DirtyTransitive is DirtyUnits followed by a BFS over rev-dep edges,
// so a dirtied unit also dirties everything that depends on it.
func (g *Graph) DirtyTransitive(files []string) []UnitKey {
	direct := g.DirtyUnits(files)

	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[UnitKey]bool, len(direct))
	queue := append([]UnitKey(nil), direct...)
	for _, k := range direct {
		visited[k] = true
	}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		for _, rk := range g.revDeps[k] {
			if !visited[rk] {
				visited[rk] = true
				queue = append(queue, rk)
			}
		}
	}
	return keysOf(visited)
}

// TopologicalSort returns units (restricted to the given keys, or the
// whole graph if keys is empty) in an order where every dependency
// precedes its dependents — a valid sequential replay order. Ties at
// each step are broken by sorting candidate keys, so the result is
// stable across calls on an unchanged graph.
func (g *Graph) TopologicalSort(keys []UnitKey) ([]UnitKey, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var scope map[UnitKey]bool
	if len(keys) > 0 {
		scope = make(map[UnitKey]bool, len(keys))
		for _, k := range keys {
			scope[k] = true
		}
	}

	inDegree := make(map[UnitKey]int)
	forward := make(map[UnitKey][]UnitKey) // v -> units that depend on v, restricted to scope

	inScope := func(k UnitKey) bool {
		if scope == nil {
			_, ok := g.units[k]
			return ok
		}
		return scope[k]
	}

	for k := range g.units {
		if !inScope(k) {
			continue
		}
		inDegree[k] = 0
	}
	for u := range inDegree {
		for _, v := range g.deps[u] {
			if !inScope(v) {
				continue
			}
			inDegree[u]++
			forward[v] = append(forward[v], u)
		}
	}

	var ready []UnitKey
	for k, d := range inDegree {
		if d == 0 {
			ready = append(ready, k)
		}
	}
	sortKeys(ready)

	var order []UnitKey
	for len(ready) > 0 {
		k := ready[0]
		ready = ready[1:]
		order = append(order, k)
		var unlocked []UnitKey
		for _, dependent := range forward[k] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				unlocked = append(unlocked, dependent)
			}
		}
		sortKeys(unlocked)
		ready = mergeSorted(ready, unlocked)
	}

	if len(order) != len(inDegree) {
		return nil, fmt.Errorf("buildplan: dependency cycle detected among %d units", len(inDegree)-len(order))
	}
	// inDegree[u] counts u's own dependencies, so Kahn's algorithm
	// peels units with no outstanding dependencies first: order already
	// lists each unit after everything it depends on, as required.
	return order, nil
}

func sortKeys(ks []UnitKey) {
	sort.Slice(ks, func(i, j int) bool {
		return unitKeyString(ks[i]) < unitKeyString(ks[j])
	})
}

func mergeSorted(a, b []UnitKey) []UnitKey {
	if len(b) == 0 {
		return a
	}
	out := append(a, b...)
	sortKeys(out)
	return out
}

func unitKeyString(k UnitKey) string {
	return k.PackageID + "\x00" + k.Target + "\x00" + k.Mode
}

func containsKey(ks []UnitKey, k UnitKey) bool {
	for _, x := range ks {
		if x == k {
			return true
		}
	}
	return false
}

func containsStr(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func removeKey(ks []UnitKey, k UnitKey) []UnitKey {
	out := ks[:0]
	for _, x := range ks {
		if x != k {
			out = append(out, x)
		}
	}
	return out
}

func keysOf(set map[UnitKey]bool) []UnitKey {
	out := make([]UnitKey, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sortKeys(out)
	return out
}
