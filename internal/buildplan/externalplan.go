package buildplan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// externalInvocation is one entry of the external-command-driven
// plan's JSON input: a raw (program, args, env, cwd) invocation plus
// indices into the same array identifying its dependencies.
type externalInvocation struct {
	Program string   `json:"program"`
	Args    []string `json:"args"`
	Env     []string `json:"env"`
	Cwd     string   `json:"cwd"`
	Deps    []int    `json:"deps"`
}

// LoadExternalPlan builds a Graph from a JSON list of
// (program, args, env, cwd, deps[]) invocations, the shape an
// external build tool (not the package manager) reports its command
// graph in. Unit identity is a stable hash over program+args+env, so
// the same invocation always maps to the same UnitKey across reloads.
func LoadExternalPlan(raw []byte) (*Graph, error) {
	var invs []externalInvocation
	if err := json.Unmarshal(raw, &invs); err != nil {
		return nil, fmt.Errorf("buildplan: parsing external plan: %w", err)
	}

	keys := make([]UnitKey, len(invs))
	for i, inv := range invs {
		keys[i] = externalUnitKey(inv.Program, inv.Args, inv.Env)
	}

	g := NewGraph()
	for i, inv := range invs {
		deps := make([]UnitKey, 0, len(inv.Deps))
		for _, d := range inv.Deps {
			if d < 0 || d >= len(keys) {
				return nil, fmt.Errorf("buildplan: external plan entry %d references out-of-range dep %d", i, d)
			}
			deps = append(deps, keys[d])
		}
		command := append([]string{inv.Program}, inv.Args...)
		g.Add(&Unit{
			Key:        keys[i],
			Command:    command,
			Env:        inv.Env,
			Cwd:        inv.Cwd,
			SourceRoot: inv.Cwd,
			Primary:    true,
		}, deps)
	}
	return g, nil
}

func externalUnitKey(program string, args, env []string) UnitKey {
	h := sha256.New()
	h.Write([]byte(program))
	for _, a := range args {
		h.Write([]byte{0})
		h.Write([]byte(a))
	}
	for _, e := range env {
		h.Write([]byte{0})
		h.Write([]byte(e))
	}
	return UnitKey{PackageID: hex.EncodeToString(h.Sum(nil)), Target: program, Mode: "external"}
}
