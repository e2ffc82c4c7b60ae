package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rls/internal/analysisdb"
	"github.com/ternarybob/rls/internal/buildplan"
	"github.com/ternarybob/rls/internal/buildqueue"
	"github.com/ternarybob/rls/internal/compiler"
	"github.com/ternarybob/rls/internal/postbuild"
	"github.com/ternarybob/rls/internal/vfs"
)

// relatedInfoSupported records the client's publishDiagnostics
// relatedInformation capability, set once during initialize and read
// by every later build.
var relatedInfoSupported atomic.Bool

// overlayLoader adapts the VFS to compiler.Loader: the compiler
// driver consults open editor buffers before falling back to whatever
// the subprocess shim itself reads from disk.
type overlayLoader struct{ v *vfs.VFS }

func (l overlayLoader) Overlay(path string) (string, bool) { return l.v.Text(path) }

// newBuildRunner returns the Runner the Build Queue drives: it asks
// the build plan which cached compilation units a dirty set touches,
// replays them in topological order through the compiler driver, and
// hands the combined diagnostic/analysis output to the post-build
// processor. Grounded on `internal/buildqueue.Runner`'s doc contract
// and `internal/compiler.Driver.Run`'s per-invocation shape.
func newBuildRunner(graph *buildplan.Graph, driver *compiler.Driver, pb *postbuild.Processor, log arbor.ILogger) buildqueue.Runner {
	return func(files []string) buildqueue.Result {
		decision := graph.PrepareWork(files)
		if decision.NeedsFullRebuild {
			log.Warn().Str("package", decision.PackageArg).Msg("build queue: full rebuild required, no incremental replay cached")
			return buildqueue.Result{Outcome: buildqueue.OutcomeError, Err: fmt.Errorf("full rebuild required for package %q", decision.PackageArg)}
		}

		var diagLines []string
		var analyses []analysisdb.Payload
		var reexamined []string

		for _, key := range decision.Jobs {
			unit, ok := graph.Unit(key)
			if !ok {
				continue
			}
			inv := compiler.Invocation{
				Command:    unit.Command,
				Env:        unit.Env,
				Cwd:        unit.Cwd,
				InputFiles: unit.InputFiles,
			}
			result, err := driver.Run(context.Background(), inv)
			if err != nil {
				return buildqueue.Result{Outcome: buildqueue.OutcomeError, Err: err}
			}
			diagLines = append(diagLines, result.DiagnosticLines...)
			analyses = append(analyses, result.Analyses...)
			reexamined = append(reexamined, result.InputFiles...)
		}

		pb.Submit(postbuild.BuildOutput{
			ReexaminedFiles:             reexamined,
			DiagnosticLines:             diagLines,
			Analyses:                    analyses,
			RelatedInformationSupported: relatedInfoSupported.Load(),
		})
		return buildqueue.Result{Outcome: buildqueue.OutcomeSuccess}
	}
}
