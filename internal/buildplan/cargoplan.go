package buildplan

// Invocation is one compilation unit as reported by the package
// manager's "what would you compile" callback.
type Invocation struct {
	PackageID   string
	Target      string
	Mode        string
	Command     []string
	Env         []string
	Cwd         string
	SourceRoot  string
	InputFiles  []string
	Primary     bool
	BuildScript bool
	Deps        []UnitKey
}

// CargoPlan is populated by intercepting the package manager's build
// plan: for every compilation unit it would spawn, the caller records
// the prepared command line, environment, and primary/non-primary
// classification via Record.
type CargoPlan struct {
	*Graph
}

// NewCargoPlan returns an empty package-manager-driven plan.
func NewCargoPlan() *CargoPlan {
	return &CargoPlan{Graph: NewGraph()}
}

// Record inserts or updates one invocation's unit and its edges.
func (p *CargoPlan) Record(inv Invocation) {
	key := UnitKey{PackageID: inv.PackageID, Target: inv.Target, Mode: inv.Mode}
	p.Graph.Add(&Unit{
		Key:         key,
		Command:     inv.Command,
		Env:         inv.Env,
		Cwd:         inv.Cwd,
		SourceRoot:  inv.SourceRoot,
		InputFiles:  inv.InputFiles,
		Primary:     inv.Primary,
		BuildScript: inv.BuildScript,
	}, inv.Deps)
}
