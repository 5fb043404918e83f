package canonical

// Scope tags the nature of a dependency edge.
type Scope string

const (
	ScopeRuntime  Scope = "runtime"
	ScopeDev      Scope = "dev"
	ScopeOptional Scope = "optional"
	ScopeTest     Scope = "test"
)

// DependencyEdge is a directed edge in the (possibly cyclic) dependency
// multigraph of a NormalizedSbom.
type DependencyEdge struct {
	From  CanonicalId
	To    CanonicalId
	Scope Scope
}

// Key returns the (from, to, scope) tuple used to compare edges across
// documents, rendered as a string so edges can be used as map keys
// without a custom hash.
func (e DependencyEdge) Key() string {
	return e.From.String() + "->" + e.To.String() + "#" + string(e.Scope)
}
