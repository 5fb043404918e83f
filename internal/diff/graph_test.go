package diff

import (
	"testing"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
)

func idc(name string) canonical.CanonicalId {
	return canonical.CanonicalId{Name: name}
}

func TestDocGraph_RootsHaveNoIncomingEdges(t *testing.T) {
	t.Parallel()

	components := []*canonical.Component{{ID: idc("a")}, {ID: idc("b")}, {ID: idc("c")}}
	edges := []canonical.DependencyEdge{{From: idc("a"), To: idc("b")}, {From: idc("b"), To: idc("c")}}
	g := buildDocGraph(components, edges)

	roots := g.roots()
	if len(roots) != 1 || g.ids[roots[0]].Name != "a" {
		t.Fatalf("roots() = %v, want only \"a\"", roots)
	}
}

func TestDocGraph_ReachableFollowsChain(t *testing.T) {
	t.Parallel()

	components := []*canonical.Component{{ID: idc("a")}, {ID: idc("b")}, {ID: idc("c")}, {ID: idc("isolated")}}
	edges := []canonical.DependencyEdge{{From: idc("a"), To: idc("b")}, {From: idc("b"), To: idc("c")}}
	g := buildDocGraph(components, edges)

	visited, ok := g.reachable(g.roots())
	if !ok {
		t.Fatal("reachable() overflowed, want ok=true")
	}
	if len(visited) != 3 {
		t.Errorf("len(visited) = %d, want 3 (isolated node excluded)", len(visited))
	}
}

func TestDocGraph_SCCPartitionFindsCycle(t *testing.T) {
	t.Parallel()

	components := []*canonical.Component{{ID: idc("a")}, {ID: idc("b")}, {ID: idc("c")}}
	edges := []canonical.DependencyEdge{
		{From: idc("a"), To: idc("b")},
		{From: idc("b"), To: idc("a")},
		{From: idc("b"), To: idc("c")},
	}
	g := buildDocGraph(components, edges)

	partition := g.sccPartition()
	foundCycle := false
	for _, comp := range partition {
		if len(comp) == 2 {
			foundCycle = true
		}
	}
	if !foundCycle {
		t.Errorf("sccPartition() = %v, want one component of size 2 (a,b cycle)", partition)
	}
}

func TestDiffGraphs_NoChangeWhenGraphsIdentical(t *testing.T) {
	t.Parallel()

	a := canonical.Component{ID: idc("a")}
	b := canonical.Component{ID: idc("b")}
	edges := []canonical.DependencyEdge{{From: a.ID, To: b.ID, Scope: canonical.ScopeRuntime}}

	old := canonical.New(canonical.Metadata{})
	_ = old.AddComponent(a)
	_ = old.AddComponent(b)
	_ = old.AddEdge(edges[0])

	newer := canonical.New(canonical.Metadata{})
	_ = newer.AddComponent(a)
	_ = newer.AddComponent(b)
	_ = newer.AddEdge(edges[0])

	idMap := map[string]canonical.CanonicalId{a.ID.String(): a.ID, b.ID.String(): b.ID}
	gd := diffGraphs(old, newer, idMap)
	if len(gd.EdgeChanges) != 0 {
		t.Errorf("EdgeChanges = %+v, want none", gd.EdgeChanges)
	}
	if gd.SCCStructureChanged {
		t.Error("SCCStructureChanged = true, want false")
	}
}
