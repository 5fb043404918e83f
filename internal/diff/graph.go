package diff

import (
	"sort"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
)

// maxDFSFrames bounds the explicit-stack depth during reachability and
// SCC traversal, guarding against stack-depth blowup. Exceeding it is
// GraphDiffCycleOverflow: non-fatal, the phase falls back to edge-only
// diff.
const maxDFSFrames = 1_000_000

// docGraph is an index-keyed adjacency view of one document's dependency
// multigraph, built once per diffGraphs call. Traversal uses integer
// indices rather than string ids throughout.
type docGraph struct {
	ids  []canonical.CanonicalId // index -> id
	idx  map[string]int          // id string -> index
	adj  [][]int                 // index -> out-neighbor indices
	radj [][]int                 // index -> in-neighbor indices (reverse graph, for roots/Kosaraju)
}

func buildDocGraph(components []*canonical.Component, edges []canonical.DependencyEdge) *docGraph {
	g := &docGraph{idx: make(map[string]int, len(components))}
	for _, c := range components {
		g.idx[c.ID.String()] = len(g.ids)
		g.ids = append(g.ids, c.ID)
	}
	g.adj = make([][]int, len(g.ids))
	g.radj = make([][]int, len(g.ids))
	for _, e := range edges {
		fi, fok := g.idx[e.From.String()]
		ti, tok := g.idx[e.To.String()]
		if !fok || !tok {
			continue
		}
		g.adj[fi] = append(g.adj[fi], ti)
		g.radj[ti] = append(g.radj[ti], fi)
	}
	return g
}

// roots returns every node index with no incoming edge: the SBOM's
// top-level (directly declared) components.
func (g *docGraph) roots() []int {
	var out []int
	for i := range g.ids {
		if len(g.radj[i]) == 0 {
			out = append(out, i)
		}
	}
	return out
}

// reachable computes, via iterative DFS with an explicit stack, the set
// of node indices reachable from any of roots. ok is false if the
// traversal exceeded maxDFSFrames, signaling GraphDiffCycleOverflow.
func (g *docGraph) reachable(roots []int) (visited map[int]bool, ok bool) {
	visited = make(map[int]bool, len(g.ids))
	stack := append([]int(nil), roots...)
	frames := 0
	for len(stack) > 0 {
		frames++
		if frames > maxDFSFrames {
			return visited, false
		}
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n] {
			continue
		}
		visited[n] = true
		for _, next := range g.adj[n] {
			if !visited[next] {
				stack = append(stack, next)
			}
		}
	}
	return visited, true
}

// sccPartition computes strongly connected components via Kosaraju's
// algorithm (two iterative DFS passes), returning each component as a
// sorted slice of CanonicalId strings, the whole partition sorted for
// stable comparison.
func (g *docGraph) sccPartition() [][]string {
	order := g.postOrder()
	visited := make(map[int]bool, len(g.ids))
	var partition [][]string
	for i := len(order) - 1; i >= 0; i-- {
		root := order[i]
		if visited[root] {
			continue
		}
		var comp []string
		stack := []int{root}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[n] {
				continue
			}
			visited[n] = true
			comp = append(comp, g.ids[n].String())
			for _, prev := range g.radj[n] {
				if !visited[prev] {
					stack = append(stack, prev)
				}
			}
		}
		sort.Strings(comp)
		partition = append(partition, comp)
	}
	sort.Slice(partition, func(i, j int) bool {
		if len(partition[i]) == 0 || len(partition[j]) == 0 {
			return len(partition[i]) < len(partition[j])
		}
		return partition[i][0] < partition[j][0]
	})
	return partition
}

// postOrder computes a DFS post-order over the forward graph from every
// node (covering disconnected components too), using an explicit
// frame stack to avoid recursion.
func (g *docGraph) postOrder() []int {
	visited := make(map[int]bool, len(g.ids))
	var order []int
	type frame struct {
		node int
		next int
	}
	for start := range g.ids {
		if visited[start] {
			continue
		}
		visited[start] = true
		stack := []frame{{node: start}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(g.adj[top.node]) {
				child := g.adj[top.node][top.next]
				top.next++
				if !visited[child] {
					visited[child] = true
					stack = append(stack, frame{node: child})
				}
				continue
			}
			order = append(order, top.node)
			stack = stack[:len(stack)-1]
		}
	}
	return order
}

// diffGraphs implements phase 4. idMap translates a matched old
// CanonicalId (by string) to its new-side CanonicalId, used to resolve
// edges and reachability membership across the two documents.
func diffGraphs(old, newer *canonical.NormalizedSbom, idMap map[string]canonical.CanonicalId) *GraphDiff {
	oldG := buildDocGraph(old.Components(), old.Edges())
	newG := buildDocGraph(newer.Components(), newer.Edges())

	gd := &GraphDiff{}

	resolvedOld := make(map[string]canonical.DependencyEdge)
	for _, e := range old.Edges() {
		from, fok := idMap[e.From.String()]
		to, tok := idMap[e.To.String()]
		if !fok || !tok {
			continue // endpoint was removed; not a resolvable edge delta
		}
		resolved := canonical.DependencyEdge{From: from, To: to, Scope: e.Scope}
		resolvedOld[resolved.Key()] = resolved
	}
	newEdges := make(map[string]canonical.DependencyEdge)
	for _, e := range newer.Edges() {
		newEdges[e.Key()] = e
	}
	for k, e := range resolvedOld {
		if _, ok := newEdges[k]; !ok {
			gd.EdgeChanges = append(gd.EdgeChanges, EdgeChange{Kind: EdgeRemoved, Edge: e})
		}
	}
	for k, e := range newEdges {
		if _, ok := resolvedOld[k]; !ok {
			gd.EdgeChanges = append(gd.EdgeChanges, EdgeChange{Kind: EdgeAdded, Edge: e})
		}
	}
	sort.Slice(gd.EdgeChanges, func(i, j int) bool { return gd.EdgeChanges[i].Edge.Key() < gd.EdgeChanges[j].Edge.Key() })

	oldReach, ok1 := oldG.reachable(oldG.roots())
	newReach, ok2 := newG.reachable(newG.roots())
	if !ok1 || !ok2 {
		gd.CycleOverflow = true
		return gd
	}

	oldReachByID := indexSetToIDSet(oldG, oldReach)
	newReachByID := indexSetToIDSet(newG, newReach)

	for oldIDStr := range oldReachByID {
		newID, ok := idMap[oldIDStr]
		if !ok {
			continue
		}
		if !newReachByID[newID.String()] {
			gd.LostReachability = append(gd.LostReachability, oldID(oldG, oldIDStr))
		}
	}
	reverseMap := make(map[string]string, len(idMap))
	for oldStr, newID := range idMap {
		reverseMap[newID.String()] = oldStr
	}
	for newIDStr := range newReachByID {
		oldStr, hasOld := reverseMap[newIDStr]
		if hasOld && oldReachByID[oldStr] {
			continue
		}
		gd.NewlyReachable = append(gd.NewlyReachable, newIDFromString(newG, newIDStr))
	}
	sort.Slice(gd.LostReachability, func(i, j int) bool { return gd.LostReachability[i].Less(gd.LostReachability[j]) })
	sort.Slice(gd.NewlyReachable, func(i, j int) bool { return gd.NewlyReachable[i].Less(gd.NewlyReachable[j]) })

	gd.SCCStructureChanged = sccStructureDiffers(oldG, newG, idMap)
	return gd
}

func indexSetToIDSet(g *docGraph, visited map[int]bool) map[string]bool {
	out := make(map[string]bool, len(visited))
	for i := range visited {
		out[g.ids[i].String()] = true
	}
	return out
}

func oldID(g *docGraph, idStr string) canonical.CanonicalId {
	return g.ids[g.idx[idStr]]
}

func newIDFromString(g *docGraph, idStr string) canonical.CanonicalId {
	return g.ids[g.idx[idStr]]
}

// sccStructureDiffers translates old's SCC partition into new-id space
// via idMap (dropping components unmatched in new, which cannot be
// compared) and checks whether the resulting partition-of-matched-ids
// equals new's own partition restricted to the same id set.
func sccStructureDiffers(oldG, newG *docGraph, idMap map[string]canonical.CanonicalId) bool {
	oldPartition := oldG.sccPartition()
	newPartition := newG.sccPartition()

	translated := make([][]string, 0, len(oldPartition))
	for _, comp := range oldPartition {
		var t []string
		for _, idStr := range comp {
			if newID, ok := idMap[idStr]; ok {
				t = append(t, newID.String())
			}
		}
		if len(t) > 0 {
			sort.Strings(t)
			translated = append(translated, t)
		}
	}
	sort.Slice(translated, func(i, j int) bool { return translated[i][0] < translated[j][0] })

	matchedSet := make(map[string]bool)
	for _, comp := range translated {
		for _, id := range comp {
			matchedSet[id] = true
		}
	}
	var newFiltered [][]string
	for _, comp := range newPartition {
		var f []string
		for _, idStr := range comp {
			if matchedSet[idStr] {
				f = append(f, idStr)
			}
		}
		if len(f) > 0 {
			sort.Strings(f)
			newFiltered = append(newFiltered, f)
		}
	}
	sort.Slice(newFiltered, func(i, j int) bool { return newFiltered[i][0] < newFiltered[j][0] })

	return !partitionsEqual(translated, newFiltered)
}

func partitionsEqual(a, b [][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}
