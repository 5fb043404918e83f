package match

import (
	"hash/fnv"
	"sort"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
)

// greedyAssign consumes candidates in sortPairsForAssignment order,
// accepting a pair only if neither endpoint has already been claimed.
// Because the input order is a pure function of score and id, the
// resulting matching is identical across repeated runs.
func greedyAssign(candidates []Pair) []Pair {
	sortPairsForAssignment(candidates)

	claimedA := make(map[string]bool, len(candidates))
	claimedB := make(map[string]bool, len(candidates))
	var accepted []Pair
	for _, p := range candidates {
		ka, kb := p.A.ID.String(), p.B.ID.String()
		if claimedA[ka] || claimedB[kb] {
			continue
		}
		claimedA[ka] = true
		claimedB[kb] = true
		accepted = append(accepted, p)
	}
	return accepted
}

// shardKey deterministically assigns a component to one of n shards by
// hashing its CanonicalId string form; residual components above the
// sharding threshold are partitioned by hash(id) mod n before matching.
func shardKey(id canonical.CanonicalId, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New64a()
	h.Write([]byte(id.String()))
	return int(h.Sum64() % uint64(n))
}

// shardComponents partitions components into n shards by shardKey,
// preserving each shard's relative order from the input slice.
func shardComponents(components []*canonical.Component, n int) [][]*canonical.Component {
	shards := make([][]*canonical.Component, n)
	for _, c := range components {
		k := shardKey(c.ID, n)
		shards[k] = append(shards[k], c)
	}
	return shards
}

// mergeShardResults concatenates per-shard matching results and re-sorts
// the combined pair list with the same deterministic key used within a
// shard, so the merge step itself introduces no run-to-run variance.
func mergeShardResults(results []MatchingSet) MatchingSet {
	var merged MatchingSet
	for _, r := range results {
		merged.Pairs = append(merged.Pairs, r.Pairs...)
		merged.UnmatchedA = append(merged.UnmatchedA, r.UnmatchedA...)
		merged.UnmatchedB = append(merged.UnmatchedB, r.UnmatchedB...)
	}
	sortPairsForAssignment(merged.Pairs)
	sortComponents(merged.UnmatchedA)
	sortComponents(merged.UnmatchedB)
	return merged
}

func sortComponents(cs []*canonical.Component) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID.Less(cs[j].ID) })
}
