package match

import (
	"sort"
	"sync"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
)

// MatchComponents pairs members of a with members of b across tiers
// T1-T4, returning a matching where each component is claimed by at
// most one pair.
//
// When len(a)+len(b) is at or below Config.DirectScanThreshold every
// pair is scored directly; above it, MinHash-LSH narrows T4 candidates
// to band-colliding pairs before scoring, and Config.Shards partitions
// the residual unmatched components for independent, deterministically
// mergeable sub-matches.
func MatchComponents(a, b []*canonical.Component, cfg Config) (MatchingSet, error) {
	cfg = cfg.normalized()
	aliases := buildAliasIndex(cfg.AliasTable)

	// Phase 1: exact/alias/ecosystem tiers (T1-T3) run over the full
	// cross product; they are cheap equality checks, not similarity
	// scoring, so no candidate narrowing is needed.
	var exact []Pair
	claimedA := make(map[string]bool)
	claimedB := make(map[string]bool)

	sortedA := sortedCopy(a)
	sortedB := sortedCopy(b)

	for _, ca := range sortedA {
		for _, cb := range sortedB {
			score, tier, expl, isT4 := scorePair(ca, cb, aliases)
			if isT4 {
				continue
			}
			p := Pair{A: ca, B: cb, Score: score, Tier: tier}
			if cfg.Explain {
				e := expl
				p.Explanation = &e
			}
			exact = append(exact, p)
		}
	}
	exact = greedyAssign(exact)
	for _, p := range exact {
		claimedA[p.A.ID.String()] = true
		claimedB[p.B.ID.String()] = true
	}

	residualA := remaining(sortedA, claimedA)
	residualB := remaining(sortedB, claimedB)

	// Phase 2: fuzzy (T4) tier over the residual, sharded when large.
	var fuzzy MatchingSet
	if len(residualA) == 0 || len(residualB) == 0 {
		fuzzy = MatchingSet{UnmatchedA: residualA, UnmatchedB: residualB}
	} else if len(residualA)+len(residualB) > 50 && cfg.Shards > 1 {
		fuzzy = shardedFuzzyMatch(residualA, residualB, cfg, aliases)
	} else {
		fuzzy = fuzzyMatch(residualA, residualB, cfg, aliases)
	}

	result := MatchingSet{
		Pairs:      append(exact, fuzzy.Pairs...),
		UnmatchedA: fuzzy.UnmatchedA,
		UnmatchedB: fuzzy.UnmatchedB,
	}
	sortPairsForAssignment(result.Pairs)
	sortComponents(result.UnmatchedA)
	sortComponents(result.UnmatchedB)
	return result, nil
}

// fuzzyMatch scores T4 candidates for one (sub-)set of residual
// components and assigns them greedily. Below DirectScanThreshold,
// candidates are the full cross product; above it, MinHash-LSH band
// collisions narrow the candidate set first.
func fuzzyMatch(a, b []*canonical.Component, cfg Config, aliases aliasIndex) MatchingSet {
	var candidatePairs [][2]*canonical.Component
	if len(a)+len(b) <= cfg.DirectScanThreshold {
		for _, ca := range a {
			for _, cb := range b {
				candidatePairs = append(candidatePairs, [2]*canonical.Component{ca, cb})
			}
		}
	} else {
		cands := lshCandidates(cfg.LSH, a, b)
		for _, ca := range a {
			for _, cb := range cands[ca.ID.String()] {
				candidatePairs = append(candidatePairs, [2]*canonical.Component{ca, cb})
			}
		}
	}

	threshold := adaptiveThreshold(candidatePairs, cfg.Preset, aliases)

	var pairs []Pair
	for _, cp := range candidatePairs {
		score, expl := fuzzyScore(cp[0], cp[1])
		if score < threshold {
			continue
		}
		p := Pair{A: cp[0], B: cp[1], Score: score, Tier: TierFuzzy}
		if cfg.Explain {
			e := expl
			p.Explanation = &e
		}
		pairs = append(pairs, p)
	}

	accepted := greedyAssign(pairs)
	claimedA := make(map[string]bool, len(accepted))
	claimedB := make(map[string]bool, len(accepted))
	for _, p := range accepted {
		claimedA[p.A.ID.String()] = true
		claimedB[p.B.ID.String()] = true
	}
	return MatchingSet{
		Pairs:      accepted,
		UnmatchedA: remaining(a, claimedA),
		UnmatchedB: remaining(b, claimedB),
	}
}

// shardedFuzzyMatch partitions residual components into cfg.Shards
// deterministic shards and matches each independently in parallel,
// following the worker-pool pattern used elsewhere in this module.
// A and B are sharded independently by shardKey over each component's
// own id, so two components whose ids differ can land in different
// shards; such cross-shard pairs are never scored. Accepted in exchange
// for bounded per-shard work; see DESIGN.md.
func shardedFuzzyMatch(a, b []*canonical.Component, cfg Config, aliases aliasIndex) MatchingSet {
	shardsA := shardComponents(a, cfg.Shards)
	shardsB := shardComponents(b, cfg.Shards)

	results := make([]MatchingSet, cfg.Shards)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Shards; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = fuzzyMatch(shardsA[i], shardsB[i], cfg, aliases)
		}(i)
	}
	wg.Wait()

	return mergeShardResults(results)
}

// adaptiveThreshold computes tier T4's acceptance threshold as
// max(base, p75-0.05), where p75 is the 75th percentile of candidate
// fuzzy scores: this tightens the bar when the candidate set is
// strong and relaxes it towards base when overall similarity is low.
// Degrades to the preset's base threshold outright when there are
// fewer than 20 candidates to estimate a percentile from.
func adaptiveThreshold(candidatePairs [][2]*canonical.Component, preset Preset, aliases aliasIndex) float64 {
	base := preset.baseThreshold()
	if len(candidatePairs) < 20 {
		return base
	}
	scores := make([]float64, len(candidatePairs))
	for i, cp := range candidatePairs {
		s, _ := fuzzyScore(cp[0], cp[1])
		scores[i] = s
	}
	sort.Float64s(scores)
	idx := int(float64(len(scores)) * 0.75)
	if idx >= len(scores) {
		idx = len(scores) - 1
	}
	p75 := scores[idx]
	adjusted := p75 - 0.05
	if adjusted < base {
		return base
	}
	return adjusted
}

func sortedCopy(cs []*canonical.Component) []*canonical.Component {
	out := make([]*canonical.Component, len(cs))
	copy(out, cs)
	sortComponents(out)
	return out
}

func remaining(cs []*canonical.Component, claimed map[string]bool) []*canonical.Component {
	var out []*canonical.Component
	for _, c := range cs {
		if !claimed[c.ID.String()] {
			out = append(out, c)
		}
	}
	return out
}
