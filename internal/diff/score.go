package diff

// compositeScore implements phase 7: each phase contributes a weighted
// change cost in [0,1] relative to the universe of things that phase
// could have changed, and the composite score is 100 minus the weighted
// sum expressed as a percentage (100 = identical).
//
// oldEdges/newEdges are the raw edge counts of the two documents, used
// only to size the dependency-graph universe (Result does not itself
// track an "edges unchanged" count, since only deltas are meaningful
// diff output).
func compositeScore(r *Result, oldEdges, newEdges int, weights ScoreWeights) float64 {
	componentCost := changeCost(r.Summary.Added+r.Summary.Removed+r.Summary.Modified, len(r.ComponentChanges))

	var depCost float64
	if r.Graph != nil {
		depCost = changeCost(r.Summary.EdgesAdded+r.Summary.EdgesRemoved, maxInt(oldEdges, newEdges))
	}

	vulnChanged := r.Summary.VulnsAdded + r.Summary.VulnsRemoved + r.Summary.VulnsIntroduced + r.Summary.VulnsResolved
	vulnUniverse := vulnChanged + r.Summary.VulnsPersisting
	vulnCost := changeCost(vulnChanged, vulnUniverse)

	licenseChanged := r.Summary.LicensesAdded + r.Summary.LicensesRemoved
	licenseCost := changeCost(licenseChanged, len(r.ComponentChanges))

	weighted := weights.Components*componentCost +
		weights.Dependencies*depCost +
		weights.Vulns*vulnCost +
		weights.Licenses*licenseCost

	return 100 * (1 - weighted)
}

// changeCost is the fraction of a universe that changed, clamped to
// [0,1]; an empty universe costs nothing (no basis for comparison).
func changeCost(changed, universe int) float64 {
	if universe <= 0 {
		return 0
	}
	cost := float64(changed) / float64(universe)
	if cost > 1 {
		return 1
	}
	return cost
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
