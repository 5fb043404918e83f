// Package diff implements the semantic diff engine: given two
// NormalizedSboms it aligns their components via internal/match and
// reports additions, removals, modifications, dependency-graph deltas,
// license changes, vulnerability transitions, and a composite score.
package diff

import (
	"github.com/sbomdiff/sbomdiff/internal/canonical"
	"github.com/sbomdiff/sbomdiff/internal/match"
)

// Config configures a diff run.
type Config struct {
	Preset         match.Preset
	GraphDiff      bool
	AliasTable     []match.AliasPair
	ScoreWeights   ScoreWeights
	ExplainMatches bool
	// Shards controls residual-matching parallelism, forwarded to
	// internal/match.Config.Shards. When more than 50 components remain
	// after exact alignment and Shards is 1 or less, Run uses one shard
	// per 50 residual old components instead.
	Shards int
}

// ScoreWeights weights each phase's contribution to the composite
// score. Zero-valued Config.ScoreWeights falls back to the documented
// defaults.
type ScoreWeights struct {
	Components   float64
	Dependencies float64
	Vulns        float64
	Licenses     float64
}

func (w ScoreWeights) withDefaults() ScoreWeights {
	if w == (ScoreWeights{}) {
		return ScoreWeights{Components: 0.5, Dependencies: 0.2, Vulns: 0.2, Licenses: 0.1}
	}
	return w
}

func (c Config) normalized() Config {
	c.ScoreWeights = c.ScoreWeights.withDefaults()
	if c.Preset == "" {
		c.Preset = match.PresetBalanced
	}
	return c
}

func (c Config) matchConfig() match.Config {
	return match.Config{
		Preset:     c.Preset,
		AliasTable: c.AliasTable,
		Explain:    c.ExplainMatches,
		Shards:     c.Shards,
	}
}

// ChangeKind classifies what happened to a paired or unpaired component.
type ChangeKind string

const (
	ChangeAdded     ChangeKind = "added"
	ChangeRemoved   ChangeKind = "removed"
	ChangeModified  ChangeKind = "modified"
	ChangeUnchanged ChangeKind = "unchanged"
)

// ComponentChange records one component's fate between old and new.
type ComponentChange struct {
	Kind        ChangeKind
	Old         *canonical.Component // nil for Added
	New         *canonical.Component // nil for Removed
	Tier        match.Tier           // zero value for Added/Removed
	Explanation *match.Explanation
	// FieldsChanged lists which Modified-triggering fields differed:
	// any of "version", "licenses", "hashes", "supplier", "vulnerabilities".
	FieldsChanged []string
}

// EdgeChangeKind classifies a dependency-edge delta.
type EdgeChangeKind string

const (
	EdgeAdded   EdgeChangeKind = "added"
	EdgeRemoved EdgeChangeKind = "removed"
)

// EdgeChange is one edge present in only one of the two documents.
type EdgeChange struct {
	Kind EdgeChangeKind
	Edge canonical.DependencyEdge
}

// GraphDiff is phase 4's output, populated only when Config.GraphDiff.
type GraphDiff struct {
	EdgeChanges           []EdgeChange
	NewlyReachable        []canonical.CanonicalId
	LostReachability      []canonical.CanonicalId
	SCCStructureChanged   bool
	CycleOverflow         bool // true if GraphDiffCycleOverflow fired; edge-only diff was used
}

// LicenseChangeKind classifies a per-component license delta.
type LicenseChangeKind string

const (
	LicenseAdded   LicenseChangeKind = "added"
	LicenseRemoved LicenseChangeKind = "removed"
)

// LicenseChange is one license present on only one side of a matched pair.
type LicenseChange struct {
	Component canonical.CanonicalId
	License   canonical.License
	Kind      LicenseChangeKind
}

// LicenseDiff is phase 5's output.
type LicenseDiff struct {
	Changes         []LicenseChange
	FrequencyDeltaOld map[string]int // license expression -> count in old only
	FrequencyDeltaNew map[string]int // license expression -> count in new only
}

// VulnTransitionKind classifies a same-vuln-id transition across a
// version-changed component.
type VulnTransitionKind string

const (
	VulnResolvedByUpgrade VulnTransitionKind = "resolved_by_upgrade"
	VulnNewlyIntroduced   VulnTransitionKind = "newly_introduced"
	VulnPersisting        VulnTransitionKind = "persisting"
)

// VulnChange is one vulnerability-id-level delta, either a pure
// addition/removal or a Transition classification on a matched pair.
type VulnChange struct {
	Component  canonical.CanonicalId
	VulnID     string
	Added      bool // true if only in new, false if only in old (ignored when Transition != "")
	Transition VulnTransitionKind
}

// VulnDiff is phase 6's output.
type VulnDiff struct {
	Changes []VulnChange
}

// Summary holds derived totals; every field here is computed from the
// change lists on Result, never accumulated imperatively during the
// phases.
type Summary struct {
	Added      int
	Removed    int
	Modified   int
	Unchanged  int
	EdgesAdded   int
	EdgesRemoved int
	LicensesAdded   int
	LicensesRemoved int
	VulnsAdded       int
	VulnsRemoved     int
	VulnsResolved    int
	VulnsIntroduced  int
	VulnsPersisting  int
	Total      int // sum of all non-unchanged change counts
}

// Result is the diff engine's output.
type Result struct {
	ID               string // uuid, for daemon correlation
	ComponentChanges []ComponentChange
	Graph            *GraphDiff // nil when Config.GraphDiff is false
	Licenses         LicenseDiff
	Vulns            VulnDiff
	Score            float64 // [0,100], 100 = identical
	Summary          Summary
	Warnings         []string
}

// Empty returns the zero-change result used by the fast path, carrying
// full-marks score and a summary of all zeros except Unchanged.
func Empty(old *canonical.NormalizedSbom) Result {
	var r Result
	r.Score = 100
	r.Summary.Unchanged = old.Len()
	for _, c := range old.Components() {
		r.ComponentChanges = append(r.ComponentChanges, ComponentChange{Kind: ChangeUnchanged, Old: c, New: c})
	}
	return r
}

// deriveSummary computes Summary purely from the change lists; totals
// are never accumulated imperatively during the phases themselves.
func deriveSummary(r *Result) {
	var s Summary
	for _, c := range r.ComponentChanges {
		switch c.Kind {
		case ChangeAdded:
			s.Added++
		case ChangeRemoved:
			s.Removed++
		case ChangeModified:
			s.Modified++
		case ChangeUnchanged:
			s.Unchanged++
		}
	}
	if r.Graph != nil {
		for _, ec := range r.Graph.EdgeChanges {
			switch ec.Kind {
			case EdgeAdded:
				s.EdgesAdded++
			case EdgeRemoved:
				s.EdgesRemoved++
			}
		}
	}
	for _, lc := range r.Licenses.Changes {
		switch lc.Kind {
		case LicenseAdded:
			s.LicensesAdded++
		case LicenseRemoved:
			s.LicensesRemoved++
		}
	}
	for _, vc := range r.Vulns.Changes {
		switch {
		case vc.Transition == VulnResolvedByUpgrade:
			s.VulnsResolved++
		case vc.Transition == VulnNewlyIntroduced:
			s.VulnsIntroduced++
		case vc.Transition == VulnPersisting:
			s.VulnsPersisting++
		case vc.Added:
			s.VulnsAdded++
		default:
			s.VulnsRemoved++
		}
	}
	s.Total = s.Added + s.Removed + s.Modified +
		s.EdgesAdded + s.EdgesRemoved +
		s.LicensesAdded + s.LicensesRemoved +
		s.VulnsAdded + s.VulnsRemoved + s.VulnsResolved + s.VulnsIntroduced
	r.Summary = s
}
