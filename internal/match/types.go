// Package match implements the tiered, LSH-accelerated fuzzy component
// matcher: the algorithmic core of the diff engine.
package match

import (
	"sort"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
)

// Preset selects the base adaptive threshold for tier T4.
type Preset string

const (
	PresetStrict     Preset = "strict"
	PresetBalanced   Preset = "balanced"
	PresetPermissive Preset = "permissive"
)

func (p Preset) baseThreshold() float64 {
	switch p {
	case PresetStrict:
		return 0.95
	case PresetPermissive:
		return 0.70
	default:
		return 0.82
	}
}

// Config configures a matching run.
type Config struct {
	Preset Preset
	// AliasTable lists symmetric (name, name) pairs that count as a T2
	// match regardless of ecosystem-specific normalization.
	AliasTable []AliasPair
	// Explain, when true, attaches an Explanation to every emitted pair.
	// Must not change the matching outcome.
	Explain bool
	// LSH tunes the candidate-generation step; zero-valued fields fall
	// back to documented defaults (128-wide signatures, 32 bands of 4
	// rows, 3-gram shingles), kept config-visible rather than hardcoded
	// so callers can retune without a code change.
	LSH LSHConfig
	// DirectScanThreshold is the |A|+|B| size below which the LSH step
	// is skipped and all pairs are scored directly.
	DirectScanThreshold int
	// Shards, when > 1 and more than 50 components remain after T1-T3,
	// splits A and B each deterministically by hash(id) mod Shards and
	// runs each shard independently before a single deterministic merge.
	Shards int
}

// AliasPair is a symmetric (name, name) tier-T2 alias.
type AliasPair struct {
	A, B string
}

// LSHConfig tunes MinHash-LSH candidate generation.
type LSHConfig struct {
	ShingleSize int // default 3
	Signature   int // default 128
	Bands       int // default 32
	Rows        int // default 4 (Bands*Rows == Signature)
}

func (c LSHConfig) withDefaults() LSHConfig {
	if c.ShingleSize == 0 {
		c.ShingleSize = 3
	}
	if c.Signature == 0 {
		c.Signature = 128
	}
	if c.Bands == 0 {
		c.Bands = 32
	}
	if c.Rows == 0 {
		c.Rows = 4
	}
	return c
}

func (c Config) normalized() Config {
	if c.Preset == "" {
		c.Preset = PresetBalanced
	}
	c.LSH = c.LSH.withDefaults()
	if c.DirectScanThreshold == 0 {
		c.DirectScanThreshold = 2048
	}
	if c.Shards == 0 {
		c.Shards = 1
	}
	return c
}

// Tier identifies which scoring tier produced a pair's score.
type Tier string

const (
	TierExactPurl      Tier = "T1"
	TierAlias          Tier = "T2"
	TierEcosystemEqual Tier = "T3"
	TierFuzzy          Tier = "T4"
)

// Explanation records why a pair matched, for optional debugging/audit
// output. Computing it must never change the matching outcome.
type Explanation struct {
	Tier          Tier
	Fields        []string // component fields that drove the decision
	JaroWinkler   float64  // only populated for T4
	LevenshteinSim float64 // only populated for T4 (1 - distance/maxlen)
	PhoneticEqual bool     // only populated for T4
}

// Pair is one emitted match between a component of A and a component of B.
type Pair struct {
	A           *canonical.Component
	B           *canonical.Component
	Score       float64
	Tier        Tier
	Explanation *Explanation
}

// MatchingSet is the result of MatchComponents: a set of pairs that is a
// matching (each component appears in at most one pair), plus the
// members of A and B left unpaired.
type MatchingSet struct {
	Pairs        []Pair
	UnmatchedA   []*canonical.Component
	UnmatchedB   []*canonical.Component
}

// sortPairsForAssignment sorts candidates by score desc, tie-broken
// lexicographically on (a.id, b.id), so greedy assignment and the
// parallel-merge step both produce the same order regardless of
// sharding.
func sortPairsForAssignment(pairs []Pair) {
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].Score != pairs[j].Score {
			return pairs[i].Score > pairs[j].Score
		}
		if !pairs[i].A.ID.Equal(pairs[j].A.ID) {
			return pairs[i].A.ID.Less(pairs[j].A.ID)
		}
		return pairs[i].B.ID.Less(pairs[j].B.ID)
	})
}
