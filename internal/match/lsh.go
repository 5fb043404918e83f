package match

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
)

// lshIndex generates candidate pairs without scoring all |A|x|B|
// combinations, via MinHash-LSH. It is a pure, deterministic
// transform: signatures and band hashes never depend on
// map iteration order or wall-clock time, so repeated runs against the
// same input produce byte-identical candidate sets regardless of
// goroutine scheduling.
//
// A self-implemented MinHash/LSH was chosen over a third-party package:
// see DESIGN.md for the determinism rationale.
type lshIndex struct {
	cfg  LSHConfig
	sigs map[string][]uint64 // keyed by CanonicalId.String()
}

func newLSHIndex(cfg LSHConfig, components []*canonical.Component) *lshIndex {
	idx := &lshIndex{cfg: cfg, sigs: make(map[string][]uint64, len(components))}
	for _, c := range components {
		idx.sigs[c.ID.String()] = minhashSignature(c.DisplayName, cfg)
	}
	return idx
}

// lshCandidates returns, for every member of a, the members of b sharing at
// least one LSH band, using the banding scheme in cfg (Bands bands of
// Rows rows each; Bands*Rows == Signature).
func lshCandidates(cfg LSHConfig, a, b []*canonical.Component) map[string][]*canonical.Component {
	aIdx := newLSHIndex(cfg, a)
	bIdx := newLSHIndex(cfg, b)

	// bucket[band][bandHash] -> component B's, built deterministically by
	// iterating b in its given (already-ordered) slice order.
	buckets := make([]map[uint64][]*canonical.Component, cfg.Bands)
	for i := range buckets {
		buckets[i] = make(map[uint64][]*canonical.Component)
	}
	for _, cb := range b {
		sig := bIdx.sigs[cb.ID.String()]
		for band := 0; band < cfg.Bands; band++ {
			h := bandHash(sig, band, cfg.Rows)
			buckets[band][h] = append(buckets[band][h], cb)
		}
	}

	out := make(map[string][]*canonical.Component, len(a))
	for _, ca := range a {
		sig := aIdx.sigs[ca.ID.String()]
		seen := make(map[string]bool)
		var matched []*canonical.Component
		for band := 0; band < cfg.Bands; band++ {
			h := bandHash(sig, band, cfg.Rows)
			for _, cb := range buckets[band][h] {
				if !seen[cb.ID.String()] {
					seen[cb.ID.String()] = true
					matched = append(matched, cb)
				}
			}
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].ID.Less(matched[j].ID) })
		out[ca.ID.String()] = matched
	}
	return out
}

func bandHash(sig []uint64, band, rows int) uint64 {
	h := fnv.New64a()
	start := band * rows
	for i := start; i < start+rows && i < len(sig); i++ {
		h.Write([]byte(strconv.FormatUint(sig[i], 36)))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// minhashSignature computes a MinHash signature over the set of
// shingleSize-character shingles of the lowercased name, using
// signature independent, deterministic hash functions seeded by index
// (FNV-1a over the shingle bytes salted with the function index).
func minhashSignature(name string, cfg LSHConfig) []uint64 {
	shingles := shingle(strings.ToLower(name), cfg.ShingleSize)
	sig := make([]uint64, cfg.Signature)
	for k := 0; k < cfg.Signature; k++ {
		min := ^uint64(0)
		for _, s := range shingles {
			h := hashShingle(s, k)
			if h < min {
				min = h
			}
		}
		sig[k] = min
	}
	return sig
}

func hashShingle(s string, salt int) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strconv.Itoa(salt)))
	h.Write([]byte{':'})
	h.Write([]byte(s))
	return h.Sum64()
}

// shingle splits a string into overlapping n-character substrings. A
// string shorter than n yields the whole string as its single shingle,
// so short names still produce a non-empty set.
func shingle(s string, n int) []string {
	runes := []rune(s)
	if len(runes) <= n {
		if len(runes) == 0 {
			return nil
		}
		return []string{s}
	}
	out := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		out = append(out, string(runes[i:i+n]))
	}
	return out
}
