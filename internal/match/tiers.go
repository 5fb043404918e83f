package match

import (
	"strings"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
	"github.com/sbomdiff/sbomdiff/internal/purl"
)

// aliasIndex is a symmetric lookup table built once per matching run from
// Config.AliasTable.
type aliasIndex map[string]map[string]bool

func buildAliasIndex(pairs []AliasPair) aliasIndex {
	idx := make(aliasIndex, len(pairs)*2)
	add := func(a, b string) {
		if idx[a] == nil {
			idx[a] = make(map[string]bool)
		}
		idx[a][b] = true
	}
	for _, p := range pairs {
		a, b := strings.ToLower(p.A), strings.ToLower(p.B)
		add(a, b)
		add(b, a)
	}
	return idx
}

func (idx aliasIndex) aliased(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	return idx[a][b]
}

// scorePair computes the tiered score for (a, b): the first tier that
// matches wins. When none of T1-T3 matches, it returns the T4 fuzzy
// score with isT4=true; the caller is responsible for
// applying the adaptive T4 threshold since that depends on the whole
// candidate-score distribution, not a single pair.
func scorePair(a, b *canonical.Component, aliases aliasIndex) (score float64, tier Tier, expl Explanation, isT4 bool) {
	if t1(a, b) {
		return 1.00, TierExactPurl, Explanation{Tier: TierExactPurl, Fields: []string{"purl"}}, false
	}
	if aliases.aliased(a.DisplayName, b.DisplayName) {
		return 0.95, TierAlias, Explanation{Tier: TierAlias, Fields: []string{"display_name"}}, false
	}
	if t3(a, b) {
		return 0.90, TierEcosystemEqual, Explanation{Tier: TierEcosystemEqual, Fields: []string{"id.ecosystem", "id.name"}}, false
	}

	s, expl := fuzzyScore(a, b)
	return s, TierFuzzy, expl, true
}

// t1 is tier T1: both sides carry a PURL, equal after canonical
// reserialization.
func t1(a, b *canonical.Component) bool {
	return a.Purl != "" && b.Purl != "" && a.Purl == b.Purl
}

// t3 is tier T3: same ecosystem, names equal after ecosystem-specific
// normalization (npm scope/`.js` stripping, PEP-503 for PyPI, Maven
// groupId:artifactId tokenization).
func t3(a, b *canonical.Component) bool {
	if a.ID.Ecosystem != b.ID.Ecosystem || a.ID.Ecosystem.IsUnknown() {
		return false
	}
	if a.ID.Ecosystem == canonical.EcosystemMaven {
		return purl.MavenToken(a.ID.Namespace, a.ID.Name) == purl.MavenToken(b.ID.Namespace, b.ID.Name)
	}
	return purl.NormalizeName(a.ID.Ecosystem, a.ID.Name) == purl.NormalizeName(b.ID.Ecosystem, b.ID.Name)
}
