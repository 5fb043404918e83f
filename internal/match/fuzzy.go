package match

import (
	"strings"

	"github.com/Masterminds/semver"
	edlib "github.com/hbollon/go-edlib"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
)

// fuzzyScore computes tier T4's weighted combination:
//
//	s = 0.55*jaro_winkler + 0.25*(1 - levenshtein/maxlen)
//	  + 0.10*phonetic_equal + 0.10*version_affinity
//
// multiplied by a 0.7 cross-ecosystem penalty unless the ecosystems
// agree or one side is Unknown. Component type is not compared.
func fuzzyScore(a, b *canonical.Component) (score float64, expl Explanation) {
	nameA, nameB := strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)

	jw := float64(edlib.JaroWinklerSimilarity(nameA, nameB))

	maxLen := len(nameA)
	if len(nameB) > maxLen {
		maxLen = len(nameB)
	}
	levSim := 1.0
	if maxLen > 0 {
		dist := edlib.LevenshteinDistance(nameA, nameB)
		levSim = 1.0 - float64(dist)/float64(maxLen)
	}

	phonetic := edlib.Soundex(nameA, nameB)
	phoneticScore := 0.0
	if phonetic {
		phoneticScore = 1.0
	}

	affinity := versionAffinity(a.ID, b.ID)

	s := 0.55*jw + 0.25*levSim + 0.10*phoneticScore + 0.10*affinity

	if !ecosystemsCompatible(a.ID.Ecosystem, b.ID.Ecosystem) {
		s *= 0.7
	}

	expl = Explanation{
		Tier:           TierFuzzy,
		Fields:         []string{"display_name", "id.version"},
		JaroWinkler:    jw,
		LevenshteinSim: levSim,
		PhoneticEqual:  phonetic,
	}
	return s, expl
}

// ecosystemsCompatible reports whether the cross-ecosystem penalty should
// be skipped: ecosystems agree, or either side is Unknown.
func ecosystemsCompatible(a, b canonical.Ecosystem) bool {
	if a.IsUnknown() || b.IsUnknown() {
		return true
	}
	return a == b
}

// versionAffinity is 1.0 if parsed semver majors agree, 0.5 if only the
// first dot-separated token agrees, else 0.0.
func versionAffinity(a, b canonical.CanonicalId) float64 {
	va, erra := semver.NewVersion(a.Version.Raw)
	vb, errb := semver.NewVersion(b.Version.Raw)
	if erra == nil && errb == nil {
		if va.Major() == vb.Major() {
			return 1.0
		}
		return tokenAffinity(a.Version.Raw, b.Version.Raw)
	}
	return tokenAffinity(a.Version.Raw, b.Version.Raw)
}

func tokenAffinity(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}
	ta := strings.SplitN(a, ".", 2)[0]
	tb := strings.SplitN(b, ".", 2)[0]
	if ta == tb {
		return 0.5
	}
	return 0.0
}
