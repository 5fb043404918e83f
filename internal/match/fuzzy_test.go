package match

import (
	"testing"

	edlib "github.com/hbollon/go-edlib"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
)

func TestFuzzyScore_IdenticalNamesScoreNearOne(t *testing.T) {
	t.Parallel()

	a := &canonical.Component{ID: canonical.CanonicalId{Version: canonical.Version{Raw: "1.2.3"}}, DisplayName: "requests"}
	b := &canonical.Component{ID: canonical.CanonicalId{Version: canonical.Version{Raw: "1.2.3"}}, DisplayName: "requests"}
	score, _ := fuzzyScore(a, b)
	if score < 0.95 {
		t.Errorf("fuzzyScore() = %v, want >= 0.95 for identical names and versions", score)
	}
}

func TestFuzzyScore_CrossEcosystemPenaltyApplies(t *testing.T) {
	t.Parallel()

	a := &canonical.Component{ID: canonical.CanonicalId{Ecosystem: canonical.EcosystemNPM, Version: canonical.Version{Raw: "1.0.0"}}, DisplayName: "requests"}
	b := &canonical.Component{ID: canonical.CanonicalId{Ecosystem: canonical.EcosystemPyPI, Version: canonical.Version{Raw: "1.0.0"}}, DisplayName: "requests"}
	sameEco, _ := fuzzyScore(a, a)
	crossEco, _ := fuzzyScore(a, b)
	if crossEco >= sameEco {
		t.Errorf("cross-ecosystem score %v should be lower than same-ecosystem score %v", crossEco, sameEco)
	}
}

func TestVersionAffinity_MajorAgreement(t *testing.T) {
	t.Parallel()

	a := canonical.CanonicalId{Version: canonical.Version{Raw: "2.5.0"}}
	b := canonical.CanonicalId{Version: canonical.Version{Raw: "2.9.1"}}
	if got := versionAffinity(a, b); got != 1.0 {
		t.Errorf("versionAffinity() = %v, want 1.0 for same major", got)
	}
}

func TestVersionAffinity_NonSemverFallsBackToTokenAffinity(t *testing.T) {
	t.Parallel()

	a := canonical.CanonicalId{Version: canonical.Version{Raw: "2021.10.1.4"}}
	b := canonical.CanonicalId{Version: canonical.Version{Raw: "2021.11.0.2"}}
	if got := versionAffinity(a, b); got != 0.5 {
		t.Errorf("versionAffinity() = %v, want 0.5 for matching leading token", got)
	}
}

func TestPhoneticEqual(t *testing.T) {
	t.Parallel()

	if !edlib.Soundex("smith", "smyth") {
		t.Error("Soundex(smith, smyth) = false, want true")
	}
}
