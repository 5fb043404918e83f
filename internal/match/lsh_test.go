package match

import (
	"testing"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
)

func TestMinhashSignature_Deterministic(t *testing.T) {
	t.Parallel()

	cfg := LSHConfig{}.withDefaults()
	s1 := minhashSignature("lodash", cfg)
	s2 := minhashSignature("lodash", cfg)
	if len(s1) != len(s2) {
		t.Fatalf("len mismatch: %d vs %d", len(s1), len(s2))
	}
	for i := range s1 {
		if s1[i] != s2[i] {
			t.Fatalf("signature element %d differs: %d vs %d", i, s1[i], s2[i])
		}
	}
}

func TestLshCandidates_FindsSimilarNames(t *testing.T) {
	t.Parallel()

	cfg := LSHConfig{}.withDefaults()
	a := []*canonical.Component{
		{ID: canonical.CanonicalId{Name: "a"}, DisplayName: "react-dom-server"},
	}
	b := []*canonical.Component{
		{ID: canonical.CanonicalId{Name: "b1"}, DisplayName: "react-dom-serverr"},
		{ID: canonical.CanonicalId{Name: "b2"}, DisplayName: "completely-unrelated-package"},
	}

	cands := lshCandidates(cfg, a, b)
	got := cands[a[0].ID.String()]
	found := false
	for _, c := range got {
		if c.DisplayName == "react-dom-serverr" {
			found = true
		}
	}
	if !found {
		t.Errorf("candidates = %+v, want react-dom-serverr present", got)
	}
}

func TestShingle_ShortStringYieldsWholeString(t *testing.T) {
	t.Parallel()

	got := shingle("ab", 3)
	if len(got) != 1 || got[0] != "ab" {
		t.Errorf("shingle(\"ab\", 3) = %v, want [\"ab\"]", got)
	}
}

func TestShingle_Empty(t *testing.T) {
	t.Parallel()

	if got := shingle("", 3); got != nil {
		t.Errorf("shingle(\"\", 3) = %v, want nil", got)
	}
}
