package multisbom_test

import (
	"context"
	"testing"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
	"github.com/sbomdiff/sbomdiff/internal/diff"
	"github.com/sbomdiff/sbomdiff/internal/multisbom"
)

func sbomWith(t *testing.T, name, version string) *canonical.NormalizedSbom {
	t.Helper()
	s := canonical.New(canonical.Metadata{Name: name})
	id := canonical.CanonicalId{Ecosystem: canonical.EcosystemNPM, Name: name, Version: canonical.Version{Raw: version}}
	if err := s.AddComponent(canonical.Component{ID: id, DisplayName: name, Purl: "pkg:npm/" + name + "@" + version}); err != nil {
		t.Fatalf("AddComponent() error = %v", err)
	}
	return s
}

func TestDiffMulti_OneResultPerTarget(t *testing.T) {
	t.Parallel()

	baseline := sbomWith(t, "lodash", "4.17.20")
	targets := []multisbom.Named{
		{Label: "v2", Sbom: sbomWith(t, "lodash", "4.17.21")},
		{Label: "v3", Sbom: sbomWith(t, "lodash", "4.17.22")},
	}

	results := multisbom.DiffMulti(context.Background(), baseline, targets, diff.Config{}, nil)
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("target %s: Err = %v", r.TargetLabel, r.Err)
		}
		if r.Result.Summary.Modified != 1 {
			t.Errorf("target %s: Summary.Modified = %d, want 1", r.TargetLabel, r.Result.Summary.Modified)
		}
	}
}

func TestTimeline_CumulativeDriftAccumulates(t *testing.T) {
	t.Parallel()

	steps := []multisbom.Named{
		{Label: "s0", Sbom: sbomWith(t, "lodash", "4.17.19")},
		{Label: "s1", Sbom: sbomWith(t, "lodash", "4.17.20")},
		{Label: "s2", Sbom: sbomWith(t, "lodash", "4.17.21")},
	}

	tr, err := multisbom.Timeline(context.Background(), steps, diff.Config{}, nil)
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	if len(tr.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(tr.Steps))
	}
	if tr.CumulativeDrift != 2 {
		t.Errorf("CumulativeDrift = %d, want 2 (one modification per step)", tr.CumulativeDrift)
	}
}

func TestMatrix_CoversAllUnorderedPairs(t *testing.T) {
	t.Parallel()

	sboms := []multisbom.Named{
		{Label: "a", Sbom: sbomWith(t, "lodash", "1.0.0")},
		{Label: "b", Sbom: sbomWith(t, "lodash", "2.0.0")},
		{Label: "c", Sbom: sbomWith(t, "lodash", "3.0.0")},
	}

	cells := multisbom.Matrix(context.Background(), sboms, diff.Config{}, nil)
	if len(cells) != 3 {
		t.Fatalf("len(cells) = %d, want 3 (N*(N-1)/2 for N=3)", len(cells))
	}
}
