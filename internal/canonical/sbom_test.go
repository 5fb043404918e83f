package canonical_test

import (
	"sync"
	"testing"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
)

func npmID(name, version string) canonical.CanonicalId {
	return canonical.CanonicalId{
		Ecosystem: canonical.EcosystemNPM,
		Name:      name,
		Version:   canonical.Version{Raw: version},
	}
}

func TestNormalizedSbom_AddComponent_RejectsDuplicateID(t *testing.T) {
	t.Parallel()

	s := canonical.New(canonical.Metadata{Name: "test"})
	if err := s.AddComponent(canonical.Component{ID: npmID("lodash", "4.17.21")}); err != nil {
		t.Fatalf("AddComponent() error = %v", err)
	}

	err := s.AddComponent(canonical.Component{ID: npmID("lodash", "4.17.21")})
	if err == nil {
		t.Fatal("AddComponent() expected error for duplicate id, got nil")
	}

	var pe *canonical.ParseError
	if !asParseError(err, &pe) {
		t.Fatalf("AddComponent() error type = %T, want *ParseError", err)
	}
	if pe.Kind != canonical.DuplicateComponent {
		t.Errorf("Kind = %v, want DuplicateComponent", pe.Kind)
	}
}

func TestNormalizedSbom_AddEdge_RejectsDanglingReference(t *testing.T) {
	t.Parallel()

	s := canonical.New(canonical.Metadata{Name: "test"})
	if err := s.AddComponent(canonical.Component{ID: npmID("a", "1.0.0")}); err != nil {
		t.Fatalf("AddComponent() error = %v", err)
	}

	err := s.AddEdge(canonical.DependencyEdge{From: npmID("a", "1.0.0"), To: npmID("b", "1.0.0"), Scope: canonical.ScopeRuntime})
	if err == nil {
		t.Fatal("AddEdge() expected error for dangling reference, got nil")
	}

	var pe *canonical.ParseError
	if !asParseError(err, &pe) {
		t.Fatalf("AddEdge() error type = %T, want *ParseError", err)
	}
	if pe.Kind != canonical.InvalidReference {
		t.Errorf("Kind = %v, want InvalidReference", pe.Kind)
	}
}

func TestNormalizedSbom_ContentHash_StableAndMutationSensitive(t *testing.T) {
	t.Parallel()

	build := func(version string) *canonical.NormalizedSbom {
		s := canonical.New(canonical.Metadata{Name: "test"})
		_ = s.AddComponent(canonical.Component{ID: npmID("lodash", version), Purl: "pkg:npm/lodash@" + version})
		return s
	}

	a := build("4.17.20")
	b := build("4.17.20")
	if a.ContentHash() != b.ContentHash() {
		t.Error("ContentHash() differs for identical documents")
	}

	c := build("4.17.21")
	if a.ContentHash() == c.ContentHash() {
		t.Error("ContentHash() identical for documents differing by version")
	}
}

func TestNormalizedSbom_ContentHash_RecomputesAfterMutation(t *testing.T) {
	t.Parallel()

	s := canonical.New(canonical.Metadata{Name: "test"})
	_ = s.AddComponent(canonical.Component{ID: npmID("lodash", "4.17.20")})
	before := s.ContentHash()

	comp, _ := s.Component(npmID("lodash", "4.17.20"))
	comp.Licenses = append(comp.Licenses, canonical.NewLicense("MIT"))
	after := s.Rehash()

	if before == after {
		t.Error("Rehash() did not change after mutating a component's licenses")
	}
}

func TestNormalizedSbom_ContentHash_ConcurrentCallsAgree(t *testing.T) {
	t.Parallel()

	s := canonical.New(canonical.Metadata{Name: "test"})
	_ = s.AddComponent(canonical.Component{ID: npmID("lodash", "4.17.20")})

	const n = 32
	hashes := make([][32]byte, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			hashes[i] = s.ContentHash()
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if hashes[i] != hashes[0] {
			t.Fatalf("ContentHash() call %d disagreed with call 0 under concurrent first access", i)
		}
	}
}

func TestNewLicense_NormalizesOperatorCaseAndWhitespace(t *testing.T) {
	t.Parallel()

	a := canonical.NewLicense("  MIT or Apache-2.0  ")
	b := canonical.NewLicense("MIT OR Apache-2.0")
	if a.Expression != b.Expression {
		t.Errorf("Expression = %q, want %q", a.Expression, b.Expression)
	}
}

func TestCanonicalId_OrderingIsLexicographic(t *testing.T) {
	t.Parallel()

	a := npmID("alpha", "1.0.0")
	b := npmID("beta", "1.0.0")
	if !a.Less(b) {
		t.Error("Less() expected alpha < beta")
	}
	if b.Less(a) {
		t.Error("Less() expected beta !< alpha")
	}
}

// asParseError is a small type-assertion stand-in for errors.As, kept
// local to avoid importing errors just for this check.
func asParseError(err error, target **canonical.ParseError) bool {
	pe, ok := err.(*canonical.ParseError)
	if ok {
		*target = pe
	}
	return ok
}
