package canonical

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Metadata is the document-level subset of fields that feed the content
// hash and survive into a DiffResult's summary.
type Metadata struct {
	SpecVersion string
	Created     time.Time
	Tool        string
	Supplier    string
	Name        string
	SerialNumber string // CycloneDX serialNumber, empty for SPDX
}

// NormalizedSbom is the canonical, format-agnostic representation every
// dialect parser produces. It is immutable from construction except for
// enrichment, which may append vulnerabilities and EOL info to
// components in place and must recompute the content hash afterward.
type NormalizedSbom struct {
	Metadata   Metadata
	components map[string]*Component // keyed by CanonicalId.String()
	order      []string              // insertion order of the keys above
	edges      []DependencyEdge
	hashMu     sync.Mutex
	hash       [32]byte
	hashValid  bool
	rawSource  []byte // retained only when a downstream viewer asked for it
	Warnings   []string
}

// New creates an empty NormalizedSbom with the given metadata.
func New(meta Metadata) *NormalizedSbom {
	return &NormalizedSbom{
		Metadata:   meta,
		components: make(map[string]*Component),
	}
}

// AddComponent inserts c, keyed by its CanonicalId. Returns
// DuplicateComponent if the id is already present, enforcing the
// within-document uniqueness invariant.
func (s *NormalizedSbom) AddComponent(c Component) error {
	key := c.ID.String()
	if _, exists := s.components[key]; exists {
		return &ParseError{Kind: DuplicateComponent, Field: key, Message: "duplicate component id"}
	}
	stored := c
	s.components[key] = &stored
	s.order = append(s.order, key)
	s.hashValid = false
	return nil
}

// Component looks up a component by id.
func (s *NormalizedSbom) Component(id CanonicalId) (*Component, bool) {
	c, ok := s.components[id.String()]
	return c, ok
}

// Components returns all components in insertion order.
func (s *NormalizedSbom) Components() []*Component {
	out := make([]*Component, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.components[k])
	}
	return out
}

// Len returns the number of components.
func (s *NormalizedSbom) Len() int { return len(s.order) }

// AddEdge appends an edge after verifying both endpoints exist, enforcing
// the edge-endpoint invariant. Returns InvalidReference otherwise.
func (s *NormalizedSbom) AddEdge(e DependencyEdge) error {
	if _, ok := s.Component(e.From); !ok {
		return &ParseError{Kind: InvalidReference, Field: e.From.String(), Message: "dependency edge references unknown component"}
	}
	if _, ok := s.Component(e.To); !ok {
		return &ParseError{Kind: InvalidReference, Field: e.To.String(), Message: "dependency edge references unknown component"}
	}
	s.edges = append(s.edges, e)
	s.hashValid = false
	return nil
}

// Edges returns all dependency edges.
func (s *NormalizedSbom) Edges() []DependencyEdge {
	return s.edges
}

// SetRawSource retains the original document bytes for downstream viewers.
func (s *NormalizedSbom) SetRawSource(raw []byte) { s.rawSource = raw }

// RawSource returns the retained original document bytes, if any.
func (s *NormalizedSbom) RawSource() []byte { return s.rawSource }

// ContentHash returns a pure function of (sorted components, sorted
// edges, document metadata subset), computed lazily and cached until the
// next mutation. Safe to call concurrently: the lazy cache is guarded by
// hashMu, since diff fan-out reads a shared baseline's hash from multiple
// goroutines.
func (s *NormalizedSbom) ContentHash() [32]byte {
	s.hashMu.Lock()
	defer s.hashMu.Unlock()
	if s.hashValid {
		return s.hash
	}
	s.hash = s.computeHash()
	s.hashValid = true
	return s.hash
}

// Rehash forces recomputation, called by enrichment after it mutates
// components in place.
func (s *NormalizedSbom) Rehash() [32]byte {
	s.hashMu.Lock()
	s.hashValid = false
	s.hashMu.Unlock()
	return s.ContentHash()
}

func (s *NormalizedSbom) computeHash() [32]byte {
	h := sha256.New()

	fmt.Fprintf(h, "meta:%s|%s|%s|%s|%s|%s\n",
		s.Metadata.SpecVersion, s.Metadata.Created.UTC().Format(time.RFC3339),
		s.Metadata.Tool, s.Metadata.Supplier, s.Metadata.Name, s.Metadata.SerialNumber)

	keys := make([]string, len(s.order))
	copy(keys, s.order)
	sort.Strings(keys)
	for _, k := range keys {
		c := s.components[k]
		fmt.Fprintf(h, "component:%s|%s|%s|%s\n", k, c.Purl, c.Supplier, licensesKey(c.Licenses))
		fmt.Fprintf(h, "hashes:%s\n", hashesKey(c.Hashes))
		fmt.Fprintf(h, "vulns:%s\n", vulnsKey(c.Vulns))
	}

	edgeKeys := make([]string, len(s.edges))
	for i, e := range s.edges {
		edgeKeys[i] = e.Key()
	}
	sort.Strings(edgeKeys)
	for _, k := range edgeKeys {
		fmt.Fprintf(h, "edge:%s\n", k)
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func licensesKey(ls []License) string {
	keys := make([]string, len(ls))
	for i, l := range ls {
		keys[i] = l.Expression
	}
	sort.Strings(keys)
	return joinSorted(keys)
}

func hashesKey(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		keys = append(keys, k+"="+v)
	}
	sort.Strings(keys)
	return joinSorted(keys)
}

func vulnsKey(vs []Vulnerability) string {
	keys := make([]string, len(vs))
	for i, v := range vs {
		keys[i] = fmt.Sprintf("%s:%s:%s", v.ID, v.Severity, v.FixedRange)
	}
	sort.Strings(keys)
	return joinSorted(keys)
}

func joinSorted(keys []string) string {
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		out += k
	}
	return out
}

// CheckInvariants verifies two structural invariants: no dangling
// edges and no duplicate ids (the latter is enforced by construction
// through AddComponent, but re-checked here for documents assembled by
// other means, e.g. tests or enrichment).
func (s *NormalizedSbom) CheckInvariants() error {
	seen := make(map[string]bool, len(s.order))
	for _, k := range s.order {
		if seen[k] {
			return &ParseError{Kind: DuplicateComponent, Field: k, Message: "duplicate component id"}
		}
		seen[k] = true
	}
	for _, e := range s.edges {
		if _, ok := s.Component(e.From); !ok {
			return &ParseError{Kind: InvalidReference, Field: e.From.String(), Message: "edge references unknown component"}
		}
		if _, ok := s.Component(e.To); !ok {
			return &ParseError{Kind: InvalidReference, Field: e.To.String(), Message: "edge references unknown component"}
		}
	}
	return nil
}
