// Package purl parses and canonically reserializes Package URLs, and maps
// PURL types onto canonical.Ecosystem.
package purl

import (
	"strings"

	packageurl "github.com/package-url/packageurl-go"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
)

// Parsed is a PURL broken into its fields: type, namespace, name,
// version, qualifiers, plus the canonical string form.
type Parsed struct {
	Type       string
	Namespace  string
	Name       string
	Version    string
	Qualifiers map[string]string
	Canonical  string // reserialized canonical string form
}

// Parse parses raw into its components and computes the canonical string
// form. Unknown types are preserved verbatim; they are not an error here,
// only at the ecosystem-mapping layer (EcosystemFromPurlType returns
// Unknown(type) for them).
func Parse(raw string) (Parsed, error) {
	p, err := packageurl.FromString(raw)
	if err != nil {
		return Parsed{}, err
	}

	quals := p.Qualifiers.Map()

	return Parsed{
		Type:       strings.ToLower(p.Type),
		Namespace:  p.Namespace,
		Name:       p.Name,
		Version:    p.Version,
		Qualifiers: quals,
		Canonical:  p.ToString(),
	}, nil
}

// CanonicalID builds a canonical.CanonicalId from a parsed PURL, applying
// ecosystem-specific name normalization (see NormalizeName).
func (p Parsed) CanonicalID() canonical.CanonicalId {
	eco := canonical.EcosystemFromPurlType(p.Type)
	return canonical.CanonicalId{
		Ecosystem:  eco,
		Namespace:  strings.ToLower(p.Namespace),
		Name:       NormalizeName(eco, p.Name),
		Version:    canonical.Version{Raw: p.Version, Parsed: parseSemver(p.Version)},
		Qualifiers: p.Qualifiers,
	}
}

// NormalizeName applies the ecosystem-specific normalization rule used by
// matching tier T3: npm scope lowercasing plus trailing
// ".js" stripping, Python PEP-503 normalization (runs of
// "-_." collapse to a single "-", lowercased), Maven groupId:artifactId
// tokenization is left to the caller since it needs the namespace too.
// Every other ecosystem is lowercased only.
func NormalizeName(eco canonical.Ecosystem, name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	switch eco {
	case canonical.EcosystemNPM:
		return strings.TrimSuffix(lower, ".js")
	case canonical.EcosystemPyPI:
		return pep503Normalize(lower)
	default:
		return lower
	}
}

// pep503Normalize implements PEP 503's name normalization: runs of
// -, _, . collapse to a single hyphen.
func pep503Normalize(name string) string {
	var b strings.Builder
	lastWasSep := false
	for _, r := range name {
		if r == '-' || r == '_' || r == '.' {
			if !lastWasSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			lastWasSep = true
			continue
		}
		b.WriteRune(r)
		lastWasSep = false
	}
	return strings.Trim(b.String(), "-")
}

// MavenToken joins a Maven groupId:artifactId pair into the tokenized
// form used for T3 equality: lowercased, colon-joined.
func MavenToken(groupID, artifactID string) string {
	return strings.ToLower(groupID) + ":" + strings.ToLower(artifactID)
}

func parseSemver(raw string) canonical.SemVer {
	major, minor, patch, ok := splitSemver(raw)
	return canonical.SemVer{Major: major, Minor: minor, Patch: patch, Valid: ok}
}

// splitSemver is a permissive major.minor.patch splitter; a dedicated
// semver library (Masterminds/semver) is used wherever a validated
// semver.Version is needed (matching's version_affinity, advisory range
// checks) — this helper only feeds CanonicalId's informational triple and
// tolerates forms like "v1.2.3-beta" that semver.NewVersion would also
// accept, without pulling the parse failure into PURL parsing.
func splitSemver(raw string) (major, minor, patch int, ok bool) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "v")
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		s = s[:i]
	}
	parts := strings.SplitN(s, ".", 3)
	vals := [3]int{}
	for i, p := range parts {
		if i >= 3 {
			break
		}
		n, perr := atoiStrict(p)
		if perr != nil {
			return 0, 0, 0, false
		}
		vals[i] = n
	}
	if len(parts) == 0 {
		return 0, 0, 0, false
	}
	return vals[0], vals[1], vals[2], true
}

func atoiStrict(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, errEmptyComponent
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errEmptyComponent
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

var errEmptyComponent = emptyComponentError{}

type emptyComponentError struct{}

func (emptyComponentError) Error() string { return "purl: non-numeric semver component" }
