// Package canonical defines the in-memory representation every SBOM
// dialect is collapsed into: CanonicalId, Component, DependencyEdge,
// Vulnerability, License and NormalizedSbom.
package canonical

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Ecosystem tags the package-manager convention a component's name and
// version are normalized under. The set is closed except for Unknown,
// which carries the original dialect-supplied type string.
type Ecosystem struct {
	name    string
	unknown string
}

// Known ecosystems. Equality is by value, so these may be compared
// directly with ==.
var (
	EcosystemNPM      = Ecosystem{name: "npm"}
	EcosystemPyPI     = Ecosystem{name: "pypi"}
	EcosystemMaven    = Ecosystem{name: "maven"}
	EcosystemGolang   = Ecosystem{name: "golang"}
	EcosystemCargo    = Ecosystem{name: "cargo"}
	EcosystemNuGet    = Ecosystem{name: "nuget"}
	EcosystemGem      = Ecosystem{name: "gem"}
	EcosystemRPM      = Ecosystem{name: "rpm"}
	EcosystemDeb      = Ecosystem{name: "deb"}
	EcosystemApk      = Ecosystem{name: "apk"}
	EcosystemOCI      = Ecosystem{name: "oci"}
	EcosystemGeneric  = Ecosystem{name: "generic"}
)

// UnknownEcosystem returns the Unknown(name) variant for a dialect type
// string that does not map to a known ecosystem.
func UnknownEcosystem(name string) Ecosystem {
	return Ecosystem{name: "unknown", unknown: strings.ToLower(strings.TrimSpace(name))}
}

// IsUnknown reports whether e is an Unknown(name) variant.
func (e Ecosystem) IsUnknown() bool {
	return e.name == "unknown"
}

// String renders the ecosystem as "npm" or "unknown(name)".
func (e Ecosystem) String() string {
	if e.IsUnknown() {
		if e.unknown == "" {
			return "unknown"
		}
		return fmt.Sprintf("unknown(%s)", e.unknown)
	}
	return e.name
}

// MarshalJSON renders an Ecosystem as its String() form ("npm",
// "unknown(foo)"), so JSON API responses carry a readable value instead
// of the unexported-field struct's empty object.
func (e Ecosystem) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// UnmarshalJSON parses an Ecosystem from its String() form.
func (e *Ecosystem) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.HasPrefix(s, "unknown(") && strings.HasSuffix(s, ")") {
		*e = UnknownEcosystem(strings.TrimSuffix(strings.TrimPrefix(s, "unknown("), ")"))
		return nil
	}
	if eco, ok := ecosystemByPurlType[s]; ok {
		*e = eco
		return nil
	}
	*e = UnknownEcosystem(s)
	return nil
}

var ecosystemByPurlType = map[string]Ecosystem{
	"npm":      EcosystemNPM,
	"pypi":     EcosystemPyPI,
	"maven":    EcosystemMaven,
	"golang":   EcosystemGolang,
	"cargo":    EcosystemCargo,
	"nuget":    EcosystemNuGet,
	"gem":      EcosystemGem,
	"rpm":      EcosystemRPM,
	"deb":      EcosystemDeb,
	"apk":      EcosystemApk,
	"oci":      EcosystemOCI,
	"generic":  EcosystemGeneric,
}

// EcosystemFromPurlType maps a PURL type string (lowercased) to a known
// Ecosystem, or Unknown(type) if it has no mapping.
func EcosystemFromPurlType(purlType string) Ecosystem {
	t := strings.ToLower(strings.TrimSpace(purlType))
	if eco, ok := ecosystemByPurlType[t]; ok {
		return eco
	}
	return UnknownEcosystem(t)
}

// SemVer is the parsed (major, minor, patch) triple of a version string,
// when it could be parsed as semver. Opaque otherwise.
type SemVer struct {
	Major, Minor, Patch int
	Valid               bool
}

// Version carries both the opaque version string a dialect supplied and,
// when parseable, its semver triple.
type Version struct {
	Raw    string
	Parsed SemVer
}

// CanonicalId is the stable identity of a component across dialects. Two
// CanonicalIds are equal iff every normalized field is equal.
type CanonicalId struct {
	Ecosystem  Ecosystem
	Namespace  string // lowercased; empty if not applicable
	Name       string // lowercased per ecosystem rules
	Version    Version
	Qualifiers map[string]string
}

// HasVersion reports whether the id carries a version.
func (id CanonicalId) HasVersion() bool {
	return id.Version.Raw != ""
}

// Equal reports whether id and other are the same canonical identity.
func (id CanonicalId) Equal(other CanonicalId) bool {
	if id.Ecosystem != other.Ecosystem {
		return false
	}
	if id.Namespace != other.Namespace || id.Name != other.Name {
		return false
	}
	if id.Version.Raw != other.Version.Raw {
		return false
	}
	if len(id.Qualifiers) != len(other.Qualifiers) {
		return false
	}
	for k, v := range id.Qualifiers {
		if other.Qualifiers[k] != v {
			return false
		}
	}
	return true
}

// Less implements the lexicographic ordering on (ecosystem, namespace,
// name, version) specified for CanonicalId.
func (id CanonicalId) Less(other CanonicalId) bool {
	if id.Ecosystem.String() != other.Ecosystem.String() {
		return id.Ecosystem.String() < other.Ecosystem.String()
	}
	if id.Namespace != other.Namespace {
		return id.Namespace < other.Namespace
	}
	if id.Name != other.Name {
		return id.Name < other.Name
	}
	return id.Version.Raw < other.Version.Raw
}

// String renders a human-readable identity, mainly for log lines and
// explanation records.
func (id CanonicalId) String() string {
	var b strings.Builder
	b.WriteString(id.Ecosystem.String())
	b.WriteByte(':')
	if id.Namespace != "" {
		b.WriteString(id.Namespace)
		b.WriteByte('/')
	}
	b.WriteString(id.Name)
	if id.HasVersion() {
		b.WriteByte('@')
		b.WriteString(id.Version.Raw)
	}
	return b.String()
}
