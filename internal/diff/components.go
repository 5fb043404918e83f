package diff

import (
	"sort"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
	"github.com/sbomdiff/sbomdiff/internal/match"
)

// exactAlign implements phase 1: pairs every (a,b) with identical
// CanonicalId at score 1.0, consuming both sides before fuzzy matching
// runs.
func exactAlign(oldComponents, newComponents []*canonical.Component) (pairs []match.Pair, residualOld, residualNew []*canonical.Component) {
	byID := make(map[string]*canonical.Component, len(newComponents))
	for _, c := range newComponents {
		byID[c.ID.String()] = c
	}
	claimed := make(map[string]bool, len(newComponents))

	for _, o := range oldComponents {
		if n, ok := byID[o.ID.String()]; ok {
			pairs = append(pairs, match.Pair{A: o, B: n, Score: 1.0, Tier: match.TierExactPurl})
			claimed[n.ID.String()] = true
			continue
		}
		residualOld = append(residualOld, o)
	}
	for _, n := range newComponents {
		if !claimed[n.ID.String()] {
			residualNew = append(residualNew, n)
		}
	}
	return pairs, residualOld, residualNew
}

// classify implements phase 3: a paired component is Modified if any
// of its tracked fields differ, Unchanged otherwise.
func classify(pairs []match.Pair) []ComponentChange {
	changes := make([]ComponentChange, 0, len(pairs))
	for _, p := range pairs {
		fields := modifiedFields(p.A, p.B)
		kind := ChangeUnchanged
		if len(fields) > 0 {
			kind = ChangeModified
		}
		changes = append(changes, ComponentChange{
			Kind:          kind,
			Old:           p.A,
			New:           p.B,
			Tier:          p.Tier,
			Explanation:   p.Explanation,
			FieldsChanged: fields,
		})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Old.ID.Less(changes[j].Old.ID) })
	return changes
}

func modifiedFields(a, b *canonical.Component) []string {
	var fields []string
	if a.ID.Version.Raw != b.ID.Version.Raw {
		fields = append(fields, "version")
	}
	if !licensesEqual(a.Licenses, b.Licenses) {
		fields = append(fields, "licenses")
	}
	if !hashesEqual(a.Hashes, b.Hashes) {
		fields = append(fields, "hashes")
	}
	if a.Supplier != b.Supplier {
		fields = append(fields, "supplier")
	}
	if !vulnIDsEqual(a.Vulns, b.Vulns) {
		fields = append(fields, "vulnerabilities")
	}
	return fields
}

func licensesEqual(a, b []canonical.License) bool {
	return setEqual(licenseKeys(a), licenseKeys(b))
}

func licenseKeys(ls []canonical.License) []string {
	keys := make([]string, len(ls))
	for i, l := range ls {
		keys[i] = l.Expression
	}
	return keys
}

func hashesEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func vulnIDsEqual(a, b []canonical.Vulnerability) bool {
	ka := make([]string, len(a))
	for i, v := range a {
		ka[i] = v.ID
	}
	kb := make([]string, len(b))
	for i, v := range b {
		kb[i] = v.ID
	}
	return setEqual(ka, kb)
}

func setEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func addedChanges(cs []*canonical.Component) []ComponentChange {
	out := make([]ComponentChange, 0, len(cs))
	for _, c := range cs {
		out = append(out, ComponentChange{Kind: ChangeAdded, New: c})
	}
	return out
}

func removedChanges(cs []*canonical.Component) []ComponentChange {
	out := make([]ComponentChange, 0, len(cs))
	for _, c := range cs {
		out = append(out, ComponentChange{Kind: ChangeRemoved, Old: c})
	}
	return out
}
