package diff

import (
	"sort"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
)

// diffLicenses implements phase 5: per-component license symmetric
// difference over matched pairs, plus a document-level frequency delta
// over every component (matched, added, and removed alike).
func diffLicenses(changes []ComponentChange) LicenseDiff {
	var ld LicenseDiff
	ld.FrequencyDeltaOld = make(map[string]int)
	ld.FrequencyDeltaNew = make(map[string]int)

	oldFreq := make(map[string]int)
	newFreq := make(map[string]int)

	for _, c := range changes {
		if c.Old != nil {
			for _, l := range c.Old.Licenses {
				oldFreq[l.Expression]++
			}
		}
		if c.New != nil {
			for _, l := range c.New.Licenses {
				newFreq[l.Expression]++
			}
		}
		if c.Old == nil || c.New == nil {
			continue // additions/removals are not per-component license deltas
		}
		oldSet := licenseSet(c.Old.Licenses)
		newSet := licenseSet(c.New.Licenses)
		for expr := range oldSet {
			if !newSet[expr] {
				ld.Changes = append(ld.Changes, LicenseChange{Component: c.Old.ID, License: canonical.License{Expression: expr}, Kind: LicenseRemoved})
			}
		}
		for expr := range newSet {
			if !oldSet[expr] {
				ld.Changes = append(ld.Changes, LicenseChange{Component: c.New.ID, License: canonical.License{Expression: expr}, Kind: LicenseAdded})
			}
		}
	}
	sort.Slice(ld.Changes, func(i, j int) bool {
		if ld.Changes[i].Component.String() != ld.Changes[j].Component.String() {
			return ld.Changes[i].Component.String() < ld.Changes[j].Component.String()
		}
		return ld.Changes[i].License.Expression < ld.Changes[j].License.Expression
	})

	for expr, n := range oldFreq {
		if newFreq[expr] < n {
			ld.FrequencyDeltaOld[expr] = n - newFreq[expr]
		}
	}
	for expr, n := range newFreq {
		if oldFreq[expr] < n {
			ld.FrequencyDeltaNew[expr] = n - oldFreq[expr]
		}
	}
	return ld
}

func licenseSet(ls []canonical.License) map[string]bool {
	out := make(map[string]bool, len(ls))
	for _, l := range ls {
		out[l.Expression] = true
	}
	return out
}
