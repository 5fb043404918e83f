package diff

import (
	"sort"

	"github.com/Masterminds/semver"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
)

// diffVulns implements phase 6: vulnerability set symmetric difference
// keyed on vuln.id, with transitions classified when the component's
// version changed between old and new. A vuln listed on only one side of
// an upgraded pair is reported as ResolvedByUpgrade (old side only) or
// NewlyIntroduced (new side only) when its affected range says so, and
// as a plain removal or addition otherwise.
func diffVulns(changes []ComponentChange) VulnDiff {
	var vd VulnDiff

	for _, c := range changes {
		switch {
		case c.Old == nil: // added component: every vuln is a pure addition
			for _, v := range c.New.Vulns {
				vd.Changes = append(vd.Changes, VulnChange{Component: c.New.ID, VulnID: v.ID, Added: true})
			}
		case c.New == nil: // removed component: every vuln is a pure removal
			for _, v := range c.Old.Vulns {
				vd.Changes = append(vd.Changes, VulnChange{Component: c.Old.ID, VulnID: v.ID, Added: false})
			}
		default:
			vd.Changes = append(vd.Changes, pairedVulnChanges(c)...)
		}
	}

	sort.Slice(vd.Changes, func(i, j int) bool {
		if vd.Changes[i].Component.String() != vd.Changes[j].Component.String() {
			return vd.Changes[i].Component.String() < vd.Changes[j].Component.String()
		}
		return vd.Changes[i].VulnID < vd.Changes[j].VulnID
	})
	return vd
}

func pairedVulnChanges(c ComponentChange) []VulnChange {
	versionChanged := c.Old.ID.Version.Raw != c.New.ID.Version.Raw

	oldByID := vulnsByID(c.Old.Vulns)
	newByID := vulnsByID(c.New.Vulns)

	var out []VulnChange
	for id, ov := range oldByID {
		nv, inNew := newByID[id]
		switch {
		case !inNew && versionChanged && classifyTransition(ov, ov, c.Old.ID.Version.Raw, c.New.ID.Version.Raw) == VulnResolvedByUpgrade:
			out = append(out, VulnChange{Component: c.New.ID, VulnID: id, Transition: VulnResolvedByUpgrade})
		case !inNew:
			out = append(out, VulnChange{Component: c.Old.ID, VulnID: id, Added: false})
		case versionChanged:
			out = append(out, VulnChange{Component: c.New.ID, VulnID: id, Transition: classifyTransition(ov, nv, c.Old.ID.Version.Raw, c.New.ID.Version.Raw)})
		}
	}
	for id, nv := range newByID {
		if _, inOld := oldByID[id]; inOld {
			continue
		}
		if versionChanged && classifyTransition(nv, nv, c.Old.ID.Version.Raw, c.New.ID.Version.Raw) == VulnNewlyIntroduced {
			out = append(out, VulnChange{Component: c.New.ID, VulnID: id, Transition: VulnNewlyIntroduced})
			continue
		}
		out = append(out, VulnChange{Component: c.New.ID, VulnID: id, Added: true})
	}
	return out
}

func vulnsByID(vs []canonical.Vulnerability) map[string]canonical.Vulnerability {
	out := make(map[string]canonical.Vulnerability, len(vs))
	for _, v := range vs {
		out[v.ID] = v
	}
	return out
}

// classifyTransition decides a vulnerability's transition kind:
// ResolvedByUpgrade if the old version satisfies the advisory's
// affected range and the new one does not; NewlyIntroduced in the
// reverse direction; Persisting otherwise (including when FixedRange
// is empty and neither direction can be determined).
func classifyTransition(old, newVuln canonical.Vulnerability, oldVersion, newVersion string) VulnTransitionKind {
	affectedRange := old.FixedRange
	if affectedRange == "" {
		affectedRange = newVuln.FixedRange
	}
	if affectedRange == "" {
		return VulnPersisting
	}

	oldAffected, oldOK := satisfiesRange(oldVersion, affectedRange)
	newAffected, newOK := satisfiesRange(newVersion, affectedRange)
	if !oldOK || !newOK {
		return VulnPersisting
	}

	switch {
	case oldAffected && !newAffected:
		return VulnResolvedByUpgrade
	case !oldAffected && newAffected:
		return VulnNewlyIntroduced
	default:
		return VulnPersisting
	}
}

func satisfiesRange(version, rangeExpr string) (satisfies, parsed bool) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, false
	}
	c, err := semver.NewConstraint(rangeExpr)
	if err != nil {
		return false, false
	}
	return c.Check(v), true
}
