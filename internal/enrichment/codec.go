package enrichment

import (
	"encoding/json"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
)

// cachedVuln is the JSON shape stored as a cache.Cache string value,
// independent of canonical.Vulnerability's Go layout so the cache
// format doesn't silently change if the in-memory type grows fields.
type cachedVuln struct {
	ID          string  `json:"id"`
	Severity    string  `json:"severity"`
	CVSSVector  string  `json:"cvss_vector,omitempty"`
	CVSSScore   float64 `json:"cvss_score,omitempty"`
	FixedRange  string  `json:"fixed_range,omitempty"`
	Source      string  `json:"source"`
	AdvisoryURL string  `json:"advisory_url,omitempty"`
}

func encodeVulns(vulns []canonical.Vulnerability) (string, error) {
	out := make([]cachedVuln, len(vulns))
	for i, v := range vulns {
		out[i] = cachedVuln{
			ID:          v.ID,
			Severity:    v.Severity.String(),
			CVSSVector:  v.CVSSVector,
			CVSSScore:   v.CVSSScore,
			FixedRange:  v.FixedRange,
			Source:      string(v.Source),
			AdvisoryURL: v.AdvisoryURL,
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeVulns(raw string) ([]canonical.Vulnerability, error) {
	var in []cachedVuln
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, err
	}
	out := make([]canonical.Vulnerability, len(in))
	for i, v := range in {
		out[i] = canonical.Vulnerability{
			ID:          v.ID,
			Severity:    severityFromString(v.Severity),
			CVSSVector:  v.CVSSVector,
			CVSSScore:   v.CVSSScore,
			FixedRange:  v.FixedRange,
			Source:      canonical.VulnSource(v.Source),
			AdvisoryURL: v.AdvisoryURL,
		}
	}
	return out, nil
}

func severityFromString(s string) canonical.Severity {
	switch s {
	case "low":
		return canonical.SeverityLow
	case "medium":
		return canonical.SeverityMedium
	case "high":
		return canonical.SeverityHigh
	case "critical":
		return canonical.SeverityCritical
	case "none":
		return canonical.SeverityNone
	default:
		return canonical.SeverityUnknown
	}
}
