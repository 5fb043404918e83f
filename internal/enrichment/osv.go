package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
	"github.com/sbomdiff/sbomdiff/internal/version"
)

const (
	// osvBaseURL is the base URL for the OSV API.
	//
	// See https://google.github.io/osv.dev/api/
	osvBaseURL = "https://api.osv.dev"
	// osvBatchPath is the batch package-query endpoint.
	osvBatchPath = "/v1/querybatch"
	// osvVulnPathFmt fetches a single vulnerability record by id.
	osvVulnPathFmt = "/v1/vulns/%s"
	// defaultHTTPTimeout bounds a single OSV.dev round trip.
	defaultHTTPTimeout = 30 * time.Second
)

// ErrVulnNotFound is wrapped into the error for an HTTP 404 response. A
// query that finds no vulnerabilities returns no error.
var ErrVulnNotFound = errors.New("no vulnerabilities found")

// OSVClient queries the OSV.dev batch API over an HTTP client with a
// timeout and a User-Agent header. It is deliberately thin: it
// performs the HTTP round trips and maps responses into
// canonical.Vulnerability, nothing more.
type OSVClient struct {
	baseURL string
	client  *http.Client
}

var _ Source = (*OSVClient)(nil)

// OSVClientOptions configure a new OSVClient.
type OSVClientOptions struct {
	// BaseURL overrides the public OSV API, for tests.
	BaseURL string
	// Client overrides the HTTP client; defaults to a client with a
	// bounded timeout.
	Client *http.Client
}

// NewOSVClient creates a new OSVClient.
func NewOSVClient(opts OSVClientOptions) *OSVClient {
	baseURL := osvBaseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &OSVClient{baseURL: baseURL, client: client}
}

type osvBatchQuery struct {
	Queries []osvPackageQuery `json:"queries"`
}

type osvPackageQuery struct {
	Package osvPackage `json:"package"`
}

type osvPackage struct {
	Purl string `json:"purl"`
}

type osvBatchResponse struct {
	Results []osvBatchResult `json:"results"`
}

type osvBatchResult struct {
	Vulns []osvVulnRef `json:"vulns"`
}

type osvVulnRef struct {
	ID string `json:"id"`
}

type osvVulnRecord struct {
	ID       string          `json:"id"`
	Severity []osvSeverity   `json:"severity"`
	Affected []osvAffected   `json:"affected"`
	Aliases  []string        `json:"aliases"`
}

type osvSeverity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

type osvAffected struct {
	Ranges []osvRange `json:"ranges"`
}

type osvRange struct {
	Type   string     `json:"type"`
	Events []osvEvent `json:"events"`
}

type osvEvent struct {
	Introduced string `json:"introduced,omitempty"`
	Fixed      string `json:"fixed,omitempty"`
}

// Query performs a one-package OSV batch query, then resolves each
// matched vuln id's full record for severity and fixed-range info.
func (c *OSVClient) Query(ctx context.Context, purl string) ([]canonical.Vulnerability, error) {
	ids, err := c.queryBatch(ctx, purl)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	out := make([]canonical.Vulnerability, 0, len(ids))
	for _, id := range ids {
		v, err := c.fetchVuln(ctx, id)
		if err != nil {
			// One bad record doesn't invalidate the rest of the batch.
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *OSVClient) queryBatch(ctx context.Context, purl string) ([]string, error) {
	body, err := json.Marshal(osvBatchQuery{Queries: []osvPackageQuery{{Package: osvPackage{Purl: purl}}}})
	if err != nil {
		return nil, fmt.Errorf("encode OSV batch query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+osvBatchPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create OSV batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", fmt.Sprintf("sbomdiff/%s", version.Get()))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OSV batch request: %w", err)
	}
	defer resp.Body.Close()

	if err := statusErr(resp.StatusCode); err != nil {
		return nil, err
	}

	var decoded osvBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode OSV batch response: %w", err)
	}
	if len(decoded.Results) == 0 || len(decoded.Results[0].Vulns) == 0 {
		return nil, nil
	}

	ids := make([]string, len(decoded.Results[0].Vulns))
	for i, v := range decoded.Results[0].Vulns {
		ids[i] = v.ID
	}
	return ids, nil
}

func (c *OSVClient) fetchVuln(ctx context.Context, id string) (canonical.Vulnerability, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+fmt.Sprintf(osvVulnPathFmt, id), nil)
	if err != nil {
		return canonical.Vulnerability{}, err
	}
	req.Header.Set("User-Agent", fmt.Sprintf("sbomdiff/%s", version.Get()))

	resp, err := c.client.Do(req)
	if err != nil {
		return canonical.Vulnerability{}, err
	}
	defer resp.Body.Close()

	if err := statusErr(resp.StatusCode); err != nil {
		return canonical.Vulnerability{}, err
	}

	var rec osvVulnRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return canonical.Vulnerability{}, fmt.Errorf("decode OSV vuln record %s: %w", id, err)
	}
	return toVulnerability(rec), nil
}

func toVulnerability(rec osvVulnRecord) canonical.Vulnerability {
	v := canonical.Vulnerability{
		ID:       rec.ID,
		Source:   canonical.VulnSourceOSV,
		Severity: canonical.SeverityUnknown,
	}
	for _, s := range rec.Severity {
		if s.Type == "CVSS_V3" || s.Type == "CVSS_V4" {
			v.CVSSVector = s.Score
			break
		}
	}
	v.FixedRange = fixedRangeFrom(rec.Affected)
	return v
}

// fixedRangeFrom derives a "<fixedVersion" constraint string from the
// first SEMVER range carrying a fixed event, matching the FixedRange
// shape internal/diff's vulnerability-transition phase already expects.
func fixedRangeFrom(affected []osvAffected) string {
	for _, a := range affected {
		for _, r := range a.Ranges {
			if r.Type != "SEMVER" {
				continue
			}
			for _, e := range r.Events {
				if e.Fixed != "" {
					return "<" + e.Fixed
				}
			}
		}
	}
	return ""
}

func statusErr(code int) error {
	switch code {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: HTTP 404", ErrVulnNotFound)
	case http.StatusTooManyRequests:
		return errors.New("rate limited by OSV API: HTTP 429")
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("OSV API unavailable: HTTP %d", code)
	default:
		return fmt.Errorf("OSV API error: HTTP %d", code)
	}
}
