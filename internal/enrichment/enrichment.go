// Package enrichment provides a vulnerability/EOL enrichment adapter
// over internal/canonical components: it performs lookups against an
// external source and appends records, nothing more.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sbomdiff/sbomdiff/internal/cache"
	"github.com/sbomdiff/sbomdiff/internal/canonical"
)

// Source is a vulnerability data source. OSVClient is the concrete
// default; the interface exists so a different backend (or a stub, in
// tests) can stand in without touching the adapter.
type Source interface {
	// Query returns every known vulnerability for purl. An empty slice
	// with a nil error means "queried successfully, nothing found."
	Query(ctx context.Context, purl string) ([]canonical.Vulnerability, error)
}

// Config configures a single Enrich call.
type Config struct {
	// Parallelism bounds the number of concurrent lookups. <= 0 means 1.
	Parallelism int
	// Cache, if non-nil, is consulted before every Source.Query call and
	// populated with its JSON-encoded result afterward.
	Cache cache.Cache
	// CacheTTL is the TTL passed to Cache.SetWithTTL.
	CacheTTL time.Duration
	// Logger receives per-lookup failures; defaults to a discard logger.
	Logger *slog.Logger
}

// Stats summarizes one Enrich call, returned instead of erroring on a
// per-component lookup failure: EnrichmentUnavailable is non-fatal.
type Stats struct {
	Queried   int
	Found     int
	CacheHits int
	Errors    int
	Warnings  []string
}

// Adapter enriches a normalized document with vulnerability/EOL data.
// Implementations must be idempotent (re-running Enrich on an
// already-enriched document never duplicates records) and append-only
// (existing in-band vulnerabilities are never removed or edited).
type Adapter interface {
	Enrich(ctx context.Context, doc *canonical.NormalizedSbom, cfg Config) (Stats, error)
}

// OSVAdapter is the default Adapter, backed by a Source (OSVClient in
// production) and an optional cache.Cache.
type OSVAdapter struct {
	Source Source
}

var _ Adapter = (*OSVAdapter)(nil)

// NewOSVAdapter builds an OSVAdapter over src.
func NewOSVAdapter(src Source) *OSVAdapter {
	return &OSVAdapter{Source: src}
}

type lookupJob struct {
	component *canonical.Component
	purl      string
}

// Enrich queries a.Source for every component with a non-empty Purl,
// merges newly found vulnerabilities into each component's Vulns list
// (skipping ids already present, so repeated calls are idempotent), and
// recomputes doc's content hash before returning. Per-component lookup
// failures are recorded in Stats and logged, never returned as an
// error; a returned error means the call itself could not proceed
// (e.g. a nil Source).
func (a *OSVAdapter) Enrich(ctx context.Context, doc *canonical.NormalizedSbom, cfg Config) (Stats, error) {
	if a.Source == nil {
		return Stats{}, errors.New("enrichment: nil Source")
	}

	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	components := doc.Components()
	jobs := make(chan lookupJob, len(components))
	var (
		mu    sync.Mutex
		stats Stats
	)

	var wg sync.WaitGroup
	for range parallelism {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				vulns, cacheHit, err := a.lookup(ctx, j.purl, cfg)

				mu.Lock()
				stats.Queried++
				if cacheHit {
					stats.CacheHits++
				}
				mu.Unlock()

				if err != nil {
					logger.ErrorContext(ctx, "enrichment lookup failed",
						"purl", j.purl, "id", j.component.ID.String(), "error", err)
					mu.Lock()
					stats.Errors++
					stats.Warnings = append(stats.Warnings,
						fmt.Sprintf("EnrichmentUnavailable: %s: %v", j.purl, err))
					mu.Unlock()
					continue
				}

				if len(vulns) == 0 {
					continue
				}
				mu.Lock()
				if mergeVulns(j.component, vulns) {
					stats.Found += len(vulns)
				}
				mu.Unlock()
			}
		}()
	}

	for i := range components {
		c := components[i]
		if c.Purl == "" {
			continue
		}
		jobs <- lookupJob{component: c, purl: c.Purl}
	}
	close(jobs)
	wg.Wait()

	doc.Rehash()
	return stats, nil
}

// lookup consults cfg.Cache before calling a.Source.Query, and writes
// the result back into the cache on a miss.
func (a *OSVAdapter) lookup(ctx context.Context, purl string, cfg Config) (vulns []canonical.Vulnerability, cacheHit bool, err error) {
	if cfg.Cache != nil {
		if raw, getErr := cfg.Cache.Get(purl); getErr == nil {
			decoded, decodeErr := decodeVulns(raw)
			if decodeErr == nil {
				return decoded, true, nil
			}
		} else if !errors.Is(getErr, cache.ErrCacheMiss) {
			return nil, false, fmt.Errorf("cache lookup: %w", getErr)
		}
	}

	vulns, err = a.Source.Query(ctx, purl)
	if err != nil {
		return nil, false, err
	}

	if cfg.Cache != nil {
		if encoded, encErr := encodeVulns(vulns); encErr == nil {
			_ = cfg.Cache.SetWithTTL(purl, encoded, cfg.CacheTTL)
		}
	}
	return vulns, false, nil
}

// mergeVulns appends vulns not already present (by ID) to c.Vulns,
// keeping Enrich idempotent across repeated calls. Returns true if any
// new record was appended.
func mergeVulns(c *canonical.Component, vulns []canonical.Vulnerability) bool {
	existing := make(map[string]bool, len(c.Vulns))
	for _, v := range c.Vulns {
		existing[v.ID] = true
	}
	added := false
	for _, v := range vulns {
		if existing[v.ID] {
			continue
		}
		c.Vulns = append(c.Vulns, v)
		existing[v.ID] = true
		added = true
	}
	return added
}
