package diff

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
	"github.com/sbomdiff/sbomdiff/internal/match"
)

// Run computes the semantic diff between old and newer: it aligns
// their components via internal/match, then runs phases 3-7 over the
// alignment. Phase order and the fast path are exactly as documented;
// the cancellation token is checked between phases, never mid-phase.
func Run(ctx context.Context, old, newer *canonical.NormalizedSbom, cfg Config, logger *slog.Logger) (*Result, error) {
	cfg = cfg.normalized()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	if old.ContentHash() == newer.ContentHash() {
		r := Empty(old)
		r.ID = uuid.NewString()
		return &r, nil
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	exactPairs, residualOld, residualNew := exactAlign(old.Components(), newer.Components())

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	matchCfg := cfg.matchConfig()
	if len(residualOld)+len(residualNew) > 50 {
		matchCfg.Shards = shardCountFor(matchCfg.Shards, len(residualOld))
	}
	ms, err := match.MatchComponents(residualOld, residualNew, matchCfg)
	if err != nil {
		return nil, &canonical.DiffError{Kind: canonical.Internal, Message: "fuzzy alignment failed", Err: err}
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	allPairs := append(append([]match.Pair(nil), exactPairs...), ms.Pairs...)
	changes := classify(allPairs)
	changes = append(changes, addedChanges(ms.UnmatchedB)...)
	changes = append(changes, removedChanges(ms.UnmatchedA)...)

	result := &Result{ID: uuid.NewString(), ComponentChanges: changes}

	idMap := make(map[string]canonical.CanonicalId, len(changes))
	for _, c := range changes {
		if c.Old != nil && c.New != nil {
			idMap[c.Old.ID.String()] = c.New.ID
		}
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	if cfg.GraphDiff {
		gd := diffGraphs(old, newer, idMap)
		if gd.CycleOverflow {
			logger.Warn("graph diff exceeded traversal bound, falling back to edge-only diff")
			result.Warnings = append(result.Warnings, "graph_diff_cycle_overflow")
		}
		result.Graph = gd
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	result.Licenses = diffLicenses(changes)

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	result.Vulns = diffVulns(changes)

	deriveSummary(result)
	result.Score = compositeScore(result, len(old.Edges()), len(newer.Edges()), cfg.ScoreWeights)

	return result, nil
}

func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return &canonical.DiffError{Kind: canonical.Cancelled, Message: "diff cancelled", Err: ctx.Err()}
	default:
		return nil
	}
}

// shardCountFor picks a shard count for the residual match: the
// caller's explicit choice if above 1, else one shard per 50 residual
// old components (at least 1). The result is not capped.
func shardCountFor(configured, residualOld int) int {
	if configured > 1 {
		return configured
	}
	n := residualOld / 50
	if n < 1 {
		n = 1
	}
	return n
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
