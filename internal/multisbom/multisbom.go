// Package multisbom implements the three multi-document operations
// built on internal/diff: a 1:N baseline comparison, an N-step
// timeline, and an N×N symmetric matrix.
package multisbom

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
	"github.com/sbomdiff/sbomdiff/internal/diff"
)

// Named pairs a document with a caller-supplied label, used to identify
// results in DiffMulti/Timeline/Matrix output without re-deriving names
// from document metadata.
type Named struct {
	Label string
	Sbom  *canonical.NormalizedSbom
}

// BaselineResult is one target's diff against the shared baseline.
type BaselineResult struct {
	TargetLabel string
	Result      *diff.Result
	Err         error
}

// DiffMulti diffs every target against a single baseline, parallelized
// across targets with the same fan-out shape the matcher's shard phase
// uses (one goroutine per target joined by a WaitGroup, with no bound on
// their number; results are stored by target index).
func DiffMulti(ctx context.Context, baseline *canonical.NormalizedSbom, targets []Named, cfg diff.Config, logger *slog.Logger) []BaselineResult {
	results := make([]BaselineResult, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target Named) {
			defer wg.Done()
			r, err := diff.Run(ctx, baseline, target.Sbom, cfg, logger)
			results[i] = BaselineResult{TargetLabel: target.Label, Result: r, Err: err}
		}(i, target)
	}
	wg.Wait()
	return results
}

// TimelineStep is one consecutive-pair diff in a Timeline call.
type TimelineStep struct {
	FromLabel string
	ToLabel   string
	Result    *diff.Result
	Err       error
}

// TimelineResult is the ordered step list plus the cumulative drift
// metric: the running sum of absolute component-change counts across
// every step.
type TimelineResult struct {
	Steps          []TimelineStep
	CumulativeDrift int
}

// Timeline diffs consecutive pairs (s0,s1), (s1,s2), ... in sequence.
// Unlike DiffMulti/Matrix, steps are not parallelized: each step's
// cumulative drift is a running total over the prior step, so steps
// have a data dependency through CumulativeDrift even though each
// diff.Run call itself is independent.
func Timeline(ctx context.Context, sboms []Named, cfg diff.Config, logger *slog.Logger) (TimelineResult, error) {
	var tr TimelineResult
	for i := 0; i+1 < len(sboms); i++ {
		if err := ctx.Err(); err != nil {
			return tr, &canonical.DiffError{Kind: canonical.Cancelled, Message: "timeline cancelled", Err: err}
		}
		r, err := diff.Run(ctx, sboms[i].Sbom, sboms[i+1].Sbom, cfg, logger)
		step := TimelineStep{FromLabel: sboms[i].Label, ToLabel: sboms[i+1].Label, Result: r, Err: err}
		tr.Steps = append(tr.Steps, step)
		if err == nil {
			tr.CumulativeDrift += r.Summary.Added + r.Summary.Removed + r.Summary.Modified
		}
	}
	return tr, nil
}

// MatrixCell is one unordered pair's diff within a Matrix call.
type MatrixCell struct {
	ALabel string
	BLabel string
	Result *diff.Result
	Err    error
}

// Matrix diffs all N*(N-1)/2 unordered pairs, parallelized the same way
// as DiffMulti. The result is symmetric by construction: diff(a,b) and
// diff(b,a) are not both computed, since summary.total is invariant
// under the swap.
func Matrix(ctx context.Context, sboms []Named, cfg diff.Config, logger *slog.Logger) []MatrixCell {
	var pairs []struct{ i, j int }
	for i := 0; i < len(sboms); i++ {
		for j := i + 1; j < len(sboms); j++ {
			pairs = append(pairs, struct{ i, j int }{i, j})
		}
	}

	results := make([]MatrixCell, len(pairs))
	var wg sync.WaitGroup
	for k, p := range pairs {
		wg.Add(1)
		go func(k int, p struct{ i, j int }) {
			defer wg.Done()
			r, err := diff.Run(ctx, sboms[p.i].Sbom, sboms[p.j].Sbom, cfg, logger)
			results[k] = MatrixCell{ALabel: sboms[p.i].Label, BLabel: sboms[p.j].Label, Result: r, Err: err}
		}(k, p)
	}
	wg.Wait()
	return results
}

// CellKey renders a stable "a|b" key for a Matrix result, useful for
// building a lookup table keyed by label pair.
func CellKey(a, b string) string {
	return fmt.Sprintf("%s|%s", a, b)
}
