package ops

import (
	"context"
	"time"

	"github.com/hpungsan/ctx/internal/capture"
	"github.com/hpungsan/ctx/internal/db"
)

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Query       string   // empty returns the most recent captures
	Limit       int      // default: 20, max: 200
	NoReconcile bool     // skip relocating captures whose file has moved
	ScanRoots   []string // overrides configured scan roots
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Query      string            `json:"query"`
	Backend    db.Backend        `json:"backend"`
	Results    []*capture.Record `json:"results"`
	Count      int               `json:"count"`
	Reconciled int64             `json:"reconciled"`
}

// Search runs the tiered store search. Unless disabled, every result whose
// recorded path is gone is looked for under the scan roots; when any is
// found its captures are repointed and the search runs again.
func Search(ctx context.Context, env *Env, input SearchInput) (*SearchOutput, error) {
	limit := clampLimit(input.Limit)

	res, err := env.Store.Search(ctx, input.Query, limit)
	if err != nil {
		return nil, err
	}

	var reconciled int64
	if !input.NoReconcile {
		reconciled, err = reconcileStale(ctx, env, res.Records, input.ScanRoots)
		if err != nil {
			return nil, err
		}
		if reconciled > 0 {
			res, err = env.Store.Search(ctx, input.Query, limit)
			if err != nil {
				return nil, err
			}
		}
	}

	return &SearchOutput{
		Query:      input.Query,
		Backend:    res.Backend,
		Results:    res.Records,
		Count:      len(res.Records),
		Reconciled: reconciled,
	}, nil
}

// reconcileStale relocates the files behind stale records. Each hash is
// walked at most once per call. Returns the number of stale records
// repointed; live records sharing a hash are repointed too but not counted.
func reconcileStale(ctx context.Context, env *Env, records []*capture.Record, explicitRoots []string) (int64, error) {
	var hashes []*capture.Record
	stale := make(map[string]int64)
	for _, r := range records {
		if !isStale(r.FilePathAtCapture) {
			continue
		}
		if stale[r.FileHash] == 0 {
			hashes = append(hashes, r)
		}
		stale[r.FileHash]++
	}
	if len(hashes) == 0 {
		return 0, nil
	}

	roots := env.Config.ResolveScanRoots(explicitRoots)
	var total int64
	for _, r := range hashes {
		start := time.Now()
		found := env.Locator.Locate(r.FileHash, r.FileSizeBytes, roots)
		env.Logger.Debug("reconcile walk",
			"hash", r.FileHash,
			"stop", found.Stop,
			"hashed", found.Hashed,
			"elapsed", time.Since(start),
		)
		if !found.Found {
			continue
		}

		changed, err := env.Store.RefreshObservedLocation(ctx, r.FileHash, found.Path)
		if err != nil {
			return total, err
		}
		total += min(changed, stale[r.FileHash])
	}
	return total, nil
}
