package ops

import (
	"context"

	"github.com/hpungsan/ctx/internal/capture"
	"github.com/hpungsan/ctx/internal/hashing"
)

// LookupInput contains parameters for the Lookup operation.
type LookupInput struct {
	Path  string // required
	Limit int    // default: 20, max: 200
}

// LookupOutput contains the result of the Lookup operation.
type LookupOutput struct {
	FileHash  string            `json:"file_hash"`
	Path      string            `json:"path"`
	Records   []*capture.Record `json:"records"`
	Count     int               `json:"count"`
	Refreshed int64             `json:"refreshed"`
}

// Lookup hashes the file at Path and returns every capture of that content.
// Captures recorded under another path are pointed at Path first, since the
// file was just observed there.
func Lookup(ctx context.Context, env *Env, input LookupInput) (*LookupOutput, error) {
	path, err := ResolveFilePath(input.Path, env.Config)
	if err != nil {
		return nil, err
	}
	limit := clampLimit(input.Limit)

	fileHash, err := hashing.SHA256File(path)
	if err != nil {
		return nil, err
	}

	records, err := env.Store.LookupByHash(ctx, fileHash, limit)
	if err != nil {
		return nil, err
	}

	var refreshed int64
	if needsRefresh(records, path) {
		refreshed, err = env.Store.RefreshObservedLocation(ctx, fileHash, path)
		if err != nil {
			return nil, err
		}
		records, err = env.Store.LookupByHash(ctx, fileHash, limit)
		if err != nil {
			return nil, err
		}
	}

	return &LookupOutput{
		FileHash:  fileHash,
		Path:      path,
		Records:   records,
		Count:     len(records),
		Refreshed: refreshed,
	}, nil
}

func needsRefresh(records []*capture.Record, path string) bool {
	for _, r := range records {
		if r.FilePathAtCapture != path {
			return true
		}
	}
	return false
}
