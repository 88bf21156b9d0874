package ops

import (
	"context"

	"github.com/hpungsan/ctx/internal/db"
)

// Reindex drops and rebuilds the shadow search index from the captures table.
// IndexAvailable is false when the rebuild failed; search then answers from
// the substring tier.
func Reindex(ctx context.Context, env *Env) *db.ReindexResult {
	res := env.Store.Reindex(ctx)
	env.Logger.Info("reindex", "available", res.IndexAvailable, "indexed", res.Indexed)
	return res
}
