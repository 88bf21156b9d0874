package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/ctx/internal/capture"
)

// Backend names the search tier that produced a result set.
type Backend string

const (
	BackendRecent    Backend = "recent"
	BackendIndexed   Backend = "indexed"
	BackendSubstring Backend = "substring"
)

// SearchResult is an ordered result set and the tier it came from.
type SearchResult struct {
	Records []*capture.Record
	Backend Backend
}

// ReindexResult reports the state of the shadow index after a rebuild.
type ReindexResult struct {
	IndexAvailable bool `json:"index_available"`
	Indexed        int  `json:"indexed"`
}

// Store is the capture store: the authoritative captures table plus its
// shadow full-text index.
type Store struct {
	db     *sql.DB
	index  *ShadowIndex
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewStore wraps an initialized database. The shadow index is checked and,
// if missing or out of shape, rebuilt; a failed rebuild leaves it disabled.
func NewStore(ctx context.Context, database *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{
		db:      database,
		index:   NewShadowIndex(database, logger),
		logger:  logger,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	s.index.Ensure(ctx)
	return s
}

// Search runs the tiered search: an empty query returns the newest captures;
// otherwise the shadow index is tried, and a substring scan answers when the
// index is unusable or matches nothing.
func (s *Store) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	query = strings.TrimSpace(query)

	if query == "" {
		records, err := s.Recent(ctx, limit)
		if err != nil {
			return nil, err
		}
		return &SearchResult{Records: records, Backend: BackendRecent}, nil
	}

	if records, status := s.index.TrySearch(ctx, query, limit); status == IndexReady && len(records) > 0 {
		return &SearchResult{Records: records, Backend: BackendIndexed}, nil
	}

	records, err := s.scanSubstring(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Records: records, Backend: BackendSubstring}, nil
}

// Reindex drops and rebuilds the shadow index from captures.
func (s *Store) Reindex(ctx context.Context) *ReindexResult {
	if s.index.TryRebuild(ctx) != IndexReady {
		return &ReindexResult{}
	}
	n, status := s.index.Count(ctx)
	return &ReindexResult{IndexAvailable: status == IndexReady, Indexed: n}
}

func (s *Store) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}
