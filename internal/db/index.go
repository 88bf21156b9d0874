package db

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/hpungsan/ctx/internal/capture"
	"github.com/hpungsan/ctx/internal/errors"
)

// IndexStatus is the outcome of a shadow index operation.
type IndexStatus int

const (
	IndexReady IndexStatus = iota
	IndexUnavailable
)

// indexColumns is the expected column set of captures_fts, in order.
var indexColumns = []string{
	"id",
	"file_name",
	"file_path_at_capture",
	"origin_title",
	"origin_url",
	"note",
}

// ShadowIndex is the best-effort FTS5 projection of captures. Every method
// reports IndexUnavailable instead of failing; the captures table stays the
// only source of truth.
type ShadowIndex struct {
	db      *sql.DB
	logger  *slog.Logger
	enabled atomic.Bool
}

// NewShadowIndex returns a disabled index; call Ensure or TryRebuild to enable it.
func NewShadowIndex(database *sql.DB, logger *slog.Logger) *ShadowIndex {
	return &ShadowIndex{db: database, logger: logger}
}

// Ensure enables the index if its shape and row count match captures, and
// rebuilds it otherwise.
func (x *ShadowIndex) Ensure(ctx context.Context) IndexStatus {
	cols, err := x.columns(ctx)
	if err != nil || !sameColumns(cols) {
		return x.TryRebuild(ctx)
	}

	var indexed, total int
	if err := x.db.QueryRowContext(ctx, "SELECT count(*) FROM captures_fts").Scan(&indexed); err != nil {
		return x.TryRebuild(ctx)
	}
	if err := x.db.QueryRowContext(ctx, "SELECT count(*) FROM captures").Scan(&total); err != nil {
		return x.disable("ensure", err)
	}
	if indexed != total {
		x.logger.Info("shadow index out of sync, rebuilding", "indexed", indexed, "captures", total)
		return x.TryRebuild(ctx)
	}

	x.enabled.Store(true)
	return IndexReady
}

// TryRebuild drops captures_fts and repopulates it from captures in one
// transaction. It is idempotent. If captures does not exist yet the index is
// disabled.
func (x *ShadowIndex) TryRebuild(ctx context.Context) IndexStatus {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return x.disable("rebuild", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DROP TABLE IF EXISTS captures_fts`,
		`CREATE VIRTUAL TABLE captures_fts USING fts5(
		  id UNINDEXED,
		  file_name,
		  file_path_at_capture,
		  origin_title,
		  origin_url,
		  note
		)`,
		`INSERT INTO captures_fts (id, file_name, file_path_at_capture, origin_title, origin_url, note)
		 SELECT id, file_name, file_path_at_capture, origin_title, origin_url, coalesce(note, '')
		 FROM captures`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return x.disable("rebuild", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return x.disable("rebuild", err)
	}

	x.enabled.Store(true)
	return IndexReady
}

// Count returns the number of indexed rows, or IndexUnavailable.
func (x *ShadowIndex) Count(ctx context.Context) (int, IndexStatus) {
	if !x.enabled.Load() {
		return 0, IndexUnavailable
	}
	var n int
	if err := x.db.QueryRowContext(ctx, "SELECT count(*) FROM captures_fts").Scan(&n); err != nil {
		x.warn("count", err)
		return 0, IndexUnavailable
	}
	return n, IndexReady
}

// TryProject adds r to the index.
func (x *ShadowIndex) TryProject(ctx context.Context, r *capture.Record) IndexStatus {
	if !x.enabled.Load() {
		return IndexUnavailable
	}
	fields := r.SearchFields()
	_, err := x.db.ExecContext(ctx, `
		INSERT INTO captures_fts (id, file_name, file_path_at_capture, origin_title, origin_url, note)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, fields[0], fields[1], fields[2], fields[3], fields[4])
	if err != nil {
		x.warn("project", err)
		return IndexUnavailable
	}
	return IndexReady
}

// TryRefresh rewrites the path columns of every indexed row whose capture has fileHash.
func (x *ShadowIndex) TryRefresh(ctx context.Context, fileHash, name, path string) IndexStatus {
	if !x.enabled.Load() {
		return IndexUnavailable
	}
	_, err := x.db.ExecContext(ctx, `
		UPDATE captures_fts
		SET file_name = ?, file_path_at_capture = ?
		WHERE id IN (SELECT id FROM captures WHERE file_hash = ?)
	`, name, path, fileHash)
	if err != nil {
		x.warn("refresh", err)
		return IndexUnavailable
	}
	return IndexReady
}

// TrySearch runs query against the index and returns matching captures,
// newest first. Each whitespace-separated term is quoted, so user text is
// never parsed as FTS5 syntax; the unicode61 tokenizer folds case.
func (x *ShadowIndex) TrySearch(ctx context.Context, query string, limit int) ([]*capture.Record, IndexStatus) {
	if !x.enabled.Load() {
		return nil, IndexUnavailable
	}
	match := sanitizeFTS(query)
	if match == "" {
		return nil, IndexUnavailable
	}

	rows, err := x.db.QueryContext(ctx, `
		SELECT `+prefixedColumns+`
		FROM captures_fts
		JOIN captures c ON c.id = captures_fts.id
		WHERE captures_fts MATCH ?
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT ?
	`, match, limit)
	if err != nil {
		x.warn("search", err)
		return nil, IndexUnavailable
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		x.warn("search", err)
		return nil, IndexUnavailable
	}
	return records, IndexReady
}

func (x *ShadowIndex) columns(ctx context.Context) ([]string, error) {
	rows, err := x.db.QueryContext(ctx, "PRAGMA table_info(captures_fts)")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (x *ShadowIndex) disable(op string, err error) IndexStatus {
	x.enabled.Store(false)
	x.warn(op, err)
	return IndexUnavailable
}

func (x *ShadowIndex) warn(op string, err error) {
	x.logger.Warn("shadow index unavailable", "op", op, "err", errors.NewIndexUnavailable(err).Message)
}

func sameColumns(cols []string) bool {
	if len(cols) != len(indexColumns) {
		return false
	}
	want := make(map[string]bool, len(indexColumns))
	for _, c := range indexColumns {
		want[c] = true
	}
	for _, c := range cols {
		if !want[c] {
			return false
		}
	}
	return true
}

// sanitizeFTS wraps each word in quotes so FTS5 doesn't choke on special chars.
// `fix "auth" bug` → `"fix" "auth" "bug"`
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	out := words[:0]
	for _, w := range words {
		w = strings.ReplaceAll(w, `"`, "")
		if w == "" {
			continue
		}
		out = append(out, `"`+w+`"`)
	}
	return strings.Join(out, " ")
}
