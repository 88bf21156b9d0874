package db

import (
	"context"
	"database/sql"
	"path/filepath"

	"github.com/hpungsan/ctx/internal/capture"
	"github.com/hpungsan/ctx/internal/errors"
)

const captureColumns = `id, created_at, file_hash, file_name, file_size_bytes,
	file_path_at_capture, origin_title, origin_url, note, browser, source_app, mime_type`

const prefixedColumns = `c.id, c.created_at, c.file_hash, c.file_name, c.file_size_bytes,
	c.file_path_at_capture, c.origin_title, c.origin_url, c.note, c.browser, c.source_app, c.mime_type`

// newestFirst is the ordering of every multi-row read. The ULID tiebreak
// keeps captures made within the same second in insertion order.
const newestFirst = ` ORDER BY created_at DESC, id DESC`

// Insert stores r. ID and CreatedAt are assigned here and written back to r.
func (s *Store) Insert(ctx context.Context, r *capture.Record) error {
	r.ID = s.newID()
	r.CreatedAt = s.now().Unix()
	if r.Browser == "" {
		r.Browser = capture.DefaultBrowser
	}

	query := `
		INSERT INTO captures (` + captureColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.CreatedAt, r.FileHash, r.FileName, r.FileSizeBytes,
		r.FilePathAtCapture, r.OriginTitle, r.OriginURL,
		toNullString(r.Note), r.Browser, toNullString(r.SourceApp), toNullString(r.MimeType),
	)
	if err != nil {
		return errors.NewUnexpected(err)
	}

	s.index.TryProject(ctx, r)
	return nil
}

// GetByID retrieves a capture by its ULID.
func (s *Store) GetByID(ctx context.Context, id string) (*capture.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+captureColumns+` FROM captures WHERE id = ?`, id)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewUnexpected(err)
	}
	return r, nil
}

// LookupByHash returns up to limit captures of the given content, newest first.
func (s *Store) LookupByHash(ctx context.Context, fileHash string, limit int) ([]*capture.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+captureColumns+` FROM captures WHERE file_hash = ?`+newestFirst+` LIMIT ?`,
		fileHash, limit)
	if err != nil {
		return nil, errors.NewUnexpected(err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, errors.NewUnexpected(err)
	}
	return records, nil
}

// Recent returns the limit newest captures.
func (s *Store) Recent(ctx context.Context, limit int) ([]*capture.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+captureColumns+` FROM captures`+newestFirst+` LIMIT ?`, limit)
	if err != nil {
		return nil, errors.NewUnexpected(err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, errors.NewUnexpected(err)
	}
	return records, nil
}

// Count returns the number of captures.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM captures`).Scan(&n); err != nil {
		return 0, errors.NewUnexpected(err)
	}
	return n, nil
}

// RefreshObservedLocation points every capture with fileHash at path. Only
// file_name and file_path_at_capture change. Returns how many rows changed;
// repeating the call with the same arguments changes nothing.
func (s *Store) RefreshObservedLocation(ctx context.Context, fileHash, path string) (int64, error) {
	name := filepath.Base(path)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewUnexpected(err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE captures
		SET file_name = ?, file_path_at_capture = ?
		WHERE file_hash = ? AND (file_name != ? OR file_path_at_capture != ?)
	`, name, path, fileHash, name, path)
	if err != nil {
		return 0, errors.NewUnexpected(err)
	}
	changed, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewUnexpected(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.NewUnexpected(err)
	}

	if changed > 0 {
		s.index.TryRefresh(ctx, fileHash, name, path)
	}
	return changed, nil
}

// scanSubstring walks captures newest first and keeps those whose fields
// contain the folded query, stopping at limit.
func (s *Store) scanSubstring(ctx context.Context, query string, limit int) ([]*capture.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+captureColumns+` FROM captures`+newestFirst)
	if err != nil {
		return nil, errors.NewUnexpected(err)
	}
	defer rows.Close()

	folded := capture.Fold(query)
	records := make([]*capture.Record, 0)
	for rows.Next() && len(records) < limit {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, errors.NewUnexpected(err)
		}
		if r.MatchesSubstring(folded) {
			records = append(records, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewUnexpected(err)
	}
	return records, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a single row into a Record.
func scanRecord(row rowScanner) (*capture.Record, error) {
	var (
		r         capture.Record
		note      sql.NullString
		sourceApp sql.NullString
		mimeType  sql.NullString
	)

	err := row.Scan(
		&r.ID, &r.CreatedAt, &r.FileHash, &r.FileName, &r.FileSizeBytes,
		&r.FilePathAtCapture, &r.OriginTitle, &r.OriginURL,
		&note, &r.Browser, &sourceApp, &mimeType,
	)
	if err != nil {
		return nil, err
	}

	r.Note = fromNullString(note)
	r.SourceApp = fromNullString(sourceApp)
	r.MimeType = fromNullString(mimeType)
	return &r, nil
}

func scanRecords(rows *sql.Rows) ([]*capture.Record, error) {
	records := make([]*capture.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
