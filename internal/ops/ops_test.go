package ops

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/ctx/internal/config"
	"github.com/hpungsan/ctx/internal/db"
	"github.com/hpungsan/ctx/internal/errors"
)

type testEnv struct {
	*Env
	home      string
	downloads string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	home, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	downloads := filepath.Join(home, "Downloads")
	require.NoError(t, os.MkdirAll(downloads, 0700))

	database, err := db.Init(filepath.Join(home, "state", "ctx.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.HomeDir = home
	cfg.DownloadsDir = downloads
	cfg.ProbeRounds = 1
	cfg.ProbeIntervalMillis = 10
	cfg.ScanRoots = []string{home}

	logger := slog.New(slog.DiscardHandler)
	store := db.NewStore(context.Background(), database, logger)
	return &testEnv{Env: NewEnv(store, cfg, logger), home: home, downloads: downloads}
}

func (e *testEnv) download(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.downloads, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func (e *testEnv) capture(t *testing.T) *CaptureOutput {
	t.Helper()
	out, err := Capture(context.Background(), e.Env, CaptureInput{
		OriginTitle: "Example",
		OriginURL:   "https://example.com",
	})
	require.NoError(t, err)
	return out
}

func move(t *testing.T, from, to string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(to), 0700))
	require.NoError(t, os.Rename(from, to))
}

func TestClampLimit(t *testing.T) {
	require.Equal(t, DefaultLimit, clampLimit(0))
	require.Equal(t, DefaultLimit, clampLimit(-3))
	require.Equal(t, 7, clampLimit(7))
	require.Equal(t, MaxLimit, clampLimit(MaxLimit+1))
}

// Capture a 5-byte file, then look it up at the same path.
func TestCaptureThenLookup(t *testing.T) {
	e := newTestEnv(t)
	path := e.download(t, "hello.txt", "hello")

	out := e.capture(t)
	r := out.Capture
	require.NotEmpty(t, r.ID)
	require.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", r.FileHash)
	require.Equal(t, "hello.txt", r.FileName)
	require.Equal(t, path, r.FilePathAtCapture)
	require.EqualValues(t, 5, r.FileSizeBytes)
	require.Equal(t, "safari", r.Browser)
	require.NotNil(t, r.MimeType)
	require.Equal(t, "text/plain", *r.MimeType)
	require.Nil(t, r.Note)

	lookup, err := Lookup(context.Background(), e.Env, LookupInput{Path: path})
	require.NoError(t, err)
	require.Equal(t, 1, lookup.Count)
	require.Equal(t, r.FileHash, lookup.FileHash)
	require.Equal(t, r.ID, lookup.Records[0].ID)
	require.Zero(t, lookup.Refreshed)
}

// Rename and move after capture; lookup at the new path repoints the record.
func TestLookupAfterMoveRefreshesLocation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	orig := e.download(t, "hello.txt", "hello")
	e.capture(t)

	moved := filepath.Join(e.home, "archive2024", "renamed-notes.txt")
	move(t, orig, moved)

	lookup, err := Lookup(ctx, e.Env, LookupInput{Path: moved})
	require.NoError(t, err)
	require.Equal(t, 1, lookup.Count)
	require.EqualValues(t, 1, lookup.Refreshed)
	require.Equal(t, moved, lookup.Records[0].FilePathAtCapture)
	require.Equal(t, "renamed-notes.txt", lookup.Records[0].FileName)

	for _, q := range []string{"renamed", "archive2024"} {
		out, err := Search(ctx, e.Env, SearchInput{Query: q, NoReconcile: true})
		require.NoError(t, err)
		require.GreaterOrEqual(t, out.Count, 1, "query %q", q)
	}
}

// Move without lookup; a reconciling search finds and repoints it.
func TestSearchReconcilesMovedFile(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	orig := e.download(t, "hello.txt", "hello")
	e.capture(t)

	newParent := filepath.Join(e.home, "Projects", "inbox")
	moved := filepath.Join(newParent, "greeting.txt")
	move(t, orig, moved)

	out, err := Search(ctx, e.Env, SearchInput{Query: "Example", ScanRoots: []string{newParent}})
	require.NoError(t, err)
	require.EqualValues(t, 1, out.Reconciled)
	require.Equal(t, 1, out.Count)
	require.Equal(t, moved, out.Results[0].FilePathAtCapture)
	require.Equal(t, "greeting.txt", out.Results[0].FileName)
}

// Scan roots that miss the new location leave the record stale.
func TestSearchReconcileOutsideScanRoots(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	orig := e.download(t, "hello.txt", "hello")
	e.capture(t)

	move(t, orig, filepath.Join(e.home, "elsewhere", "hello.txt"))
	unrelated := filepath.Join(e.home, "unrelated")
	require.NoError(t, os.MkdirAll(unrelated, 0700))

	out, err := Search(ctx, e.Env, SearchInput{Query: "Example", ScanRoots: []string{unrelated}})
	require.NoError(t, err)
	require.Zero(t, out.Reconciled)
	require.Equal(t, 1, out.Count)
	require.Equal(t, orig, out.Results[0].FilePathAtCapture)
}

func TestSearchNoReconcile(t *testing.T) {
	e := newTestEnv(t)
	orig := e.download(t, "hello.txt", "hello")
	e.capture(t)
	move(t, orig, filepath.Join(e.home, "moved", "hello.txt"))

	out, err := Search(context.Background(), e.Env, SearchInput{Query: "", NoReconcile: true})
	require.NoError(t, err)
	require.Equal(t, db.BackendRecent, out.Backend)
	require.Zero(t, out.Reconciled)
	require.Equal(t, orig, out.Results[0].FilePathAtCapture)
}

// Two captures of the same content are both repointed by one walk.
func TestSearchReconcileSharedHash(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	first := e.download(t, "report.pdf", "same bytes")
	old := time.Now().Add(-5 * time.Second)
	require.NoError(t, os.Chtimes(first, old, old))
	e.capture(t)

	second := e.download(t, "report (1).pdf", "same bytes")
	e.capture(t)

	require.NoError(t, os.Remove(first))
	moved := filepath.Join(e.home, "Docs", "report-final.pdf")
	move(t, second, moved)

	out, err := Search(ctx, e.Env, SearchInput{Query: "Example"})
	require.NoError(t, err)
	require.EqualValues(t, 2, out.Reconciled)
	require.Equal(t, 2, out.Count)
	for _, r := range out.Results {
		require.Equal(t, moved, r.FilePathAtCapture)
	}
}

func TestSearchReconcileCountsOnlyStaleRecords(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	first := e.download(t, "report.pdf", "same bytes")
	old := time.Now().Add(-5 * time.Second)
	require.NoError(t, os.Chtimes(first, old, old))
	e.capture(t)

	second := e.download(t, "report (1).pdf", "same bytes")
	e.capture(t)

	docs := filepath.Join(e.home, "Docs")
	moved := filepath.Join(docs, "report-final.pdf")
	move(t, second, moved)

	out, err := Search(ctx, e.Env, SearchInput{Query: "Example", ScanRoots: []string{docs}})
	require.NoError(t, err)
	require.EqualValues(t, 1, out.Reconciled)
	require.Equal(t, 2, out.Count)
}

func TestCapture_ContextMissing(t *testing.T) {
	e := newTestEnv(t)
	e.download(t, "hello.txt", "hello")

	_, err := Capture(context.Background(), e.Env, CaptureInput{OriginTitle: "  ", OriginURL: "https://example.com"})
	require.True(t, errors.Is(err, errors.ErrContextMissing))

	// Checked before the downloads directory is looked at
	_, err = Capture(context.Background(), e.Env, CaptureInput{DownloadsDir: filepath.Join(e.home, "nope")})
	require.True(t, errors.Is(err, errors.ErrContextMissing))

	n, err := e.Store.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestCapture_NoRecentDownload(t *testing.T) {
	e := newTestEnv(t)

	// Only an in-progress download and an old file
	e.download(t, "movie.mp4.crdownload", "partial")
	old := e.download(t, "old.txt", "old")
	stale := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))

	_, err := Capture(context.Background(), e.Env, CaptureInput{
		OriginTitle:   "Example",
		OriginURL:     "https://example.com",
		WithinSeconds: 30,
	})
	require.True(t, errors.Is(err, errors.ErrNoRecentDownload))
	require.Equal(t, 30, errors.Wrap(err).Details["within_seconds"])
}

func TestCapture_MissingDownloadsDir(t *testing.T) {
	e := newTestEnv(t)

	_, err := Capture(context.Background(), e.Env, CaptureInput{
		OriginTitle:  "Example",
		OriginURL:    "https://example.com",
		DownloadsDir: filepath.Join(e.home, "does-not-exist"),
	})
	require.True(t, errors.Is(err, errors.ErrNoRecentDownload))
}

func TestCapture_NegativeWithin(t *testing.T) {
	e := newTestEnv(t)

	_, err := Capture(context.Background(), e.Env, CaptureInput{
		OriginTitle:   "Example",
		OriginURL:     "https://example.com",
		WithinSeconds: -1,
	})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestCapture_WithinTooLarge(t *testing.T) {
	e := newTestEnv(t)
	e.download(t, "hello.txt", "hello")

	_, err := Capture(context.Background(), e.Env, CaptureInput{
		OriginTitle:   "Example",
		OriginURL:     "https://example.com",
		WithinSeconds: math.MaxInt,
	})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	out, err := Capture(context.Background(), e.Env, CaptureInput{
		OriginTitle:   "Example",
		OriginURL:     "https://example.com",
		WithinSeconds: int(MaxWithinSeconds),
	})
	require.NoError(t, err)
	require.Equal(t, "hello.txt", out.Capture.FileName)
}

func TestCapture_UnreadableDownloadsDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	e := newTestEnv(t)
	e.download(t, "hello.txt", "hello")
	require.NoError(t, os.Chmod(e.downloads, 0))
	t.Cleanup(func() { _ = os.Chmod(e.downloads, 0700) })

	_, err := Capture(context.Background(), e.Env, CaptureInput{
		OriginTitle: "Example",
		OriginURL:   "https://example.com",
	})
	require.True(t, errors.Is(err, errors.ErrIOFailure))
	require.Equal(t, e.downloads, errors.Wrap(err).Details["path"])
}

func TestCapture_OptionalFields(t *testing.T) {
	e := newTestEnv(t)
	e.download(t, "data.unknownext", "x")

	out, err := Capture(context.Background(), e.Env, CaptureInput{
		OriginTitle: " Example ",
		OriginURL:   "https://example.com",
		Note:        "  for the report ",
		SourceApp:   "Mail",
		Browser:     "firefox",
	})
	require.NoError(t, err)
	require.Equal(t, "Example", out.Capture.OriginTitle)
	require.Equal(t, "for the report", *out.Capture.Note)
	require.Equal(t, "Mail", *out.Capture.SourceApp)
	require.Equal(t, "firefox", out.Capture.Browser)
	require.Nil(t, out.Capture.MimeType)
}

func TestLookup_FileNotFound(t *testing.T) {
	e := newTestEnv(t)

	_, err := Lookup(context.Background(), e.Env, LookupInput{Path: filepath.Join(e.home, "missing.txt")})
	require.True(t, errors.Is(err, errors.ErrFileNotFound))

	_, err = Lookup(context.Background(), e.Env, LookupInput{Path: e.downloads})
	require.True(t, errors.Is(err, errors.ErrFileNotFound))

	_, err = Lookup(context.Background(), e.Env, LookupInput{Path: "  "})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestLookup_UnknownContent(t *testing.T) {
	e := newTestEnv(t)
	path := e.download(t, "never-captured.txt", "fresh")

	out, err := Lookup(context.Background(), e.Env, LookupInput{Path: path})
	require.NoError(t, err)
	require.Zero(t, out.Count)
	require.NotNil(t, out.Records)
}

func TestLookup_TildePath(t *testing.T) {
	e := newTestEnv(t)
	e.download(t, "hello.txt", "hello")
	e.capture(t)

	out, err := Lookup(context.Background(), e.Env, LookupInput{Path: "~/Downloads/hello.txt"})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
}

func TestGet(t *testing.T) {
	e := newTestEnv(t)
	e.download(t, "hello.txt", "hello")
	captured := e.capture(t).Capture

	out, err := Get(context.Background(), e.Env, GetInput{ID: captured.ID})
	require.NoError(t, err)
	require.Equal(t, captured.FileHash, out.Capture.FileHash)

	_, err = Get(context.Background(), e.Env, GetInput{ID: "01UNKNOWN"})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = Get(context.Background(), e.Env, GetInput{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestReindex(t *testing.T) {
	e := newTestEnv(t)
	e.download(t, "hello.txt", "hello")
	e.capture(t)

	res := Reindex(context.Background(), e.Env)
	require.True(t, res.IndexAvailable)
	require.Equal(t, 1, res.Indexed)
}
