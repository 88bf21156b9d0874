package ops

import (
	"context"
	"fmt"
	"math"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpungsan/ctx/internal/capture"
	"github.com/hpungsan/ctx/internal/downloads"
	"github.com/hpungsan/ctx/internal/errors"
	"github.com/hpungsan/ctx/internal/hashing"
)

// CaptureInput contains parameters for the Capture operation.
type CaptureInput struct {
	OriginTitle   string // required
	OriginURL     string // required
	Note          string
	SourceApp     string
	Browser       string // default: safari
	DownloadsDir  string // default: config DownloadsDir
	WithinSeconds int    // default: config WithinSeconds; negative or over MaxWithinSeconds is rejected
}

// MaxWithinSeconds is the widest recency window a time.Duration can hold.
const MaxWithinSeconds = math.MaxInt64 / int64(time.Second)

// CaptureOutput contains the result of the Capture operation.
type CaptureOutput struct {
	Capture *capture.Record `json:"capture"`
}

// Capture records the newest finished download in the downloads directory
// together with where it came from.
func Capture(ctx context.Context, env *Env, input CaptureInput) (*CaptureOutput, error) {
	// Provenance is checked before touching the filesystem
	title, url, err := capture.ValidateProvenance(input.OriginTitle, input.OriginURL)
	if err != nil {
		return nil, err
	}

	within := input.WithinSeconds
	if within < 0 {
		return nil, errors.NewInvalidRequest("within must be a positive number of seconds")
	}
	if within == 0 {
		within = env.Config.WithinSeconds
	}
	if int64(within) > MaxWithinSeconds {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("within must be at most %d seconds", MaxWithinSeconds))
	}

	dirArg := strings.TrimSpace(input.DownloadsDir)
	if dirArg == "" {
		dirArg = env.Config.DownloadsDir
	}
	dir, err := env.Config.ExpandPath(dirArg)
	if err != nil {
		return nil, errors.NewInvalidRequest("invalid downloads directory: " + err.Error())
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}

	found, err := env.Detector.FindNewestStable(dir, time.Duration(within)*time.Second)
	if err != nil {
		return nil, errors.NewIOFailure(dir, err)
	}
	switch found.Outcome {
	case downloads.NoneInWindow:
		return nil, errors.NewNoRecentDownload(within)
	case downloads.FoundUnstable:
		return nil, errors.NewNotStable(found.Candidates)
	}

	info, err := os.Stat(found.Path)
	if err != nil {
		return nil, errors.NewIOFailure(found.Path, err)
	}
	fileHash, err := hashing.SHA256File(found.Path)
	if err != nil {
		return nil, err
	}

	browser := strings.TrimSpace(input.Browser)
	if browser == "" {
		browser = capture.DefaultBrowser
	}

	r := &capture.Record{
		FileHash:          fileHash,
		FileName:          filepath.Base(found.Path),
		FileSizeBytes:     info.Size(),
		FilePathAtCapture: found.Path,
		OriginTitle:       title,
		OriginURL:         url,
		Note:              capture.OptionalString(input.Note),
		Browser:           browser,
		SourceApp:         capture.OptionalString(input.SourceApp),
		MimeType:          guessMimeType(found.Path),
	}
	if err := env.Store.Insert(ctx, r); err != nil {
		return nil, err
	}

	env.Logger.Debug("captured download", "id", r.ID, "path", r.FilePathAtCapture, "hash", r.FileHash)
	return &CaptureOutput{Capture: r}, nil
}

// guessMimeType maps the file extension to a media type without parameters.
func guessMimeType(path string) *string {
	t := mime.TypeByExtension(filepath.Ext(path))
	if t == "" {
		return nil
	}
	if mediaType, _, err := mime.ParseMediaType(t); err == nil {
		t = mediaType
	}
	return &t
}
