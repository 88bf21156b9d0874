package reconcile

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpungsan/ctx/internal/hashing"
)

// Budget defaults for one interactive walk.
const (
	DefaultMaxDuration   = 3 * time.Second
	DefaultMaxCandidates = 2000
)

// SkipDirNames are pruned wherever they appear below a scan root.
// Hidden directories are pruned as well.
var SkipDirNames = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".Trash":       true,
	"Library":      true,
	"node_modules": true,
	"venv":         true,
	".venv":        true,
	"__pycache__":  true,
}

// Budget bounds a walk by wall clock and by number of files hashed.
type Budget struct {
	MaxDuration   time.Duration
	MaxCandidates int
}

// StopReason says why a walk ended.
type StopReason string

const (
	StopFound      StopReason = "found"
	StopExhausted  StopReason = "exhausted" // every root walked, no match
	StopDeadline   StopReason = "deadline"
	StopCandidates StopReason = "candidates"
	StopInvalid    StopReason = "invalid_size"
)

// Result describes one Locate call. Path is set only when Found.
type Result struct {
	Path   string
	Found  bool
	Hashed int
	Stop   StopReason
}

// Locator walks scan roots looking for a file by size and content hash.
// It never writes to the filesystem.
type Locator struct {
	Budget Budget

	now      func() time.Time
	hashFile func(string) (string, error)
}

// NewLocator returns a Locator with the given budget.
func NewLocator(b Budget) *Locator {
	return &Locator{
		Budget:   b,
		now:      time.Now,
		hashFile: hashing.SHA256File,
	}
}

// Locate walks roots in order and returns the first regular file whose size
// equals size and whose digest equals hash. The deadline and the hashed-file
// ceiling are checked before each directory is read and before each hash, so
// the walk stops as soon as either is spent. Unreadable entries are skipped.
func (l *Locator) Locate(hash string, size int64, roots []string) Result {
	if size < 0 {
		return Result{Stop: StopInvalid}
	}

	deadline := l.now().Add(l.Budget.MaxDuration)
	w := &walk{l: l, hash: hash, size: size, deadline: deadline}

	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			return w.visit(root, path, d, err)
		})
		if w.stop != "" {
			break
		}
	}

	if w.stop == "" {
		w.stop = StopExhausted
	}
	return Result{Path: w.found, Found: w.stop == StopFound, Hashed: w.hashed, Stop: w.stop}
}

type walk struct {
	l        *Locator
	hash     string
	size     int64
	deadline time.Time

	hashed int
	found  string
	stop   StopReason
}

func (w *walk) spent() bool {
	if w.l.now().After(w.deadline) {
		w.stop = StopDeadline
		return true
	}
	if w.hashed >= w.l.Budget.MaxCandidates {
		w.stop = StopCandidates
		return true
	}
	return false
}

func (w *walk) visit(root, path string, d fs.DirEntry, err error) error {
	if err != nil {
		// Unreadable root or directory: skip it and keep going.
		if d != nil && d.IsDir() && path != root {
			return fs.SkipDir
		}
		return nil
	}

	if d.IsDir() {
		if path != root && shouldSkipDir(d.Name()) {
			return fs.SkipDir
		}
		// Checked before WalkDir reads this directory's entries.
		if w.spent() {
			return fs.SkipAll
		}
		return nil
	}

	if w.spent() {
		return fs.SkipAll
	}

	if !d.Type().IsRegular() {
		return nil
	}
	info, err := d.Info()
	if err != nil || info.Size() != w.size {
		return nil
	}

	w.hashed++
	digest, err := w.l.hashFile(path)
	if err != nil {
		return nil
	}
	if digest != w.hash {
		return nil
	}

	w.found = resolve(path)
	w.stop = StopFound
	return fs.SkipAll
}

func shouldSkipDir(name string) bool {
	return SkipDirNames[name] || strings.HasPrefix(name, ".")
}

// resolve returns the absolute, symlink-free form of path, or path itself if
// that fails.
func resolve(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}
