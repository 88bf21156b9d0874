package downloads

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"
)

// Probe defaults: two re-samples 350ms apart.
const (
	DefaultProbeRounds   = 2
	DefaultProbeInterval = 350 * time.Millisecond
)

// TempSuffixes are in-progress markers written by common browsers and
// download managers. Matching is case-insensitive.
var TempSuffixes = []string{
	".download",
	".part",
	".partial",
	".crdownload",
	".opdownload",
	".tmp",
}

// Outcome tags the result of FindNewestStable.
type Outcome int

const (
	// NoneInWindow means no non-temporary regular file was modified within the window.
	NoneInWindow Outcome = iota
	// FoundUnstable means candidates existed but every one changed during its probe.
	FoundUnstable
	// FoundStable means Result.Path passed the stability probe.
	FoundStable
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case FoundStable:
		return "found_stable"
	case FoundUnstable:
		return "found_unstable"
	default:
		return "none_in_window"
	}
}

// Result is the detector's answer. Path is set only for FoundStable.
type Result struct {
	Outcome    Outcome
	Path       string
	Candidates int
}

// Detector selects the newest finished download in a directory.
type Detector struct {
	// Rounds is the number of re-samples after the initial stat
	Rounds int
	// Interval is the wait between samples
	Interval time.Duration

	now     func() time.Time
	sleep   func(time.Duration)
	stat    func(string) (os.FileInfo, error)
	readDir func(string) ([]os.DirEntry, error)
}

// NewDetector returns a Detector using the given probe settings.
// Non-positive values fall back to the defaults.
func NewDetector(rounds int, interval time.Duration) *Detector {
	if rounds <= 0 {
		rounds = DefaultProbeRounds
	}
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Detector{
		Rounds:   rounds,
		Interval: interval,
		now:      time.Now,
		sleep:    time.Sleep,
		stat:     os.Stat,
		readDir:  os.ReadDir,
	}
}

type candidate struct {
	path  string
	mtime time.Time
}

// FindNewestStable returns the newest non-temporary regular file in dir whose
// mtime lies within window of now and whose size and mtime stay unchanged
// across the probe. A missing dir, or one that is not a directory, yields
// NoneInWindow. Any other failure to stat or list dir is returned as an error.
func (d *Detector) FindNewestStable(dir string, window time.Duration) (Result, error) {
	info, err := d.stat(dir)
	if isMissing(err) {
		return Result{Outcome: NoneInWindow}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if !info.IsDir() {
		return Result{Outcome: NoneInWindow}, nil
	}

	entries, err := d.readDir(dir)
	if isMissing(err) {
		return Result{Outcome: NoneInWindow}, nil
	}
	if err != nil {
		return Result{}, err
	}

	cutoff := d.now().Add(-window)
	var candidates []candidate
	for _, entry := range entries {
		if IsTempName(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		fi, err := d.stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		if fi.ModTime().Before(cutoff) {
			continue
		}
		candidates = append(candidates, candidate{path: path, mtime: fi.ModTime()})
	}

	if len(candidates) == 0 {
		return Result{Outcome: NoneInWindow}, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].mtime.After(candidates[j].mtime)
	})

	for _, c := range candidates {
		if d.isStable(c.path) {
			return Result{Outcome: FoundStable, Path: c.path, Candidates: len(candidates)}, nil
		}
	}
	return Result{Outcome: FoundUnstable, Candidates: len(candidates)}, nil
}

// isMissing reports whether err means dir does not exist, including a path
// whose parent is a regular file.
func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

// isStable samples size and mtime, then re-samples Rounds times, Interval apart.
// Any change or failed stat rejects the file.
func (d *Detector) isStable(path string) bool {
	prev, err := d.stat(path)
	if err != nil {
		return false
	}
	for range d.Rounds {
		d.sleep(d.Interval)
		cur, err := d.stat(path)
		if err != nil {
			return false
		}
		if cur.Size() != prev.Size() || !cur.ModTime().Equal(prev.ModTime()) {
			return false
		}
		prev = cur
	}
	return true
}

// IsTempName reports whether name looks like a hidden file or an in-progress download.
func IsTempName(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, ".") {
		return true
	}
	for _, suffix := range TempSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
