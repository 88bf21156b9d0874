package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hpungsan/ctx/internal/downloads"
	"github.com/hpungsan/ctx/internal/reconcile"
)

// Environment keys understood by FromEnv.
const (
	EnvHome         = "CTX_HOME"
	EnvDBPath       = "CTX_DB_PATH"
	EnvScanRoots    = "CTX_SCAN_ROOTS"
	EnvDownloadsDir = "CTX_DOWNLOADS_DIR"
	EnvLogLevel     = "CTX_LOG_LEVEL"
)

// DefaultScanRoots are searched when neither the caller nor the config names any.
var DefaultScanRoots = []string{"~/Downloads", "~/Desktop", "~/Documents", "~"}

// Config holds application configuration. It is built once at startup and
// passed to every component; nothing below cmd/ reads the environment.
type Config struct {
	// HomeDir is used to expand "~" in configured paths
	HomeDir string `json:"-"`

	// DBPath is the SQLite file holding captures
	DBPath string `json:"db_path,omitempty"`

	// DownloadsDir is the directory watched by capture
	DownloadsDir string `json:"downloads_dir,omitempty"`

	// WithinSeconds is the default recency window for capture
	WithinSeconds int `json:"within_seconds,omitempty"`

	// ScanRoots are the directories searched when reconciling moved files.
	// A higher layer replaces, rather than extends, a lower one.
	ScanRoots []string `json:"scan_roots,omitempty"`

	// ReconcileMaxSeconds is the wall-clock budget of one reconcile walk
	ReconcileMaxSeconds float64 `json:"reconcile_max_seconds,omitempty"`

	// ReconcileMaxCandidates caps how many files one walk may hash
	ReconcileMaxCandidates int `json:"reconcile_max_candidates,omitempty"`

	// ProbeRounds and ProbeIntervalMillis tune the download stability probe
	ProbeRounds         int `json:"probe_rounds,omitempty"`
	ProbeIntervalMillis int `json:"probe_interval_millis,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `json:"log_level,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DownloadsDir:           "~/Downloads",
		WithinSeconds:          60,
		ReconcileMaxSeconds:    reconcile.DefaultMaxDuration.Seconds(),
		ReconcileMaxCandidates: reconcile.DefaultMaxCandidates,
		ProbeRounds:            downloads.DefaultProbeRounds,
		ProbeIntervalMillis:    int(downloads.DefaultProbeInterval / time.Millisecond),
		LogLevel:               "warn",
	}
}

// DefaultBaseDir returns the per-user directory holding config and the database.
func DefaultBaseDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "Ctx"), nil
}

// Load builds the configuration for baseDir: defaults, then baseDir/config.json,
// then baseDir/ctx.env, then env. Missing files are fine.
// DBPath defaults to baseDir/ctx.sqlite.
func Load(baseDir string, env map[string]string) (*Config, error) {
	fileCfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}

	dotenv, err := loadEnvFile(filepath.Join(baseDir, "ctx.env"))
	if err != nil {
		return nil, err
	}

	cfg := Merge(DefaultConfig(), fileCfg)
	cfg = Merge(cfg, FromEnv(dotenv))
	cfg = Merge(cfg, FromEnv(env))

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(baseDir, "ctx.sqlite")
	}
	return cfg, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile reads KEY=VALUE pairs without touching the process environment.
func loadEnvFile(path string) (map[string]string, error) {
	vals, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return vals, nil
}

// FromEnv converts CTX_* variables into a config overlay.
func FromEnv(env map[string]string) *Config {
	cfg := &Config{}
	if env == nil {
		return cfg
	}
	cfg.DBPath = strings.TrimSpace(env[EnvDBPath])
	cfg.DownloadsDir = strings.TrimSpace(env[EnvDownloadsDir])
	cfg.LogLevel = strings.TrimSpace(env[EnvLogLevel])
	if raw := strings.TrimSpace(env[EnvScanRoots]); raw != "" {
		cfg.ScanRoots = splitList(raw)
	}
	return cfg
}

// Environ snapshots the CTX_* variables of the current process.
// Only cmd/ calls this.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, key := range []string{EnvHome, EnvDBPath, EnvScanRoots, EnvDownloadsDir, EnvLogLevel} {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	return env
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; DisabledTools are merged and
// deduplicated; a non-empty overlay ScanRoots replaces the base list.
func Merge(base, overlay *Config) *Config {
	result := &Config{HomeDir: base.HomeDir}
	if overlay.HomeDir != "" {
		result.HomeDir = overlay.HomeDir
	}

	result.DBPath = pickString(overlay.DBPath, base.DBPath)
	result.DownloadsDir = pickString(overlay.DownloadsDir, base.DownloadsDir)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)

	result.WithinSeconds = pickInt(overlay.WithinSeconds, base.WithinSeconds)
	result.ReconcileMaxCandidates = pickInt(overlay.ReconcileMaxCandidates, base.ReconcileMaxCandidates)
	result.ProbeRounds = pickInt(overlay.ProbeRounds, base.ProbeRounds)
	result.ProbeIntervalMillis = pickInt(overlay.ProbeIntervalMillis, base.ProbeIntervalMillis)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.ReconcileMaxSeconds = overlay.ReconcileMaxSeconds
	if result.ReconcileMaxSeconds == 0 {
		result.ReconcileMaxSeconds = base.ReconcileMaxSeconds
	}

	result.ScanRoots = base.ScanRoots
	if len(overlay.ScanRoots) > 0 {
		result.ScanRoots = overlay.ScanRoots
	}
	result.ScanRoots = mergeStringSlice(result.ScanRoots, nil)

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// ReconcileBudget returns the configured walk budget.
func (c *Config) ReconcileBudget() (time.Duration, int) {
	return time.Duration(c.ReconcileMaxSeconds * float64(time.Second)), c.ReconcileMaxCandidates
}

// ProbeInterval returns the stability probe wait as a duration.
func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalMillis) * time.Millisecond
}

// ExpandPath expands a leading "~" against HomeDir and makes p absolute.
func (c *Config) ExpandPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "~" {
		p = c.HomeDir
	} else if rest, ok := strings.CutPrefix(p, "~/"); ok {
		p = filepath.Join(c.HomeDir, rest)
	}
	return filepath.Abs(p)
}

// ResolveScanRoots picks explicit roots, else configured roots, else
// DefaultScanRoots. Each is expanded and symlink-resolved; entries that are
// not existing directories are dropped, as are duplicates. Order is kept.
func (c *Config) ResolveScanRoots(explicit []string) []string {
	roots := mergeStringSlice(explicit, nil)
	if len(roots) == 0 {
		roots = c.ScanRoots
	}
	if len(roots) == 0 {
		roots = DefaultScanRoots
	}

	seen := make(map[string]bool)
	result := make([]string, 0, len(roots))
	for _, raw := range roots {
		abs, err := c.ExpandPath(raw)
		if err != nil {
			continue
		}
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			continue
		}
		info, err := os.Stat(resolved)
		if err != nil || !info.IsDir() {
			continue
		}
		if seen[resolved] {
			continue
		}
		seen[resolved] = true
		result = append(result, resolved)
	}
	return result
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func pickString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
