package ops

import (
	"log/slog"

	"github.com/hpungsan/ctx/internal/config"
	"github.com/hpungsan/ctx/internal/db"
	"github.com/hpungsan/ctx/internal/downloads"
	"github.com/hpungsan/ctx/internal/reconcile"
)

// Result limits
const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// Env is what every operation runs against. Build it once per process.
type Env struct {
	Store    *db.Store
	Config   *config.Config
	Detector *downloads.Detector
	Locator  *reconcile.Locator
	Logger   *slog.Logger
}

// NewEnv wires the detector and locator from cfg.
func NewEnv(store *db.Store, cfg *config.Config, logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxDuration, maxCandidates := cfg.ReconcileBudget()
	return &Env{
		Store:    store,
		Config:   cfg,
		Detector: downloads.NewDetector(cfg.ProbeRounds, cfg.ProbeInterval()),
		Locator: reconcile.NewLocator(reconcile.Budget{
			MaxDuration:   maxDuration,
			MaxCandidates: maxCandidates,
		}),
		Logger: logger,
	}
}

// clampLimit applies the default and upper bound.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}
