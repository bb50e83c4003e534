// Package store provides the persistent storage interface and SQLite
// implementation for classification verdicts and run history.
package store

import (
	"context"
	"time"

	"github.com/rcliao/change-correlator/internal/model"
)

// Run is a recorded correlate invocation.
type Run struct {
	ID               string    `json:"id"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	WindowMinutes    int       `json:"window_minutes"`
	Model            string    `json:"model"`
	ChangesTotal     int       `json:"changes_total"`
	ChangesDropped   int       `json:"changes_dropped"`
	IncidentsTotal   int       `json:"incidents_total"`
	IncidentsDropped int       `json:"incidents_dropped"`
	CandidatePairs   int       `json:"candidate_pairs"`
	CausalPairs      int       `json:"causal_pairs"`
}

// CacheStats holds classification cache statistics.
type CacheStats struct {
	DBPath      string      `json:"db_path"`
	DBSizeBytes int64       `json:"db_size_bytes"`
	Total       int         `json:"total"`
	Kinds       []KindStats `json:"kinds"`
	Runs        int         `json:"runs"`
}

// KindStats holds per-kind cached verdict counts.
type KindStats struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// Store defines the persistence interface.
type Store interface {
	// GetClassification looks up a cached verdict.
	GetClassification(ctx context.Context, kind, key string) (model.Label, bool, error)

	// PutClassification records a verdict.
	PutClassification(ctx context.Context, kind, key string, label model.Label, modelName string) error

	// ClearClassifications deletes cached verdicts. Empty kind clears all.
	ClearClassifications(ctx context.Context, kind string) (int, error)

	// Stats returns cache statistics.
	Stats(ctx context.Context, dbPath string) (*CacheStats, error)

	// RecordRun persists a run and its pre-causality candidate counts,
	// returning the assigned run ID.
	RecordRun(ctx context.Context, run Run, rawPairs map[model.Pair]int) (string, error)

	// ListRuns returns recorded runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// RawPairs returns a run's pre-causality candidate counts.
	RawPairs(ctx context.Context, runID string) (map[model.Pair]int, error)

	// Close closes the store.
	Close() error
}
