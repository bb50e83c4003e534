// Package pipeline wires the correlation stages end to end: ingest, noise
// filtering, windowed correlation, causality confirmation, and output.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rcliao/change-correlator/internal/classify"
	"github.com/rcliao/change-correlator/internal/correlate"
	"github.com/rcliao/change-correlator/internal/ingest"
	"github.com/rcliao/change-correlator/internal/model"
	"github.com/rcliao/change-correlator/internal/report"
	"github.com/rcliao/change-correlator/internal/store"
)

// Config holds a run's settings.
type Config struct {
	ChangesPath   string
	IncidentsPath string
	OutputPath    string
	Window        time.Duration
	Model         string
	Workers       int
	SkipCausality bool
}

// Validate rejects bad configuration before any processing starts.
func (c Config) Validate() error {
	if c.ChangesPath == "" {
		return fmt.Errorf("changes path is required")
	}
	if c.IncidentsPath == "" {
		return fmt.Errorf("incidents path is required")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %s", c.Window)
	}
	return nil
}

// Result summarizes a completed run.
type Result struct {
	RunID          string
	CandidatePairs int
	CausalPairs    int
}

// Run executes the full pipeline. The classifier is consulted at most once
// per distinct title and per distinct pair (classifier should be a
// classify.Cached). st records the run; it may be nil to skip recording.
func Run(ctx context.Context, cfg Config, classifier classify.Classifier, st store.Store) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	startedAt := time.Now()

	changes, changesDropped, err := ingest.ReadEvents(cfg.ChangesPath, ingest.ChangeTimeColumn)
	if err != nil {
		return nil, fmt.Errorf("ingest changes: %w", err)
	}
	incidents, incidentsDropped, err := ingest.ReadEvents(cfg.IncidentsPath, ingest.IncidentTimeColumn)
	if err != nil {
		return nil, fmt.Errorf("ingest incidents: %w", err)
	}
	slog.Info("ingested events",
		"changes", len(changes), "changes_dropped", changesDropped,
		"incidents", len(incidents), "incidents_dropped", incidentsDropped)
	changesTotal := len(changes) + changesDropped
	incidentsTotal := len(incidents) + incidentsDropped

	changes, err = filterNoise(ctx, classifier, classify.KindChange, changes)
	if err != nil {
		return nil, fmt.Errorf("filter change noise: %w", err)
	}
	incidents, err = filterNoise(ctx, classifier, classify.KindIncident, incidents)
	if err != nil {
		return nil, fmt.Errorf("filter incident noise: %w", err)
	}
	slog.Info("noise filtering done", "changes", len(changes), "incidents", len(incidents))

	raw := correlate.Correlate(changes, incidents, cfg.Window, cfg.Workers)
	slog.Info("correlation done", "candidate_pairs", len(raw))

	final := raw
	if !cfg.SkipCausality {
		final, err = confirmCausality(ctx, classifier, raw)
		if err != nil {
			return nil, fmt.Errorf("confirm causality: %w", err)
		}
		slog.Info("causality confirmation done", "causal_pairs", len(final))
	}

	if err := report.Write(cfg.OutputPath, report.Build(final)); err != nil {
		return nil, err
	}

	res := &Result{CandidatePairs: len(raw), CausalPairs: len(final)}
	if st != nil {
		id, err := st.RecordRun(ctx, store.Run{
			StartedAt:        startedAt,
			FinishedAt:       time.Now(),
			WindowMinutes:    int(cfg.Window / time.Minute),
			Model:            cfg.Model,
			ChangesTotal:     changesTotal,
			ChangesDropped:   changesDropped,
			IncidentsTotal:   incidentsTotal,
			IncidentsDropped: incidentsDropped,
			CandidatePairs:   len(raw),
			CausalPairs:      len(final),
		}, raw)
		if err != nil {
			// Run history is a debugging aid, not the deliverable.
			slog.Warn("failed to record run", "error", err)
		} else {
			res.RunID = id
		}
	}

	return res, nil
}

// filterNoise classifies each distinct title once and keeps events whose
// title is MEANINGFUL. Titles are visited in sorted order so the external
// call sequence is deterministic.
func filterNoise(ctx context.Context, classifier classify.Classifier, kind classify.TitleKind, events []model.Event) ([]model.Event, error) {
	titles := distinctTitles(events)

	meaningful := make(map[string]bool, len(titles))
	for _, title := range titles {
		label, err := classifier.ClassifyTitle(ctx, kind, title)
		if err != nil {
			return nil, err
		}
		if label == model.LabelMeaningful {
			meaningful[title] = true
		}
	}

	kept := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if meaningful[ev.Title] {
			kept = append(kept, ev)
		}
	}
	return kept, nil
}

// confirmCausality classifies each distinct candidate pair once and keeps
// only pairs labeled CAUSAL. Dropped pairs are removed, not zeroed.
func confirmCausality(ctx context.Context, classifier classify.Classifier, raw map[model.Pair]int) (map[model.Pair]int, error) {
	pairs := make([]model.Pair, 0, len(raw))
	for pair := range raw {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key() < pairs[j].Key() })

	final := map[model.Pair]int{}
	for _, pair := range pairs {
		label, err := classifier.ClassifyPair(ctx, pair.IncidentTitle, pair.ChangeTitle)
		if err != nil {
			return nil, err
		}
		if label == model.LabelCausal {
			final[pair] = raw[pair]
		}
	}
	return final, nil
}

func distinctTitles(events []model.Event) []string {
	seen := map[string]bool{}
	var titles []string
	for _, ev := range events {
		if seen[ev.Title] {
			continue
		}
		seen[ev.Title] = true
		titles = append(titles, ev.Title)
	}
	sort.Strings(titles)
	return titles
}
