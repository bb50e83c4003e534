// Package correlate implements the windowed change/incident correlator.
//
// For every incident, the correlator finds the distinct change titles whose
// events fall inside [incident time - window, incident time] within the same
// (account_id, service_id) partition, and counts one match per distinct title
// per incident.
package correlate

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rcliao/change-correlator/internal/model"
)

// partition holds one partition's sorted working slices.
type partition struct {
	changes   []model.Event
	incidents []model.Event
}

// Correlate counts (incident title, change title) pairs across all
// partitions. window must be positive. workers bounds partition-level
// parallelism; values < 1 mean GOMAXPROCS.
func Correlate(changes, incidents []model.Event, window time.Duration, workers int) map[model.Pair]int {
	parts := groupByPartition(changes, incidents)
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := map[model.Pair]int{}
	var mu sync.Mutex

	// Partitions share no state, so they scan in parallel and merge under
	// a single lock. Counts are additive, so merge order cannot change
	// the totals.
	var g errgroup.Group
	g.SetLimit(workers)
	for _, p := range parts {
		p := p
		g.Go(func() error {
			counts := scanPartition(p.changes, p.incidents, window)
			if len(counts) == 0 {
				return nil
			}
			mu.Lock()
			for pair, n := range counts {
				results[pair] += n
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait() // workers never return errors

	return results
}

// groupByPartition buckets both event slices by partition key and keeps
// only partitions that have events on both sides.
func groupByPartition(changes, incidents []model.Event) []partition {
	byKey := map[model.PartitionKey]*partition{}
	for _, ev := range changes {
		key := ev.Partition()
		p := byKey[key]
		if p == nil {
			p = &partition{}
			byKey[key] = p
		}
		p.changes = append(p.changes, ev)
	}
	for _, ev := range incidents {
		p := byKey[ev.Partition()]
		if p == nil {
			continue // no changes in this partition, nothing can match
		}
		p.incidents = append(p.incidents, ev)
	}

	parts := make([]partition, 0, len(byKey))
	for _, p := range byKey {
		if len(p.incidents) == 0 {
			continue
		}
		parts = append(parts, *p)
	}
	return parts
}

// scanPartition performs the single-pass windowed scan for one partition.
//
// Changes are held in a deque realized as the sorted slice plus head/tail
// cursors: tail admits changes with timestamp <= the incident's time, head
// evicts changes older than the window. Incidents are visited in
// non-decreasing time order, so every change is admitted and evicted at
// most once across the whole scan.
func scanPartition(changes, incidents []model.Event, window time.Duration) map[model.Pair]int {
	// Stable sorts keep input order on equal timestamps, which keeps the
	// scan deterministic.
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Timestamp.Before(changes[j].Timestamp)
	})
	sort.SliceStable(incidents, func(i, j int) bool {
		return incidents[i].Timestamp.Before(incidents[j].Timestamp)
	})

	counts := map[model.Pair]int{}
	head, tail := 0, 0
	seen := map[string]bool{} // reused per incident

	for _, inc := range incidents {
		// Admit changes up to and including the incident instant.
		for tail < len(changes) && !changes[tail].Timestamp.After(inc.Timestamp) {
			tail++
		}
		// Evict changes strictly older than the inclusive lower bound.
		cutoff := inc.Timestamp.Add(-window)
		for head < tail && changes[head].Timestamp.Before(cutoff) {
			head++
		}

		// Count each distinct title once for this incident.
		clear(seen)
		for i := head; i < tail; i++ {
			title := changes[i].Title
			if seen[title] {
				continue
			}
			seen[title] = true
			counts[model.Pair{IncidentTitle: inc.Title, ChangeTitle: title}]++
		}
	}

	return counts
}
