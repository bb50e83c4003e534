// Package ingest reads change and incident CSV files into normalized events.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rcliao/change-correlator/internal/model"
)

// Time column names used by the two input datasets.
const (
	ChangeTimeColumn   = "timestamp"
	IncidentTimeColumn = "triggered_at"
)

// timeLayouts are tried in order when parsing a row's timestamp.
// The 12-hour layout matches the upstream export format.
var timeLayouts = []string{
	"2006-01-02 03:04:05 PM",
	time.RFC3339,
}

// ReadEvents reads a CSV file with columns account_id, service_id, title and
// the given time column. Rows missing a required field or carrying an
// unparseable timestamp are dropped and counted, not returned. A missing
// file or missing required column is an error.
func ReadEvents(path, timeColumn string) ([]model.Event, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	events, dropped, err := readEvents(f, timeColumn)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}
	if dropped > 0 {
		slog.Warn("dropped malformed rows", "path", path, "dropped", dropped)
	}
	return events, dropped, nil
}

func readEvents(r io.Reader, timeColumn string) ([]model.Event, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // row width validated against the header below

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	required := []string{"account_id", "service_id", "title", timeColumn}
	idx := make([]int, len(required))
	for i, name := range required {
		j, ok := cols[name]
		if !ok {
			return nil, 0, fmt.Errorf("missing required column %q", name)
		}
		idx[i] = j
	}

	var events []model.Event
	dropped := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Structurally broken row: drop it, keep reading.
			dropped++
			continue
		}

		ev, ok := rowToEvent(row, idx)
		if !ok {
			dropped++
			continue
		}
		events = append(events, ev)
	}

	return events, dropped, nil
}

// rowToEvent maps a row onto an Event using the resolved column indexes
// (account, service, title, time). Fails closed on any bad field.
func rowToEvent(row []string, idx []int) (model.Event, bool) {
	fields := make([]string, len(idx))
	for i, j := range idx {
		if j >= len(row) {
			return model.Event{}, false
		}
		fields[i] = strings.TrimSpace(row[j])
		if fields[i] == "" {
			return model.Event{}, false
		}
	}

	ts, err := parseTimestamp(fields[3])
	if err != nil {
		return model.Event{}, false
	}

	return model.Event{
		AccountID: fields[0],
		ServiceID: fields[1],
		Title:     fields[2],
		Timestamp: ts,
	}, true
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
