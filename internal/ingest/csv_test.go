package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestReadEvents(t *testing.T) {
	path := writeCSV(t, `account_id,service_id,title,timestamp
A1,S1,deploy api,2024-03-01 11:10:00 AM
A1,S2,rotate certs,2024-03-01 02:30:00 PM
`)

	events, dropped, err := ReadEvents(path, ChangeTimeColumn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if dropped != 0 {
		t.Errorf("expected 0 dropped, got %d", dropped)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Title != "deploy api" || events[0].AccountID != "A1" || events[0].ServiceID != "S1" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	want := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	if !events[1].Timestamp.Equal(want) {
		t.Errorf("expected PM timestamp %v, got %v", want, events[1].Timestamp)
	}
}

func TestReadEventsIncidentTimeColumn(t *testing.T) {
	path := writeCSV(t, `account_id,service_id,title,triggered_at,severity
A1,S1,api down,2024-03-01 12:00:00 PM,high
`)

	events, _, err := ReadEvents(path, IncidentTimeColumn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Timestamp.Hour() != 12 {
		t.Errorf("expected noon, got %v", events[0].Timestamp)
	}
}

func TestReadEventsDropsMalformedRows(t *testing.T) {
	path := writeCSV(t, `account_id,service_id,title,timestamp
A1,S1,good row,2024-03-01 11:10:00 AM
A1,S1,bad timestamp,not-a-time
,S1,missing account,2024-03-01 11:10:00 AM
A1,S1,short row
A1,S1,also good,2024-03-01 11:20:00 AM
`)

	events, dropped, err := ReadEvents(path, ChangeTimeColumn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 kept events, got %d", len(events))
	}
	if dropped != 3 {
		t.Errorf("expected 3 dropped rows, got %d", dropped)
	}
}

func TestReadEventsRFC3339Fallback(t *testing.T) {
	path := writeCSV(t, `account_id,service_id,title,timestamp
A1,S1,deploy,2024-03-01T11:10:00Z
`)

	events, _, err := ReadEvents(path, ChangeTimeColumn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
}

func TestReadEventsMissingColumn(t *testing.T) {
	path := writeCSV(t, `account_id,service_id,title
A1,S1,deploy
`)

	_, _, err := ReadEvents(path, ChangeTimeColumn)
	if err == nil {
		t.Fatal("expected error for missing timestamp column")
	}
}

func TestReadEventsMissingFile(t *testing.T) {
	_, _, err := ReadEvents(filepath.Join(t.TempDir(), "nope.csv"), ChangeTimeColumn)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
