package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/change-correlator/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndGetClassification(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.PutClassification(ctx, "change_noise", "deploy api", model.LabelMeaningful, "gpt-4o-mini")
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	label, found, err := s.GetClassification(ctx, "change_noise", "deploy api")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("expected verdict to be found")
	}
	if label != model.LabelMeaningful {
		t.Errorf("expected MEANINGFUL, got %q", label)
	}
}

func TestGetClassificationMiss(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, found, err := s.GetClassification(ctx, "change_noise", "unknown")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Error("expected miss")
	}
}

func TestFirstVerdictWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.PutClassification(ctx, "causality", "outage ||| deploy", model.LabelCausal, "m1")
	s.PutClassification(ctx, "causality", "outage ||| deploy", model.LabelNotCausal, "m2")

	label, _, _ := s.GetClassification(ctx, "causality", "outage ||| deploy")
	if label != model.LabelCausal {
		t.Errorf("expected first verdict to stick, got %q", label)
	}
}

func TestKindsAreSeparateNamespaces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.PutClassification(ctx, "change_noise", "restart", model.LabelMeaningful, "m")
	s.PutClassification(ctx, "incident_noise", "restart", model.LabelNoise, "m")

	label, _, _ := s.GetClassification(ctx, "incident_noise", "restart")
	if label != model.LabelNoise {
		t.Errorf("expected NOISE under incident_noise, got %q", label)
	}
}

func TestClearClassifications(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.PutClassification(ctx, "change_noise", "a", model.LabelMeaningful, "m")
	s.PutClassification(ctx, "change_noise", "b", model.LabelNoise, "m")
	s.PutClassification(ctx, "causality", "x ||| y", model.LabelCausal, "m")

	n, err := s.ClearClassifications(ctx, "change_noise")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 cleared, got %d", n)
	}

	_, found, _ := s.GetClassification(ctx, "causality", "x ||| y")
	if !found {
		t.Error("expected other kind to survive a scoped clear")
	}

	n, _ = s.ClearClassifications(ctx, "")
	if n != 1 {
		t.Errorf("expected 1 cleared by full clear, got %d", n)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	defer s.Close()

	s.PutClassification(ctx, "change_noise", "a", model.LabelMeaningful, "m")
	s.PutClassification(ctx, "change_noise", "b", model.LabelNoise, "m")
	s.PutClassification(ctx, "causality", "x ||| y", model.LabelCausal, "m")

	stats, err := s.Stats(ctx, dbPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("expected 3 total, got %d", stats.Total)
	}
	if len(stats.Kinds) != 2 {
		t.Errorf("expected 2 kinds, got %d", len(stats.Kinds))
	}
	if stats.Kinds[0].Kind != "change_noise" || stats.Kinds[0].Count != 2 {
		t.Errorf("expected change_noise first with 2, got %+v", stats.Kinds[0])
	}
	if stats.DBSizeBytes == 0 {
		t.Error("expected non-zero db size")
	}
}

func TestRecordRunAndListRuns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := map[model.Pair]int{
		{IncidentTitle: "outage", ChangeTitle: "deploy"}: 3,
		{IncidentTitle: "outage", ChangeTitle: "config"}: 1,
	}

	id, err := s.RecordRun(ctx, Run{
		StartedAt:      started,
		FinishedAt:     started.Add(time.Minute),
		WindowMinutes:  60,
		Model:          "gpt-4o-mini",
		ChangesTotal:   10,
		IncidentsTotal: 5,
		CandidatePairs: 2,
		CausalPairs:    1,
	}, raw)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty run id")
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].ID != id || runs[0].WindowMinutes != 60 || runs[0].CandidatePairs != 2 {
		t.Errorf("unexpected run: %+v", runs[0])
	}
	if !runs[0].StartedAt.Equal(started) {
		t.Errorf("expected started_at %v, got %v", started, runs[0].StartedAt)
	}

	pairs, err := s.RawPairs(ctx, id)
	if err != nil {
		t.Fatalf("raw pairs: %v", err)
	}
	if pairs[model.Pair{IncidentTitle: "outage", ChangeTitle: "deploy"}] != 3 {
		t.Errorf("unexpected raw pairs: %v", pairs)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.RecordRun(ctx, Run{
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + time.Minute),
			Model:      "m",
		}, nil)
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	runs, _ := s.ListRuns(ctx, 2)
	if len(runs) != 2 {
		t.Fatalf("expected limit 2, got %d", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Errorf("expected newest first, got %v then %v", runs[0].StartedAt, runs[1].StartedAt)
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "cache.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}
