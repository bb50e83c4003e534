package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/change-correlator/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS classifications (
		kind       TEXT NOT NULL,
		key        TEXT NOT NULL,
		label      TEXT NOT NULL,
		model      TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (kind, key)
	);

	CREATE TABLE IF NOT EXISTS runs (
		id                TEXT PRIMARY KEY,
		started_at        TEXT NOT NULL,
		finished_at       TEXT NOT NULL,
		window_minutes    INTEGER NOT NULL,
		model             TEXT NOT NULL,
		changes_total     INTEGER NOT NULL,
		changes_dropped   INTEGER NOT NULL,
		incidents_total   INTEGER NOT NULL,
		incidents_dropped INTEGER NOT NULL,
		candidate_pairs   INTEGER NOT NULL,
		causal_pairs      INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

	CREATE TABLE IF NOT EXISTS raw_pairs (
		run_id         TEXT NOT NULL REFERENCES runs(id),
		incident_title TEXT NOT NULL,
		change_title   TEXT NOT NULL,
		count          INTEGER NOT NULL,
		PRIMARY KEY (run_id, incident_title, change_title)
	);
	CREATE INDEX IF NOT EXISTS idx_raw_pairs_run ON raw_pairs(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetClassification looks up a cached verdict.
func (s *SQLiteStore) GetClassification(ctx context.Context, kind, key string) (model.Label, bool, error) {
	var label string
	err := s.db.QueryRowContext(ctx,
		`SELECT label FROM classifications WHERE kind = ? AND key = ?`,
		kind, key).Scan(&label)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return model.Label(label), true, nil
}

// PutClassification records a verdict. Existing entries are kept: the first
// definitive answer for a key is final.
func (s *SQLiteStore) PutClassification(ctx context.Context, kind, key string, label model.Label, modelName string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO classifications (kind, key, label, model, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		kind, key, string(label), modelName, now)
	if err != nil {
		return fmt.Errorf("insert classification: %w", err)
	}
	return nil
}

// ClearClassifications deletes cached verdicts. Empty kind clears all kinds.
func (s *SQLiteStore) ClearClassifications(ctx context.Context, kind string) (int, error) {
	var res sql.Result
	var err error
	if kind == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM classifications`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM classifications WHERE kind = ?`, kind)
	}
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Stats returns classification cache statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*CacheStats, error) {
	st := &CacheStats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM classifications`).Scan(&st.Total)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&st.Runs)

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) as cnt
		FROM classifications
		GROUP BY kind ORDER BY cnt DESC`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var ks KindStats
		rows.Scan(&ks.Kind, &ks.Count)
		st.Kinds = append(st.Kinds, ks)
	}

	return st, nil
}

// RecordRun persists a run and its pre-causality candidate counts.
func (s *SQLiteStore) RecordRun(ctx context.Context, run Run, rawPairs map[model.Pair]int) (string, error) {
	id := s.newID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, window_minutes, model,
		                   changes_total, changes_dropped, incidents_total, incidents_dropped,
		                   candidate_pairs, causal_pairs)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		run.WindowMinutes, run.Model,
		run.ChangesTotal, run.ChangesDropped,
		run.IncidentsTotal, run.IncidentsDropped,
		run.CandidatePairs, run.CausalPairs)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for pair, count := range rawPairs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO raw_pairs (run_id, incident_title, change_title, count)
			 VALUES (?, ?, ?, ?)`,
			id, pair.IncidentTitle, pair.ChangeTitle, count)
		if err != nil {
			return "", fmt.Errorf("insert raw pair: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// ListRuns returns recorded runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, window_minutes, model,
		       changes_total, changes_dropped, incidents_total, incidents_dropped,
		       candidate_pairs, causal_pairs
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		err := rows.Scan(&r.ID, &started, &finished, &r.WindowMinutes, &r.Model,
			&r.ChangesTotal, &r.ChangesDropped, &r.IncidentsTotal, &r.IncidentsDropped,
			&r.CandidatePairs, &r.CausalPairs)
		if err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		runs = append(runs, r)
	}

	return runs, nil
}

// RawPairs returns a run's pre-causality candidate counts.
func (s *SQLiteStore) RawPairs(ctx context.Context, runID string) (map[model.Pair]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT incident_title, change_title, count FROM raw_pairs WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pairs := map[model.Pair]int{}
	for rows.Next() {
		var p model.Pair
		var count int
		if err := rows.Scan(&p.IncidentTitle, &p.ChangeTitle, &count); err != nil {
			return nil, err
		}
		pairs[p] = count
	}
	return pairs, nil
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
