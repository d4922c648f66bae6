package telemetry

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS samples (
	run_id    TEXT NOT NULL,
	step      INTEGER NOT NULL,
	vehicle   TEXT NOT NULL,
	kind      TEXT NOT NULL,
	roll_deg  DOUBLE,
	pitch_deg DOUBLE,
	lean_deg  DOUBLE,
	speed     DOUBLE,
	upright   DOUBLE,
	grounded  INTEGER,
	emergency INTEGER,
	recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS samples_run_vehicle ON samples (run_id, vehicle, step);
CREATE TABLE IF NOT EXISTS events (
	run_id  TEXT NOT NULL,
	step    INTEGER NOT NULL,
	vehicle TEXT NOT NULL,
	kind    TEXT NOT NULL,
	type    TEXT NOT NULL,
	recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteSink stores samples and events in a SQLite file.
type SQLiteSink struct {
	db *sql.DB
}

var _ Sink = (*SQLiteSink)(nil)

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply telemetry schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// WriteSamples inserts samples in one transaction.
func (s *SQLiteSink) WriteSamples(ctx context.Context, runID string, samples []Sample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO samples
		(run_id, step, vehicle, kind, roll_deg, pitch_deg, lean_deg, speed, upright, grounded, emergency)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, smp := range samples {
		_, err := stmt.ExecContext(ctx, runID, int64(smp.Step), smp.Vehicle, smp.Kind,
			smp.RollDeg, smp.PitchDeg, smp.LeanDeg, smp.Speed, smp.Upright,
			boolInt(smp.Grounded), boolInt(smp.Emergency))
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert sample step %d: %w", smp.Step, err)
		}
	}
	return tx.Commit()
}

// WriteEvents inserts events in one transaction.
func (s *SQLiteSink) WriteEvents(ctx context.Context, runID string, events []EventRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, ev := range events {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO events (run_id, step, vehicle, kind, type) VALUES (?, ?, ?, ?, ?)",
			runID, int64(ev.Step), ev.Vehicle, ev.Kind, ev.Type)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert event %s: %w", ev.Type, err)
		}
	}
	return tx.Commit()
}

// LoadSamples reads back one vehicle's samples for a run, ordered by step.
func (s *SQLiteSink) LoadSamples(ctx context.Context, runID, vehicle string) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT step, vehicle, kind, roll_deg, pitch_deg, lean_deg,
		speed, upright, grounded, emergency FROM samples
		WHERE run_id = ? AND vehicle = ? ORDER BY step`, runID, vehicle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var smp Sample
		var step int64
		var grounded, emergency int
		if err := rows.Scan(&step, &smp.Vehicle, &smp.Kind, &smp.RollDeg, &smp.PitchDeg, &smp.LeanDeg,
			&smp.Speed, &smp.Upright, &grounded, &emergency); err != nil {
			return nil, err
		}
		smp.Step = uint64(step)
		smp.Grounded = grounded != 0
		smp.Emergency = emergency != 0
		out = append(out, smp)
	}
	return out, rows.Err()
}

// CountEvents returns per-type event counts for a run.
func (s *SQLiteSink) CountEvents(ctx context.Context, runID string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT type, COUNT(*) FROM events WHERE run_id = ? GROUP BY type", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var typ string
		var n int64
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		out[typ] = n
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
