package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"calibration_console/internal/models"
)

type StatusSQLite struct {
	db *sql.DB
}

func NewStatusSQLite(db *sql.DB) *StatusSQLite {
	return &StatusSQLite{db: db}
}

var _ StatusRepo = (*StatusSQLite)(nil)

const (
	latestStatusRowID = 1

	upsertStatusSQL = `
		INSERT INTO status_latest (id, start, elapsed_s, temp1, temp2, volt1, volt2, x, y, z, state, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start=excluded.start,
			elapsed_s=excluded.elapsed_s,
			temp1=excluded.temp1,
			temp2=excluded.temp2,
			volt1=excluded.volt1,
			volt2=excluded.volt2,
			x=excluded.x,
			y=excluded.y,
			z=excluded.z,
			state=excluded.state,
			fetched_at=excluded.fetched_at
	`

	selectStatusSQL = `
		SELECT start, elapsed_s, temp1, temp2, volt1, volt2, x, y, z, state, fetched_at
		FROM status_latest WHERE id=?
	`
)

// Save replaces the single stored snapshot.
func (r *StatusSQLite) Save(ctx context.Context, rec models.StatusRecord) error {
	ts := rec.FetchedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	s := rec.Snapshot
	_, err := r.db.ExecContext(ctx, upsertStatusSQL,
		latestStatusRowID,
		s.Start,
		s.Time,
		s.Temp1,
		s.Temp2,
		s.Volt1,
		s.Volt2,
		s.Coord[0],
		s.Coord[1],
		s.Coord[2],
		int(rec.State),
		ts,
	)
	if err != nil {
		return fmt.Errorf("save latest status: %w", err)
	}
	return nil
}

// Load returns the stored snapshot. found is false when nothing was saved yet.
func (r *StatusSQLite) Load(ctx context.Context) (models.StatusRecord, bool, error) {
	var (
		rec   models.StatusRecord
		state int
	)
	s := &rec.Snapshot
	err := r.db.QueryRowContext(ctx, selectStatusSQL, latestStatusRowID).Scan(
		&s.Start,
		&s.Time,
		&s.Temp1,
		&s.Temp2,
		&s.Volt1,
		&s.Volt2,
		&s.Coord[0],
		&s.Coord[1],
		&s.Coord[2],
		&state,
		&rec.FetchedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.StatusRecord{}, false, nil
		}
		return models.StatusRecord{}, false, fmt.Errorf("load latest status: %w", err)
	}
	rec.State = models.SessionState(state)
	rec.FetchedAt = rec.FetchedAt.UTC()
	return rec, true, nil
}
