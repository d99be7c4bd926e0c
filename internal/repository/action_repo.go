package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"calibration_console/internal/models"

	"github.com/google/uuid"
)

type ActionSQLite struct {
	db *sql.DB
}

func NewActionSQLite(db *sql.DB) *ActionSQLite { return &ActionSQLite{db: db} }

var _ ActionRepo = (*ActionSQLite)(nil)

const insertActionSQL = `
		INSERT INTO action_log (id, occurred_at, action, operator_id, data)
		VALUES (?, ?, ?, ?, ?)
	`

// Append stores one audit record. RecordID and OccurredAt are filled in when empty.
func (r *ActionSQLite) Append(ctx context.Context, rec models.ActionRecord) error {
	if rec.RecordID == "" {
		rec.RecordID = uuid.NewString()
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	} else {
		rec.OccurredAt = rec.OccurredAt.UTC()
	}

	var data *string
	if rec.Data != nil {
		b, err := json.Marshal(rec.Data)
		if err != nil {
			return fmt.Errorf("encode action data: %w", err)
		}
		s := string(b)
		data = &s
	}

	var operator *int
	if rec.OperatorID != 0 {
		operator = &rec.OperatorID
	}

	if _, err := r.db.ExecContext(ctx, insertActionSQL,
		rec.RecordID,
		rec.OccurredAt.Format(sqliteTimeLayout),
		strings.TrimSpace(rec.ActionID),
		operator,
		data,
	); err != nil {
		return fmt.Errorf("insert action %q: %w", rec.ActionID, err)
	}
	return nil
}

// List returns records in [from, to] (either bound optional) for an optional
// action id, oldest first.
func (r *ActionSQLite) List(ctx context.Context, from, to time.Time, action string) ([]models.ActionRecord, error) {
	var (
		conds []string
		args  []any
	)

	if !from.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, from.UTC().Format(sqliteTimeLayout))
	}
	if !to.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, to.UTC().Format(sqliteTimeLayout))
	}
	if action = strings.TrimSpace(action); action != "" {
		conds = append(conds, "action = ?")
		args = append(args, action)
	}

	q := `SELECT id, occurred_at, action, operator_id, data FROM action_log`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY occurred_at ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query action log: %w", err)
	}
	defer rows.Close()

	out := make([]models.ActionRecord, 0, 64)
	for rows.Next() {
		var (
			rec      models.ActionRecord
			operator sql.NullInt64
			data     sql.NullString
		)
		if err := rows.Scan(&rec.RecordID, &rec.OccurredAt, &rec.ActionID, &operator, &data); err != nil {
			return nil, fmt.Errorf("scan action record: %w", err)
		}
		rec.OccurredAt = rec.OccurredAt.UTC()
		if operator.Valid {
			rec.OperatorID = int(operator.Int64)
		}
		if data.Valid && data.String != "" {
			var v any
			if err := json.Unmarshal([]byte(data.String), &v); err == nil {
				rec.Data = v
			} else {
				rec.Data = data.String
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action log: %w", err)
	}
	return out, nil
}
