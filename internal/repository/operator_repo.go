package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"calibration_console/internal/models"
)

const sqliteTimeLayout = "2006-01-02 15:04:05"

type OperatorSQLite struct {
	db *sql.DB
}

func NewOperatorSQLite(db *sql.DB) *OperatorSQLite {
	return &OperatorSQLite{db: db}
}

var _ Authorization = (*OperatorSQLite)(nil)

const (
	insertOperatorSQL     = `INSERT INTO operators (username, password_hash) VALUES (?, ?)`
	selectOperatorSQL     = `SELECT id, username, password_hash, last_sign_in_at FROM operators WHERE username = ?`
	updateOperatorSignSQL = `UPDATE operators SET last_sign_in_at = ? WHERE id = ?`
)

// Create inserts an operator and returns its ID.
func (r *OperatorSQLite) Create(ctx context.Context, username, passwordHash string) (int, error) {
	res, err := r.db.ExecContext(ctx, insertOperatorSQL, username, passwordHash)
	if err != nil {
		return 0, fmt.Errorf("insert operator %q: %w", username, err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id for operator %q: %w", username, err)
	}
	return int(lastID), nil
}

// GetByUsername returns (nil, nil) when the operator does not exist.
func (r *OperatorSQLite) GetByUsername(ctx context.Context, username string) (*models.Operator, error) {
	var (
		op       models.Operator
		signedIn sql.NullString
	)
	err := r.db.QueryRowContext(ctx, selectOperatorSQL, username).
		Scan(&op.ID, &op.Username, &op.PasswordHash, &signedIn)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("select operator %q: %w", username, err)
	}

	if signedIn.Valid && signedIn.String != "" {
		at, err := time.Parse(sqliteTimeLayout, signedIn.String)
		if err != nil {
			return nil, fmt.Errorf("parse last sign-in of %q: %w", username, err)
		}
		op.LastSignInAt = &at
	}
	return &op, nil
}

// TouchSignIn records a successful sign-in.
func (r *OperatorSQLite) TouchSignIn(ctx context.Context, id int, at time.Time) error {
	res, err := r.db.ExecContext(ctx, updateOperatorSignSQL, at.UTC().Format(sqliteTimeLayout), id)
	if err != nil {
		return fmt.Errorf("update sign-in of operator %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update sign-in of operator %d: %w", id, sql.ErrNoRows)
	}
	return nil
}
