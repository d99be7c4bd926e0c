package repository

import (
	"context"
	"database/sql"
	"time"

	"calibration_console/internal/models"
)

// Authorization stores operator accounts.
type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.Operator, error)
	TouchSignIn(ctx context.Context, id int, at time.Time) error
}

// StatusRepo keeps the latest polled status so it survives a restart.
type StatusRepo interface {
	Save(ctx context.Context, rec models.StatusRecord) error
	Load(ctx context.Context) (models.StatusRecord, bool, error)
}

// ActionRepo is the audit log of emitted commands.
type ActionRepo interface {
	Append(ctx context.Context, rec models.ActionRecord) error
	List(ctx context.Context, from, to time.Time, action string) ([]models.ActionRecord, error)
}

type Repository struct {
	StatusRepo StatusRepo
	ActionRepo ActionRepo
	Auth       Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		StatusRepo: NewStatusSQLite(db),
		ActionRepo: NewActionSQLite(db),
		Auth:       NewOperatorSQLite(db),
	}
}
