package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"calibration_console/internal/models"
	"calibration_console/internal/repository"
)

// LogFilter narrows the action audit log.
type LogFilter struct {
	From   time.Time // inclusive; zero means no lower bound
	To     time.Time // inclusive; zero means no upper bound
	Action string    // action id, e.g. run-std-calibration
}

type ActionLogService struct {
	repo repository.ActionRepo
}

func NewActionLogService(repo repository.ActionRepo) *ActionLogService {
	return &ActionLogService{repo: repo}
}

var errInvalidTimeRange = errors.New("invalid time range: from must be <= to")

func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func (s *ActionLogService) List(ctx context.Context, f LogFilter) ([]models.ActionRecord, error) {
	from, to := normalizeToUTC(f.From), normalizeToUTC(f.To)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, errInvalidTimeRange
	}
	return s.repo.List(ctx, from, to, strings.ToLower(strings.TrimSpace(f.Action)))
}
