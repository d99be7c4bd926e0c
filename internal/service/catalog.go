package service

import (
	"context"
	"fmt"
	"sync"

	"calibration_console/internal/logger"
	"calibration_console/internal/models"
	"calibration_console/internal/view"
)

// CatalogFetcher reads the board and reference reports.
type CatalogFetcher interface {
	Boards(ctx context.Context, kind string) (models.BoardCatalog, error)
	ValidReference(ctx context.Context) (models.ReferenceList, error)
}

// CatalogService keeps the option lists shown in the calibration forms.
// Refreshes never overlap; a failed refresh leaves the previous list in place.
type CatalogService struct {
	fetcher CatalogFetcher
	log     *logger.Logger

	refreshMu sync.Mutex

	mu         sync.RWMutex
	boards     map[string]view.OptionList
	references view.OptionList
}

func NewCatalogService(fetcher CatalogFetcher, log *logger.Logger) *CatalogService {
	if log == nil {
		log = logger.Nop()
	}
	return &CatalogService{
		fetcher: fetcher,
		log:     log,
		boards: map[string]view.OptionList{
			models.BoardKindSystem:   {Kind: models.BoardKindSystem, Options: []view.Option{}},
			models.BoardKindStandard: {Kind: models.BoardKindStandard, RequiresBoardID: true, Options: []view.Option{}},
		},
		references: view.OptionList{Kind: "reference", Options: []view.Option{}},
	}
}

// RefreshBoards reloads the board list of kind.
func (c *CatalogService) RefreshBoards(ctx context.Context, kind string) error {
	if kind != models.BoardKindSystem && kind != models.BoardKindStandard {
		return fmt.Errorf("unknown board kind %q", kind)
	}
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	catalog, err := c.fetcher.Boards(ctx, kind)
	if err != nil {
		c.log.Warnw("catalog_refresh_failed", "kind", kind, "err", err)
		return fmt.Errorf("refresh %s boards: %w", kind, err)
	}

	list := view.BuildBoardOptions(kind, catalog)
	c.mu.Lock()
	c.boards[kind] = list
	c.mu.Unlock()
	c.log.Debugw("catalog_refreshed", "kind", kind, "options", len(list.Options))
	return nil
}

// RefreshReferences reloads the valid reference sessions.
func (c *CatalogService) RefreshReferences(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	refs, err := c.fetcher.ValidReference(ctx)
	if err != nil {
		c.log.Warnw("catalog_refresh_failed", "kind", "reference", "err", err)
		return fmt.Errorf("refresh references: %w", err)
	}

	list := view.BuildReferenceOptions(refs)
	c.mu.Lock()
	c.references = list
	c.mu.Unlock()
	c.log.Debugw("catalog_refreshed", "kind", "reference", "options", len(list.Options))
	return nil
}

// RefreshAll reloads system boards, standard boards and references in that
// order. Every refresh is attempted; the first error is returned.
func (c *CatalogService) RefreshAll(ctx context.Context) error {
	var first error
	for _, kind := range []string{models.BoardKindSystem, models.BoardKindStandard} {
		if err := c.RefreshBoards(ctx, kind); err != nil && first == nil {
			first = err
		}
	}
	if err := c.RefreshReferences(ctx); err != nil && first == nil {
		first = err
	}
	return first
}

// Options returns the current board list of kind.
func (c *CatalogService) Options(kind string) (view.OptionList, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.boards[kind]
	return l, ok
}

// References returns the current reference list.
func (c *CatalogService) References() view.OptionList {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.references
}
