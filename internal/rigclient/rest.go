// Package rigclient talks to the rig server: JSON reports over HTTP and the
// session socket for commands and sync signals.
package rigclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"calibration_console/internal/models"
)

const maxErrorBody = 512

// REST fetches reports from the rig server.
type REST struct {
	baseURL string
	client  *http.Client
}

// NewREST builds a client for baseURL. Every request is bounded by timeout
// in addition to the caller's context.
func NewREST(baseURL string, timeout time.Duration) *REST {
	return &REST{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Status returns the latest monitoring snapshot.
func (r *REST) Status(ctx context.Context) (models.StatusSnapshot, error) {
	body, err := r.get(ctx, "report/status")
	if err != nil {
		return models.StatusSnapshot{}, err
	}
	return models.DecodeStatusSnapshot(body)
}

// Boards returns the board catalog of the given kind (system or standard).
func (r *REST) Boards(ctx context.Context, kind string) (models.BoardCatalog, error) {
	if kind != models.BoardKindSystem && kind != models.BoardKindStandard {
		return nil, fmt.Errorf("unknown board kind %q", kind)
	}
	body, err := r.get(ctx, "report/"+kind+"boards")
	if err != nil {
		return nil, err
	}
	var catalog models.BoardCatalog
	if err := json.Unmarshal(body, &catalog); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
	}
	if catalog == nil {
		catalog = models.BoardCatalog{}
	}
	return catalog, nil
}

// ValidReference returns the reference sessions usable for standard calibration.
func (r *REST) ValidReference(ctx context.Context) (models.ReferenceList, error) {
	body, err := r.get(ctx, "report/validreference")
	if err != nil {
		return models.ReferenceList{}, err
	}
	var raw struct {
		Valid *[]models.Reference `json:"valid"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.ReferenceList{}, fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
	}
	if raw.Valid == nil {
		return models.ReferenceList{}, fmt.Errorf("%w: missing %q", models.ErrMalformedPayload, "valid")
	}
	return models.ReferenceList{Valid: *raw.Valid}, nil
}

// DebugData returns the cached histogram of a debugging process.
func (r *REST) DebugData(ctx context.Context, process string) (models.DebugHistogram, error) {
	if strings.TrimSpace(process) == "" {
		return models.DebugHistogram{}, fmt.Errorf("debug process is required")
	}
	body, err := r.get(ctx, "debug_data/"+url.PathEscape(process))
	if err != nil {
		return models.DebugHistogram{}, err
	}
	return models.DecodeDebugHistogram(body)
}

// Settings returns the rig's current device settings as reported.
func (r *REST) Settings(ctx context.Context) (map[string]any, error) {
	body, err := r.get(ctx, "report/settings")
	if err != nil {
		return nil, err
	}
	var settings map[string]any
	if err := json.Unmarshal(body, &settings); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
	}
	return settings, nil
}

func (r *REST) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/"+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("get %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return body, nil
}
