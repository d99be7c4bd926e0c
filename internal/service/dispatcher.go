package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"calibration_console/internal/logger"
	"calibration_console/internal/metrics"
	"calibration_console/internal/models"
	"calibration_console/internal/repository"
	"calibration_console/internal/view"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Emitter sends one event to the rig over the session socket.
type Emitter interface {
	Emit(event string, payload any) error
}

// Action ids understood by the rig session.
const (
	ActionSystemCalibration   = "run-system-calibration"
	ActionStandardCalibration = "run-std-calibration"
	ActionSignoffSuffix       = "-calibration-signoff"
	ActionRerunSingle         = "rerun-single"
	ActionRawCommand          = "raw-cmd-input"
	ActionSettingsSuffix      = "-settings"
	ActionDRSCalib            = "drs-calib"
)

// The rig needs a moment to register a signed-off session before it is
// listed as a valid reference.
const (
	referenceReloadDelay   = 100 * time.Millisecond
	referenceReloadTimeout = 10 * time.Second
)

// ActionDispatcher validates operator actions and turns each valid one into
// exactly one command envelope on the rig socket.
type ActionDispatcher struct {
	emitter  Emitter
	tracker  *SessionTracker
	catalog  *CatalogService
	audit    repository.ActionRepo
	metrics  *metrics.Metrics
	log      *logger.Logger
	validate *validator.Validate

	mu         sync.Mutex
	drsPending bool
	lastDRS    map[string]any
}

func NewActionDispatcher(emitter Emitter, tracker *SessionTracker, audit repository.ActionRepo, m *metrics.Metrics, log *logger.Logger) *ActionDispatcher {
	if log == nil {
		log = logger.Nop()
	}
	d := &ActionDispatcher{
		emitter:  emitter,
		tracker:  tracker,
		audit:    audit,
		metrics:  m,
		log:      log,
		validate: newValidator(),
	}
	tracker.OnCommandDone(d.onCommandDone)
	return d
}

// SetCatalog makes board type and reference selections checked against the
// loaded option lists. Selections are not checked while a list is empty.
func (d *ActionDispatcher) SetCatalog(c *CatalogService) { d.catalog = c }

func (d *ActionDispatcher) selectable(kind, value string) bool {
	if d.catalog == nil {
		return true
	}
	var list view.OptionList
	if kind == "reference" {
		list = d.catalog.References()
	} else {
		list, _ = d.catalog.Options(kind)
	}
	return len(list.Options) == 0 || list.Contains(value)
}

// RunSystemCalibration starts a system calibration for the selected board type.
func (d *ActionDispatcher) RunSystemCalibration(ctx context.Context, operatorID int, f SystemCalibrationForm) (models.CommandEnvelope, error) {
	if strings.TrimSpace(f.BoardType) == "" || !d.selectable(models.BoardKindSystem, f.BoardType) {
		return d.reject(ActionSystemCalibration, "boardtype", "System calibration board type not selected")
	}
	return d.send(ctx, operatorID, ActionSystemCalibration, map[string]any{
		"boardtype": f.BoardType,
	}, true)
}

// RunStandardCalibration starts a standard calibration. Fields are checked in
// form order and only the first problem is reported.
func (d *ActionDispatcher) RunStandardCalibration(ctx context.Context, operatorID int, f StandardCalibrationForm) (models.CommandEnvelope, error) {
	switch {
	case f.BoardID == "":
		return d.reject(ActionStandardCalibration, "boardid", "Board ID not specified")
	case strings.TrimSpace(f.BoardType) == "" || !d.selectable(models.BoardKindStandard, f.BoardType):
		return d.reject(ActionStandardCalibration, "boardtype", "Board type for standard calibration is not selected")
	case strings.TrimSpace(f.Reference) == "" || !d.selectable("reference", f.Reference):
		return d.reject(ActionStandardCalibration, "reference", "Reference calibration session is not selected")
	}
	return d.send(ctx, operatorID, ActionStandardCalibration, map[string]any{
		"boardid":   f.BoardID,
		"boardtype": f.BoardType,
		"reference": f.Reference,
	}, true)
}

// SignOff submits the finished calibration of the given session type.
// Comments for the same detector are joined with newlines.
func (d *ActionDispatcher) SignOff(ctx context.Context, operatorID int, sessionType string, f SignoffForm) (models.CommandEnvelope, error) {
	if sessionType != models.SessionTypeSystem && sessionType != models.SessionTypeStandard {
		return models.CommandEnvelope{}, fmt.Errorf("%w: %s%s", models.ErrUnknownAction, sessionType, ActionSignoffSuffix)
	}
	action := sessionType + ActionSignoffSuffix

	comments := make(map[string]string, len(f.Comments))
	for _, c := range f.Comments {
		if prev, ok := comments[c.DetID]; ok {
			comments[c.DetID] = prev + "\n" + c.Comment
			continue
		}
		comments[c.DetID] = c.Comment
	}
	env, err := d.send(ctx, operatorID, action, map[string]any{
		"comments": comments,
		"user":     f.User,
		"pwd":      f.Password,
	}, false)
	if err != nil {
		return env, err
	}
	d.reloadReferences()
	return env, nil
}

// reloadReferences refreshes the valid-reference list in the background.
func (d *ActionDispatcher) reloadReferences() {
	if d.catalog == nil {
		return
	}
	go func() {
		time.Sleep(referenceReloadDelay)
		ctx, cancel := context.WithTimeout(context.Background(), referenceReloadTimeout)
		defer cancel()
		if err := d.catalog.RefreshReferences(ctx); err != nil {
			d.log.Warnw("reference_reload_failed", "err", err)
		}
	}()
}

// RerunSingle reruns (or extends) one process for one detector.
func (d *ActionDispatcher) RerunSingle(ctx context.Context, operatorID int, f RerunForm) (models.CommandEnvelope, error) {
	if !rerunActions[f.Action] {
		names := make([]string, 0, len(rerunActions))
		for name := range rerunActions {
			names = append(names, name)
		}
		sort.Strings(names)
		return d.reject(ActionRerunSingle, "action", "Process must be one of "+strings.Join(names, ", "))
	}
	if f.DetID == nil {
		return d.reject(ActionRerunSingle, "detid", "Detector ID not specified")
	}
	return d.send(ctx, operatorID, ActionRerunSingle, map[string]any{
		"action": f.Action,
		"detid":  *f.DetID,
		"extend": f.Extend,
	}, false)
}

// RawCommand forwards a command line typed by the operator.
func (d *ActionDispatcher) RawCommand(ctx context.Context, operatorID int, f RawCommandForm) (models.CommandEnvelope, error) {
	if strings.TrimSpace(f.Input) == "" {
		return d.reject(ActionRawCommand, "input", "Command input is empty")
	}
	return d.send(ctx, operatorID, ActionRawCommand, map[string]any{"input": f.Input}, false)
}

// UpdateSettings validates and sends one settings form. kind is one of
// SettingsKinds.
func (d *ActionDispatcher) UpdateSettings(ctx context.Context, operatorID int, kind string, body []byte) (models.CommandEnvelope, error) {
	action := kind + ActionSettingsSuffix
	payload, err := decodeSettings(d.validate, kind, body)
	if err != nil {
		if ve, ok := err.(*ValidationError); ok {
			return d.reject(action, ve.Field, ve.Message)
		}
		return models.CommandEnvelope{}, err
	}

	env, err := d.send(ctx, operatorID, action, payload, false)
	if err == nil && kind == "drs" {
		d.mu.Lock()
		d.lastDRS = payload
		d.mu.Unlock()
	}
	return env, err
}

// StartDRSCalibration asks the rig to calibrate the DRS. When the command
// completes the last DRS settings are sent again, once.
func (d *ActionDispatcher) StartDRSCalibration(ctx context.Context, operatorID int) (models.CommandEnvelope, error) {
	env, err := d.send(ctx, operatorID, ActionDRSCalib, map[string]any{}, false)
	if err != nil {
		return env, err
	}
	d.mu.Lock()
	d.drsPending = true
	d.mu.Unlock()
	return env, nil
}

// DRSCalibComplete re-sends the DRS settings if this console requested the
// calibration. It reports whether a resend happened.
func (d *ActionDispatcher) DRSCalibComplete(ctx context.Context) bool {
	d.mu.Lock()
	if !d.drsPending {
		d.mu.Unlock()
		return false
	}
	d.drsPending = false
	settings := d.lastDRS
	d.mu.Unlock()

	if settings == nil {
		if synced, ok := d.tracker.Settings("drs"); ok {
			settings = synced
		}
	}
	if settings == nil {
		d.log.Warnw("drs_resend_skipped", "reason", "no drs settings known")
		return false
	}
	if _, err := d.send(ctx, 0, "drs"+ActionSettingsSuffix, settings, false); err != nil {
		return false
	}
	return true
}

func (d *ActionDispatcher) onCommandDone(ok bool) {
	if !ok {
		return
	}
	d.DRSCalibComplete(context.Background())
}

// CompleteUserAction tells the rig the operator finished the requested manual step.
func (d *ActionDispatcher) CompleteUserAction(ctx context.Context, operatorID int) error {
	if err := d.emitter.Emit(models.EventCompleteUserAction, ""); err != nil {
		d.metrics.EmitFailed(models.EventCompleteUserAction)
		d.log.Errorw("action_emit_failed", "action", models.EventCompleteUserAction, "err", err)
		return fmt.Errorf("emit %s: %w", models.EventCompleteUserAction, err)
	}
	d.metrics.CommandSent(models.EventCompleteUserAction)
	d.tracker.HideUserAction()
	d.record(ctx, operatorID, models.EventCompleteUserAction, nil)
	return nil
}

func (d *ActionDispatcher) reject(action, field, msg string) (models.CommandEnvelope, error) {
	d.tracker.SetFormError(action, FieldError{Field: field, Message: msg})
	d.metrics.ValidationRejected(action)
	return models.CommandEnvelope{}, &ValidationError{Field: field, Message: msg}
}

func (d *ActionDispatcher) send(ctx context.Context, operatorID int, action string, data map[string]any, hidePanel bool) (models.CommandEnvelope, error) {
	env := models.CommandEnvelope{ID: action, Data: data}

	d.tracker.ClearForm(action)
	if err := d.emitter.Emit(models.EventRunActionCmd, env); err != nil {
		d.metrics.EmitFailed(action)
		d.log.Errorw("action_emit_failed", "action", action, "err", err)
		return models.CommandEnvelope{}, fmt.Errorf("emit %s: %w", action, err)
	}
	d.metrics.CommandSent(action)
	if hidePanel {
		d.tracker.HideActionPanel()
	}
	d.log.Infow("action_sent", "action", action, "operator", operatorID)

	d.record(ctx, operatorID, action, redact(data))
	return env, nil
}

func (d *ActionDispatcher) record(ctx context.Context, operatorID int, action string, data any) {
	if d.audit == nil {
		return
	}
	rec := models.ActionRecord{
		RecordID:   uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		ActionID:   action,
		OperatorID: operatorID,
		Data:       data,
	}
	if err := d.audit.Append(ctx, rec); err != nil {
		d.log.Warnw("action_audit_failed", "action", action, "err", err)
	}
}

// redact drops credentials before a payload is written to the audit log.
func redact(data map[string]any) map[string]any {
	if _, ok := data["pwd"]; !ok {
		return data
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if k == "pwd" {
			continue
		}
		out[k] = v
	}
	return out
}
