package service

import (
	"encoding/json"
	"fmt"
	"sync"

	"calibration_console/internal/logger"
	"calibration_console/internal/models"
	"calibration_console/internal/rigclient"
)

// FieldError is the inline error shown under one form.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// DisplayBoard is the shared, console-wide display state.
type DisplayBoard struct {
	Message            string                `json:"message"`
	Error              string                `json:"error"`
	FormErrors         map[string]FieldError `json:"form_errors"` // keyed by action id
	ActionPanelVisible bool                  `json:"action_panel_visible"`
	UserActionVisible  bool                  `json:"user_action_visible"`
}

// SessionSnapshot mirrors the rig session as last synced.
type SessionSnapshot struct {
	State         models.SessionState `json:"state"`
	StateLabel    string              `json:"state_label"`
	SessionType   string              `json:"session_type"`
	TileboardType string              `json:"tileboard_type"`
	CmdProgress   [2]int              `json:"cmd_progress"`
	CalibProgress map[string]any      `json:"calib_progress,omitempty"`
	Settings      map[string]any      `json:"settings,omitempty"`
	Display       DisplayBoard        `json:"display"`
}

// SignalSource delivers inbound rig events.
type SignalSource interface {
	Handle(event string, fn rigclient.HandlerFunc)
}

// SessionTracker is a read-only mirror of the rig-owned session. It only
// changes in response to sync signals, except for the display board which the
// console itself drives.
type SessionTracker struct {
	log *logger.Logger

	mu     sync.RWMutex
	snap   SessionSnapshot
	subs   map[int]chan SessionSnapshot
	nextID int
	onDone []func(ok bool)
}

func NewSessionTracker(log *logger.Logger) *SessionTracker {
	if log == nil {
		log = logger.Nop()
	}
	return &SessionTracker{
		log: log,
		snap: SessionSnapshot{
			State:      models.StateIdle,
			StateLabel: models.StateIdle.String(),
			Display: DisplayBoard{
				FormErrors:         map[string]FieldError{},
				ActionPanelVisible: true,
			},
		},
		subs: map[int]chan SessionSnapshot{},
	}
}

var trackedEvents = []string{
	models.EventSyncSystemState,
	models.EventSyncSessionType,
	models.EventSyncSettings,
	models.EventSyncTileboardType,
	models.EventSyncCmdProgress,
	models.EventSyncCalibProgress,
	models.EventDisplayMessage,
	models.EventDisplayError,
}

// Bind registers the tracker for every sync signal on src.
func (t *SessionTracker) Bind(src SignalSource) {
	for _, event := range trackedEvents {
		event := event
		src.Handle(event, func(data json.RawMessage) {
			if err := t.Apply(event, data); err != nil {
				t.log.Warnw("sync_signal_rejected", "event", event, "err", err)
			}
		})
	}
}

// OnCommandDone registers fn to run when sync-cmd-progress reports a finished
// command: ok is true for [1,1] and false for [-1,-1].
func (t *SessionTracker) OnCommandDone(fn func(ok bool)) {
	t.mu.Lock()
	t.onDone = append(t.onDone, fn)
	t.mu.Unlock()
}

// Apply folds one inbound signal into the mirror.
func (t *SessionTracker) Apply(event string, data json.RawMessage) error {
	var doneHook *bool

	t.mu.Lock()
	switch event {
	case models.EventSyncSystemState:
		var state int
		if err := json.Unmarshal(data, &state); err != nil {
			t.mu.Unlock()
			return fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
		}
		t.setStateLocked(models.SessionState(state))
	case models.EventSyncSessionType:
		if err := decodeString(data, &t.snap.SessionType); err != nil {
			t.mu.Unlock()
			return err
		}
	case models.EventSyncTileboardType:
		if err := decodeString(data, &t.snap.TileboardType); err != nil {
			t.mu.Unlock()
			return err
		}
	case models.EventSyncCmdProgress:
		var p [2]int
		if err := json.Unmarshal(data, &p); err != nil {
			t.mu.Unlock()
			return fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
		}
		t.snap.CmdProgress = p
		switch p {
		case [2]int{1, 1}:
			ok := true
			doneHook = &ok
		case [2]int{-1, -1}:
			ok := false
			doneHook = &ok
		}
	case models.EventSyncCalibProgress:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.mu.Unlock()
			return fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
		}
		t.snap.CalibProgress = m
	case models.EventSyncSettings:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.mu.Unlock()
			return fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
		}
		t.snap.Settings = m
	case models.EventDisplayMessage:
		if err := decodeString(data, &t.snap.Display.Message); err != nil {
			t.mu.Unlock()
			return err
		}
	case models.EventDisplayError:
		if err := decodeString(data, &t.snap.Display.Error); err != nil {
			t.mu.Unlock()
			return err
		}
	default:
		t.mu.Unlock()
		return fmt.Errorf("untracked event %q", event)
	}
	hooks := t.onDone
	t.mu.Unlock()

	t.notify()
	if doneHook != nil {
		for _, fn := range hooks {
			fn(*doneHook)
		}
	}
	return nil
}

func (t *SessionTracker) setStateLocked(s models.SessionState) {
	t.snap.State = s
	t.snap.StateLabel = s.String()
	switch s {
	case models.StateIdle:
		t.snap.Display.ActionPanelVisible = true
		t.snap.Display.UserActionVisible = false
	case models.StateWaitUser:
		t.snap.Display.UserActionVisible = true
	default:
		t.snap.Display.ActionPanelVisible = false
	}
}

func decodeString(data json.RawMessage, dst *string) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
	}
	*dst = s
	return nil
}

// State is the last synced session state.
func (t *SessionTracker) State() models.SessionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.State
}

// SessionType is the last synced session type (system, standard or empty).
func (t *SessionTracker) SessionType() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.SessionType
}

// Settings returns one section of the synced device settings.
func (t *SessionTracker) Settings(section string) (map[string]any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.snap.Settings[section].(map[string]any)
	return m, ok
}

// Snapshot returns a copy safe to hand to other goroutines.
func (t *SessionTracker) Snapshot() SessionSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.copyLocked()
}

func (t *SessionTracker) copyLocked() SessionSnapshot {
	out := t.snap
	out.CalibProgress = copyMap(t.snap.CalibProgress)
	out.Settings = copyMap(t.snap.Settings)
	out.Display.FormErrors = make(map[string]FieldError, len(t.snap.Display.FormErrors))
	for k, v := range t.snap.Display.FormErrors {
		out.Display.FormErrors[k] = v
	}
	return out
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Subscribe returns a channel receiving the snapshot after every change, and
// a cancel func. Slow subscribers only see the newest snapshot.
func (t *SessionTracker) Subscribe() (<-chan SessionSnapshot, func()) {
	ch := make(chan SessionSnapshot, 1)
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
			close(ch)
		})
	}
}

func (t *SessionTracker) notify() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := t.copyLocked()
	for _, ch := range t.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// SetFormError records a validation failure for the form of action.
func (t *SessionTracker) SetFormError(action string, fe FieldError) {
	t.mu.Lock()
	t.snap.Display.FormErrors[action] = fe
	t.mu.Unlock()
	t.notify()
}

// ClearForm drops the form's error and the shared message before a send.
func (t *SessionTracker) ClearForm(action string) {
	t.mu.Lock()
	delete(t.snap.Display.FormErrors, action)
	t.snap.Display.Message = ""
	t.mu.Unlock()
	t.notify()
}

// HideActionPanel hides the action input column.
func (t *SessionTracker) HideActionPanel() {
	t.mu.Lock()
	t.snap.Display.ActionPanelVisible = false
	t.mu.Unlock()
	t.notify()
}

// HideUserAction hides the user-action prompt and the action column.
func (t *SessionTracker) HideUserAction() {
	t.mu.Lock()
	t.snap.Display.UserActionVisible = false
	t.snap.Display.ActionPanelVisible = false
	t.mu.Unlock()
	t.notify()
}

// Reset returns the mirror to its start-up state, e.g. after a reconnect
// before the rig re-syncs.
func (t *SessionTracker) Reset() {
	t.mu.Lock()
	t.setStateLocked(models.StateIdle)
	t.snap.CmdProgress = [2]int{}
	t.mu.Unlock()
	t.notify()
}
