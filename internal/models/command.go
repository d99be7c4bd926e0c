package models

import "errors"

// Outbound socket events.
const (
	EventRunActionCmd       = "run-action-cmd"
	EventCompleteUserAction = "complete-user-action"
)

// Inbound socket events pushed by the rig server.
const (
	EventSyncSystemState   = "sync-system-state"
	EventSyncSessionType   = "sync-session-type"
	EventSyncSettings      = "sync-settings"
	EventSyncTileboardType = "sync-tileboard-type"
	EventSyncCmdProgress   = "sync-cmd-progress"
	EventSyncCalibProgress = "sync-calib-progress"
	EventDisplayMessage    = "display-message"
	EventDisplayError      = "display-error"
)

// CommandEnvelope is the single message emitted for one user action.
type CommandEnvelope struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// ErrUnknownAction is returned for an action id the console does not know.
var ErrUnknownAction = errors.New("unknown action")
