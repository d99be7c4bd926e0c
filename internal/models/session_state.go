package models

// SessionState mirrors the rig server's session state machine.
type SessionState int

const (
	StateIdle       SessionState = 0
	StateRunProcess SessionState = 1
	StateWaitUser   SessionState = 2
	StateExecCmd    SessionState = 3
)

// String returns the label shown next to the uptime display.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateExecCmd:
		return "EXECUTING COMMAND"
	case StateRunProcess:
		return "PROCESSING"
	case StateWaitUser:
		return "WAITING USER ACTION"
	default:
		return ""
	}
}

// Session types reported by sync-session-type.
const (
	SessionTypeSystem   = "system"
	SessionTypeStandard = "standard"
)
