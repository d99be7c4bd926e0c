package models

import "time"

// ActionRecord is an audit entry for one emitted command.
type ActionRecord struct {
	RecordID   string    `json:"record_id"`
	OccurredAt time.Time `json:"occurred_at"`
	ActionID   string    `json:"action_id"` // e.g. run-std-calibration
	OperatorID int       `json:"operator_id,omitempty"`
	Data       any       `json:"data,omitempty"`
}
