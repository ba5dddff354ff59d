package models

import "time"

type CallType string

const (
	CallVoice CallType = "voice"
	CallVideo CallType = "video"
)

type CallStatus string

const (
	CallInitiated CallStatus = "initiated"
	CallRinging   CallStatus = "ringing"
	CallConnected CallStatus = "connected"
	CallEnded     CallStatus = "ended"
	CallDeclined  CallStatus = "declined"
	CallMissed    CallStatus = "missed"
)

// IsTerminal reports whether the status is a terminal state.
func (s CallStatus) IsTerminal() bool {
	return s == CallEnded || s == CallDeclined || s == CallMissed
}

// Call is the durable record of a call attempt.
type Call struct {
	ID          string     `gorm:"primaryKey" json:"id"`
	CallerID    string     `gorm:"not null;index" json:"caller_id"`
	RecipientID string     `gorm:"not null;index" json:"recipient_id"`
	CallType    CallType   `gorm:"not null" json:"call_type"`
	Status      CallStatus `gorm:"not null" json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// Duration returns connected time in whole seconds. Calls that never reached
// connected report 0 even though time passed while ringing.
func (c *Call) Duration() int {
	if c.StartedAt == nil || c.EndedAt == nil {
		return 0
	}
	return int(c.EndedAt.Sub(*c.StartedAt).Seconds())
}
