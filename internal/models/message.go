package models

import "time"

// MessageStatus is the delivery state of a message. Transitions are strictly
// forward: sent -> delivered -> seen.
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageSeen      MessageStatus = "seen"
)

// Rank orders statuses for the monotonic compare-and-set in storage.
func (s MessageStatus) Rank() int {
	switch s {
	case MessageSent:
		return 1
	case MessageDelivered:
		return 2
	case MessageSeen:
		return 3
	}
	return 0
}

// Message is a persisted chat message.
type Message struct {
	ID             string        `gorm:"primaryKey" json:"id"`
	ConversationID string        `gorm:"not null;index:idx_conv_msg" json:"conversation_id"`
	SenderID       string        `gorm:"not null;index:idx_conv_msg" json:"sender_id"`
	Content        string        `gorm:"type:text;not null" json:"content"`
	Status         MessageStatus `gorm:"not null;default:sent" json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	SeenAt      *time.Time `json:"seen_at,omitempty"`
	// ExpiresAt is the retention horizon, set at creation and independent of
	// delivery status.
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}

const (
	MinContentLen = 1
	MaxContentLen = 2000
)
