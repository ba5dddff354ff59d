package models

import "time"

// Conversation is a 1-on-1 thread between exactly two users. The participant
// pair is stored canonically ordered (UserAID < UserBID) so that {A,B} and
// {B,A} always resolve to the same record.
type Conversation struct {
	ID      string `gorm:"primaryKey" json:"id"`
	UserAID string `gorm:"not null;uniqueIndex:idx_conv_pair" json:"user_a_id"`
	UserBID string `gorm:"not null;uniqueIndex:idx_conv_pair" json:"user_b_id"`

	// Denormalized snapshot of the newest message for list views.
	LastMessageContent  string    `json:"last_message_content"`
	LastMessageSenderID string    `json:"last_message_sender_id"`
	LastMessageAt       time.Time `json:"last_message_at"`

	// Per-participant unread counters.
	UnreadA int `gorm:"default:0" json:"unread_a"`
	UnreadB int `gorm:"default:0" json:"unread_b"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderPair returns the two user IDs in canonical (sorted) order.
func OrderPair(u1, u2 string) (string, string) {
	if u1 > u2 {
		return u2, u1
	}
	return u1, u2
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.UserAID == userID || c.UserBID == userID
}

// OtherParticipant returns the participant opposite to userID. The caller is
// expected to have checked HasParticipant first.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

// UnreadFor returns the unread counter belonging to userID.
func (c *Conversation) UnreadFor(userID string) int {
	if c.UserAID == userID {
		return c.UnreadA
	}
	return c.UnreadB
}
