package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// User is the identity record the realtime core authenticates against.
// Profile data (bio, avatar, feed) lives in the CRUD service and is not
// mirrored here.
type User struct {
	ID       string `gorm:"primaryKey" json:"id"`
	Username string `gorm:"uniqueIndex" json:"username"`
	// DeviceTokens holds push-notification tokens registered by clients.
	DeviceTokens pq.StringArray `gorm:"type:text[]" json:"-"`
	// LastOnline is the durable copy of the in-memory presence timestamp,
	// flushed on every online->offline transition.
	LastOnline time.Time `json:"last_online"`
	CreatedAt  time.Time `json:"created_at"`
}

// BeforeCreate generates a new UUID for the user if ID is not yet set.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
