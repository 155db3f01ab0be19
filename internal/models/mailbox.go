package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/mailcat/mailcat/internal/utils"
)

// Mailbox is a disposable, receive-only inbox. The token is the only
// credential: whoever holds it can read and delete the mailbox's emails.
type Mailbox struct {
	ID           string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	EmailAddress string `gorm:"column:email_address;type:varchar(255);uniqueIndex;not null" json:"emailAddress"`
	Token        string `gorm:"column:token;type:varchar(64);uniqueIndex;not null" json:"-"`

	// Lifetime
	ExpiresAt time.Time `gorm:"column:expires_at;type:timestamp;index;not null" json:"expiresAt"`

	// Standard timestamps. No soft-delete column: expired mailboxes must
	// release their address and token unique-index slots, so deletes are
	// physical.
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Mailbox) TableName() string {
	return "mailboxes"
}

func (m *Mailbox) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("mbox", 16)
	}
	m.CreatedAt = utils.Now()
	return nil
}

// Expired reports whether the mailbox is past its TTL.
func (m *Mailbox) Expired(now time.Time) bool {
	return now.After(m.ExpiresAt)
}
