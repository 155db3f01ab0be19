package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/mailcat/mailcat/internal/utils"
)

// Email is one received message after normalization and signal extraction.
// The raw MIME payload itself is not stored here; when archival is enabled
// it lives in object storage under RawStorageKey.
type Email struct {
	ID        string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	MailboxID string `gorm:"column:mailbox_id;type:varchar(50);index;not null" json:"mailboxId"`
	MessageID string `gorm:"column:message_id;uniqueIndex;type:varchar(255);not null" json:"messageId"`

	// Core email metadata
	Subject     string `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	FromAddress string `gorm:"column:from_address;type:varchar(255);index" json:"from"`
	FromName    string `gorm:"column:from_name;type:varchar(255)" json:"fromName"`
	ToAddress   string `gorm:"column:to_address;type:varchar(255);index" json:"to"`

	// Normalized content
	BodyText string `gorm:"column:body_text;type:text" json:"text"`
	BodyHTML string `gorm:"column:body_html;type:text" json:"html"`

	// Extracted signals. Code is empty and Links nil when nothing was
	// recognized, which is the normal case for most mail.
	Code  string         `gorm:"column:code;type:varchar(8)" json:"-"`
	Links pq.StringArray `gorm:"column:links;type:text[]" json:"-"`

	// Raw payload archive
	RawStorageKey string `gorm:"column:raw_storage_key;type:varchar(512)" json:"-"`
	RawSize       int    `gorm:"column:raw_size" json:"-"`

	// Time information
	ReceivedAt time.Time `gorm:"column:received_at;type:timestamp;index" json:"receivedAt"`

	// Standard timestamps. No soft-delete column: a deleted email must free
	// its message_id unique-index slot or a redelivery of the same message
	// would collide with the tombstone instead of deduping.
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Email) TableName() string {
	return "emails"
}

func (e *Email) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("email", 24)
	}
	e.CreatedAt = utils.Now()
	return nil
}
