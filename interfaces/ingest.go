package interfaces

import (
	"context"

	"github.com/mailcat/mailcat/internal/models"
)

// IngestionService runs the inbound pipeline: size check, mailbox lookup,
// MIME normalization, signal extraction, persistence.
type IngestionService interface {
	Deliver(ctx context.Context, from, rcpt, raw string) (*models.Email, error)
	// KnownRecipient reports whether rcpt resolves to a live mailbox, for
	// transports that want to reject at RCPT time.
	KnownRecipient(ctx context.Context, rcpt string) bool
	// MaxMessageBytes is the payload limit transports must advertise/enforce.
	MaxMessageBytes() int
}
