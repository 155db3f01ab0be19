package interfaces

import (
	"context"

	"github.com/mailcat/mailcat/internal/models"
)

type MailboxService interface {
	// CreateMailbox provisions a fresh disposable address with its bearer token.
	CreateMailbox(ctx context.Context) (*models.Mailbox, error)
	// Authenticate resolves a bearer token to a live mailbox.
	Authenticate(ctx context.Context, token string) (*models.Mailbox, error)
}
