package interfaces

import (
	"context"
	"time"

	"github.com/mailcat/mailcat/internal/models"
)

type MailboxRepository interface {
	Create(ctx context.Context, mailbox *models.Mailbox) error
	GetByID(ctx context.Context, id string) (*models.Mailbox, error)
	// GetByEmailAddress and GetByToken only return live (unexpired) mailboxes.
	GetByEmailAddress(ctx context.Context, address string) (*models.Mailbox, error)
	GetByToken(ctx context.Context, token string) (*models.Mailbox, error)
	CountLive(ctx context.Context) (int64, error)
	// ListExpired returns mailboxes whose TTL elapsed before cutoff.
	ListExpired(ctx context.Context, cutoff time.Time) ([]*models.Mailbox, error)
	// DeleteExpired removes mailboxes whose TTL elapsed before cutoff and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
