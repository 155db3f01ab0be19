package interfaces

import (
	"context"
	"time"

	"github.com/mailcat/mailcat/internal/models"
)

type EmailRepository interface {
	Create(ctx context.Context, email *models.Email) error
	GetByID(ctx context.Context, mailboxID, id string) (*models.Email, error)
	ListByMailbox(ctx context.Context, mailboxID string, limit, offset int) ([]*models.Email, int64, error)
	Delete(ctx context.Context, mailboxID, id string) error
	DeleteByMailbox(ctx context.Context, mailboxID string) error
	// DeleteOlderThan purges emails received before cutoff regardless of
	// mailbox state and returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
