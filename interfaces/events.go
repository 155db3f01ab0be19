package interfaces

import (
	"context"

	"github.com/mailcat/mailcat/internal/models"
)

// EventsPublisher notifies downstream consumers about inbound mail. A nil
// publisher is valid configuration: delivery then happens with no events.
type EventsPublisher interface {
	PublishEmailReceived(ctx context.Context, email *models.Email) error
	Close() error
}
