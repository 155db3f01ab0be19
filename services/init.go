package services

import (
	"github.com/mailcat/mailcat/config"
	"github.com/mailcat/mailcat/interfaces"
	"github.com/mailcat/mailcat/internal/logger"
	"github.com/mailcat/mailcat/internal/repository"
	"github.com/mailcat/mailcat/services/events"
	"github.com/mailcat/mailcat/services/ingest"
	"github.com/mailcat/mailcat/services/mailbox"
	"github.com/mailcat/mailcat/services/storage"
)

type Services struct {
	MailboxService   interfaces.MailboxService
	IngestionService interfaces.IngestionService
	RawArchive       interfaces.StorageService
	EventsPublisher  interfaces.EventsPublisher
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	mailboxService, err := mailbox.NewMailboxService(cfg.AppConfig, log, repos.MailboxRepository)
	if err != nil {
		return nil, err
	}

	// Raw archive and events are optional capabilities; nil disables the
	// corresponding pipeline step.
	rawArchive := storage.NewRawArchiveService(cfg.RawArchiveConfig)

	var publisher interfaces.EventsPublisher
	if cfg.AppConfig.RabbitMQURL != "" {
		publisher, err = events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, log)
		if err != nil {
			return nil, err
		}
	}

	ingestionService := ingest.NewIngestionService(
		cfg.AppConfig,
		log,
		repos.MailboxRepository,
		repos.EmailRepository,
		rawArchive,
		publisher,
	)

	return &Services{
		MailboxService:   mailboxService,
		IngestionService: ingestionService,
		RawArchive:       rawArchive,
		EventsPublisher:  publisher,
	}, nil
}
