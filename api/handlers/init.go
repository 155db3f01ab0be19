package handlers

import (
	"github.com/mailcat/mailcat/internal/repository"
	"github.com/mailcat/mailcat/services"
)

type APIHandlers struct {
	Mailboxes *MailboxesHandler
	Inbox     *InboxHandler
	Emails    *EmailsHandler
	Ingest    *IngestHandler
}

func InitHandlers(repos *repository.Repositories, svc *services.Services) *APIHandlers {
	return &APIHandlers{
		Mailboxes: NewMailboxesHandler(svc),
		Inbox:     NewInboxHandler(repos),
		Emails:    NewEmailsHandler(repos),
		Ingest:    NewIngestHandler(svc),
	}
}
