package ingest

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/mailcat/mailcat/config"
	"github.com/mailcat/mailcat/interfaces"
	"github.com/mailcat/mailcat/internal/extract"
	"github.com/mailcat/mailcat/internal/logger"
	"github.com/mailcat/mailcat/internal/mailparse"
	"github.com/mailcat/mailcat/internal/models"
	"github.com/mailcat/mailcat/internal/tracing"
	"github.com/mailcat/mailcat/internal/utils"

	er "github.com/mailcat/mailcat/internal/errors"
)

var (
	messageIDRe  = regexp.MustCompile(`(?im)^message-id:[ \t]*<?([^<>\r\n]+?)>?[ \t]*$`)
	fromHeaderRe = regexp.MustCompile(`(?im)^from:[ \t]*(.*)$`)
)

type ingestionService struct {
	cfg        *config.AppConfig
	log        logger.Logger
	mailboxes  interfaces.MailboxRepository
	emails     interfaces.EmailRepository
	rawArchive interfaces.StorageService
	events     interfaces.EventsPublisher
}

// NewIngestionService wires the inbound pipeline. rawArchive and events may
// be nil; the corresponding steps are skipped.
func NewIngestionService(
	cfg *config.AppConfig,
	log logger.Logger,
	mailboxes interfaces.MailboxRepository,
	emails interfaces.EmailRepository,
	rawArchive interfaces.StorageService,
	events interfaces.EventsPublisher,
) interfaces.IngestionService {
	return &ingestionService{
		cfg:        cfg,
		log:        log,
		mailboxes:  mailboxes,
		emails:     emails,
		rawArchive: rawArchive,
		events:     events,
	}
}

func (s *ingestionService) Deliver(ctx context.Context, from, rcpt, raw string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestionService.Deliver")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.LogFields(log.Int("message.size", len(raw)))

	if len(raw) > s.cfg.MaxMessageBytes {
		tracing.TraceErr(span, er.ErrMessageTooLarge)
		return nil, er.ErrMessageTooLarge
	}

	rcptAddress := utils.NormalizeEmailAddress(rcpt)
	mailbox, err := s.mailboxes.GetByEmailAddress(ctx, rcptAddress)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "mailbox lookup failed")
	}
	if mailbox == nil {
		return nil, er.ErrUnknownRecipient
	}
	tracing.TagMailboxID(span, mailbox.ID)

	// The From header carries the display name; the transport envelope
	// sender is the fallback when the header is missing.
	fromHeader := from
	if m := fromHeaderRe.FindStringSubmatch(raw); m != nil && strings.TrimSpace(m[1]) != "" {
		fromHeader = strings.TrimSpace(m[1])
	}

	envelope := mailparse.Normalize(raw, fromHeader)
	signals := extract.Extract(envelope.Body.Text, envelope.Body.HTML)

	email := &models.Email{
		MailboxID:   mailbox.ID,
		MessageID:   extractMessageID(raw),
		Subject:     envelope.Subject,
		FromAddress: envelope.Sender.Email,
		FromName:    envelope.Sender.Name,
		ToAddress:   rcptAddress,
		BodyText:    envelope.Body.Text,
		BodyHTML:    envelope.Body.HTML,
		Code:        signals.Code,
		Links:       signals.Links,
		RawSize:     len(raw),
		ReceivedAt:  utils.Now(),
	}

	if s.rawArchive != nil {
		email.RawStorageKey = fmt.Sprintf("raw/%s/%s.eml", mailbox.ID, uuid.New().String())
		if err := s.rawArchive.Upload(ctx, email.RawStorageKey, []byte(raw), "message/rfc822"); err != nil {
			// Archival is best effort; the parsed email is what callers need.
			tracing.TraceErr(span, err)
			s.log.Warnf("Failed to archive raw message for mailbox %s: %v", mailbox.ID, err)
			email.RawStorageKey = ""
		}
	}

	if err := s.emails.Create(ctx, email); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to store email")
	}
	tracing.TagEmailID(span, email.ID)

	if s.events != nil {
		if err := s.events.PublishEmailReceived(ctx, email); err != nil {
			tracing.TraceErr(span, err)
			s.log.Warnf("Failed to publish email.received for %s: %v", email.ID, err)
		}
	}

	s.log.Infof("Delivered email %s to mailbox %s (code=%t, links=%d)",
		email.ID, mailbox.ID, email.Code != "", len(email.Links))
	return email, nil
}

func (s *ingestionService) KnownRecipient(ctx context.Context, rcpt string) bool {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestionService.KnownRecipient")
	defer span.Finish()
	tracing.TagComponentService(span)

	mailbox, err := s.mailboxes.GetByEmailAddress(ctx, utils.NormalizeEmailAddress(rcpt))
	if err != nil {
		tracing.TraceErr(span, err)
		return false
	}
	return mailbox != nil
}

func (s *ingestionService) MaxMessageBytes() int {
	return s.cfg.MaxMessageBytes
}

// extractMessageID pulls the Message-ID header; a random ID keeps the unique
// index usable when the sender omitted one.
func extractMessageID(raw string) string {
	if m := messageIDRe.FindStringSubmatch(raw); m != nil {
		id := strings.TrimSpace(m[1])
		if id != "" {
			if len(id) > 250 {
				id = id[:250]
			}
			return id
		}
	}
	return "generated-" + uuid.New().String()
}
