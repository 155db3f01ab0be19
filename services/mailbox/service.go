package mailbox

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/lucasepe/codename"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailcat/mailcat/config"
	"github.com/mailcat/mailcat/interfaces"
	"github.com/mailcat/mailcat/internal/logger"
	"github.com/mailcat/mailcat/internal/models"
	"github.com/mailcat/mailcat/internal/tracing"
	"github.com/mailcat/mailcat/internal/utils"

	er "github.com/mailcat/mailcat/internal/errors"
)

const (
	tokenLength = 32
	// addressAttempts bounds retries when a generated address collides with
	// an existing row (the unique index is the source of truth).
	addressAttempts = 5
)

type mailboxService struct {
	cfg   *config.AppConfig
	log   logger.Logger
	repos *mailboxRepos

	rngMutex sync.Mutex
	rng      *rand.Rand
}

type mailboxRepos struct {
	mailboxes interfaces.MailboxRepository
}

func NewMailboxService(cfg *config.AppConfig, log logger.Logger, mailboxes interfaces.MailboxRepository) (interfaces.MailboxService, error) {
	rng, err := codename.DefaultRNG()
	if err != nil {
		return nil, errors.Wrap(err, "failed to seed codename rng")
	}

	return &mailboxService{
		cfg:   cfg,
		log:   log,
		repos: &mailboxRepos{mailboxes: mailboxes},
		rng:   rng,
	}, nil
}

func (s *mailboxService) CreateMailbox(ctx context.Context) (*models.Mailbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxService.CreateMailbox")
	defer span.Finish()
	tracing.TagComponentService(span)

	ttl := time.Duration(s.cfg.MailboxTTLHours) * time.Hour

	var lastErr error
	for attempt := 0; attempt < addressAttempts; attempt++ {
		mailbox := &models.Mailbox{
			EmailAddress: s.generateAddress(),
			Token:        utils.GenerateToken(tokenLength),
			ExpiresAt:    utils.Now().Add(ttl),
		}

		if err := s.repos.mailboxes.Create(ctx, mailbox); err != nil {
			// Most likely an address collision on the unique index;
			// regenerate and retry.
			lastErr = err
			continue
		}

		tracing.TagMailboxID(span, mailbox.ID)
		s.log.Infof("Created mailbox %s (%s), expires %s", mailbox.ID, mailbox.EmailAddress, mailbox.ExpiresAt)
		return mailbox, nil
	}

	tracing.TraceErr(span, lastErr)
	return nil, errors.Wrap(lastErr, "failed to create mailbox")
}

func (s *mailboxService) Authenticate(ctx context.Context, token string) (*models.Mailbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxService.Authenticate")
	defer span.Finish()
	tracing.TagComponentService(span)

	if token == "" {
		return nil, er.ErrInvalidToken
	}

	mailbox, err := s.repos.mailboxes.GetByToken(ctx, token)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if mailbox == nil {
		return nil, er.ErrInvalidToken
	}

	tracing.TagMailboxID(span, mailbox.ID)
	return mailbox, nil
}

// generateAddress mints a human-readable address like swift-coral-42@domain.
func (s *mailboxService) generateAddress() string {
	s.rngMutex.Lock()
	name := codename.Generate(s.rng, 2)
	s.rngMutex.Unlock()

	return fmt.Sprintf("%s@%s", name, s.cfg.MailboxDomain)
}
