package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailcat/mailcat/config"
	er "github.com/mailcat/mailcat/internal/errors"
	"github.com/mailcat/mailcat/internal/logger"
	"github.com/mailcat/mailcat/internal/models"
	"github.com/mailcat/mailcat/internal/utils"
)

type fakeMailboxRepo struct {
	mailboxes map[string]*models.Mailbox
}

func (f *fakeMailboxRepo) Create(ctx context.Context, mailbox *models.Mailbox) error {
	f.mailboxes[mailbox.EmailAddress] = mailbox
	return nil
}

func (f *fakeMailboxRepo) GetByID(ctx context.Context, id string) (*models.Mailbox, error) {
	for _, m := range f.mailboxes {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeMailboxRepo) GetByEmailAddress(ctx context.Context, address string) (*models.Mailbox, error) {
	m, ok := f.mailboxes[address]
	if !ok || m.Expired(utils.Now()) {
		return nil, nil
	}
	return m, nil
}

func (f *fakeMailboxRepo) GetByToken(ctx context.Context, token string) (*models.Mailbox, error) {
	for _, m := range f.mailboxes {
		if m.Token == token && !m.Expired(utils.Now()) {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeMailboxRepo) CountLive(ctx context.Context) (int64, error) {
	return int64(len(f.mailboxes)), nil
}

func (f *fakeMailboxRepo) ListExpired(ctx context.Context, cutoff time.Time) ([]*models.Mailbox, error) {
	return nil, nil
}

func (f *fakeMailboxRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeEmailRepo struct {
	created []*models.Email
}

func (f *fakeEmailRepo) Create(ctx context.Context, email *models.Email) error {
	// Mirrors the postgres repository: dedupe on message_id, otherwise a
	// plain insert into a physically-deleted-from store.
	for _, e := range f.created {
		if e.MessageID == email.MessageID {
			email.ID = e.ID
			return nil
		}
	}
	if email.ID == "" {
		email.ID = utils.GenerateNanoIDWithPrefix("email", 24)
	}
	f.created = append(f.created, email)
	return nil
}

func (f *fakeEmailRepo) GetByID(ctx context.Context, mailboxID, id string) (*models.Email, error) {
	for _, e := range f.created {
		if e.MailboxID == mailboxID && e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeEmailRepo) ListByMailbox(ctx context.Context, mailboxID string, limit, offset int) ([]*models.Email, int64, error) {
	return f.created, int64(len(f.created)), nil
}

func (f *fakeEmailRepo) Delete(ctx context.Context, mailboxID, id string) error {
	for i, e := range f.created {
		if e.MailboxID == mailboxID && e.ID == id {
			f.created = append(f.created[:i], f.created[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeEmailRepo) DeleteByMailbox(ctx context.Context, mailboxID string) error { return nil }

func (f *fakeEmailRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func newTestService(t *testing.T) (*ingestionService, *fakeMailboxRepo, *fakeEmailRepo) {
	t.Helper()

	cfg := &config.AppConfig{
		MailboxDomain:   "mailcat.ai",
		MaxMessageBytes: 1024 * 1024,
	}
	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()

	mailboxes := &fakeMailboxRepo{mailboxes: map[string]*models.Mailbox{
		"swift-coral-42@mailcat.ai": {
			ID:           "mbox_test1",
			EmailAddress: "swift-coral-42@mailcat.ai",
			Token:        "tok_test1",
			ExpiresAt:    utils.Now().Add(time.Hour),
		},
	}}
	emails := &fakeEmailRepo{}

	svc := NewIngestionService(cfg, appLogger, mailboxes, emails, nil, nil).(*ingestionService)
	return svc, mailboxes, emails
}

func TestDeliver_StoresNormalizedEmail(t *testing.T) {
	svc, _, emails := newTestService(t)

	raw := strings.Join([]string{
		"From: \"Acme Support\" <no-reply@acme.com>",
		"To: swift-coral-42@mailcat.ai",
		"Subject: Your verification code",
		"Message-ID: <abc123@acme.com>",
		"Content-Type: text/plain",
		"",
		"Your verification code is 824913.",
		"Confirm here: https://acme.com/verify?t=x",
	}, "\r\n")

	email, err := svc.Deliver(context.Background(), "no-reply@acme.com", "swift-coral-42@mailcat.ai", raw)
	require.NoError(t, err)
	require.Len(t, emails.created, 1)

	assert.Equal(t, "mbox_test1", email.MailboxID)
	assert.Equal(t, "abc123@acme.com", email.MessageID)
	assert.Equal(t, "Your verification code", email.Subject)
	assert.Equal(t, "no-reply@acme.com", email.FromAddress)
	assert.Equal(t, "Acme Support", email.FromName)
	assert.Equal(t, "swift-coral-42@mailcat.ai", email.ToAddress)
	assert.Contains(t, email.BodyText, "824913")
	assert.Equal(t, "824913", email.Code)
	assert.Equal(t, []string{"https://acme.com/verify?t=x"}, []string(email.Links))
	assert.Equal(t, len(raw), email.RawSize)
	assert.False(t, email.ReceivedAt.IsZero())
}

func TestDeliver_UnknownRecipient(t *testing.T) {
	svc, _, emails := newTestService(t)

	_, err := svc.Deliver(context.Background(), "a@b.com", "nobody@mailcat.ai", "Subject: hi\r\n\r\nhello")
	assert.ErrorIs(t, err, er.ErrUnknownRecipient)
	assert.Empty(t, emails.created)
}

func TestDeliver_ExpiredMailboxIsUnknown(t *testing.T) {
	svc, mailboxes, _ := newTestService(t)
	mailboxes.mailboxes["swift-coral-42@mailcat.ai"].ExpiresAt = utils.Now().Add(-time.Minute)

	_, err := svc.Deliver(context.Background(), "a@b.com", "swift-coral-42@mailcat.ai", "Subject: hi\r\n\r\nhello")
	assert.ErrorIs(t, err, er.ErrUnknownRecipient)
}

func TestDeliver_MessageTooLarge(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.cfg.MaxMessageBytes = 64

	_, err := svc.Deliver(context.Background(), "a@b.com", "swift-coral-42@mailcat.ai", strings.Repeat("x", 65))
	assert.ErrorIs(t, err, er.ErrMessageTooLarge)
}

func TestDeliver_RecipientAddressNormalized(t *testing.T) {
	svc, _, _ := newTestService(t)

	email, err := svc.Deliver(context.Background(), "a@b.com", "<Swift-Coral-42@MAILCAT.AI>", "Subject: hi\r\n\r\nhello")
	require.NoError(t, err)
	assert.Equal(t, "swift-coral-42@mailcat.ai", email.ToAddress)
}

func TestDeliver_GeneratesMessageIDWhenMissing(t *testing.T) {
	svc, _, _ := newTestService(t)

	email, err := svc.Deliver(context.Background(), "a@b.com", "swift-coral-42@mailcat.ai", "Subject: hi\r\n\r\nhello")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(email.MessageID, "generated-"))
}

func TestDeliver_DuplicateMessageIDDedupes(t *testing.T) {
	svc, _, emails := newTestService(t)
	raw := "Message-ID: <dup@acme.com>\r\nSubject: hi\r\n\r\nhello"

	first, err := svc.Deliver(context.Background(), "a@b.com", "swift-coral-42@mailcat.ai", raw)
	require.NoError(t, err)

	second, err := svc.Deliver(context.Background(), "a@b.com", "swift-coral-42@mailcat.ai", raw)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, emails.created, 1)
}

func TestDeliver_RedeliveryAfterDelete(t *testing.T) {
	svc, _, emails := newTestService(t)
	raw := "Message-ID: <resend@acme.com>\r\nSubject: hi\r\n\r\nhello"

	first, err := svc.Deliver(context.Background(), "a@b.com", "swift-coral-42@mailcat.ai", raw)
	require.NoError(t, err)

	require.NoError(t, emails.Delete(context.Background(), first.MailboxID, first.ID))
	require.Empty(t, emails.created)

	// Once the row is gone its Message-ID slot is free again; the resend
	// must be accepted as a fresh email, not rejected.
	second, err := svc.Deliver(context.Background(), "a@b.com", "swift-coral-42@mailcat.ai", raw)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, emails.created, 1)
}

func TestKnownRecipient(t *testing.T) {
	svc, _, _ := newTestService(t)

	assert.True(t, svc.KnownRecipient(context.Background(), "swift-coral-42@mailcat.ai"))
	assert.True(t, svc.KnownRecipient(context.Background(), "SWIFT-CORAL-42@mailcat.ai"))
	assert.False(t, svc.KnownRecipient(context.Background(), "nobody@mailcat.ai"))
}

func TestExtractMessageID(t *testing.T) {
	assert.Equal(t, "id@host", extractMessageID("Message-ID: <id@host>\r\n\r\nbody"))
	assert.Equal(t, "id@host", extractMessageID("message-id: id@host\n\nbody"))
	assert.True(t, strings.HasPrefix(extractMessageID("Subject: none\r\n\r\nbody"), "generated-"))
}
