package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailcat/mailcat/config"
	"github.com/mailcat/mailcat/internal/models"
	"github.com/mailcat/mailcat/internal/repository"
	"github.com/mailcat/mailcat/internal/utils"
	"github.com/mailcat/mailcat/services"

	er "github.com/mailcat/mailcat/internal/errors"
)

type fakeMailboxService struct {
	mailbox *models.Mailbox
}

func (f *fakeMailboxService) CreateMailbox(ctx context.Context) (*models.Mailbox, error) {
	return f.mailbox, nil
}

func (f *fakeMailboxService) Authenticate(ctx context.Context, token string) (*models.Mailbox, error) {
	if f.mailbox != nil && token == f.mailbox.Token {
		return f.mailbox, nil
	}
	return nil, er.ErrInvalidToken
}

type fakeIngestionService struct {
	delivered []string
	failWith  error
}

func (f *fakeIngestionService) Deliver(ctx context.Context, from, rcpt, raw string) (*models.Email, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.delivered = append(f.delivered, rcpt)
	return &models.Email{ID: "email_new"}, nil
}

func (f *fakeIngestionService) KnownRecipient(ctx context.Context, rcpt string) bool { return true }

func (f *fakeIngestionService) MaxMessageBytes() int { return 1024 * 1024 }

type fakeMailboxRepo struct{}

func (f *fakeMailboxRepo) Create(ctx context.Context, m *models.Mailbox) error { return nil }
func (f *fakeMailboxRepo) GetByID(ctx context.Context, id string) (*models.Mailbox, error) {
	return nil, nil
}

func (f *fakeMailboxRepo) GetByEmailAddress(ctx context.Context, a string) (*models.Mailbox, error) {
	return nil, nil
}

func (f *fakeMailboxRepo) GetByToken(ctx context.Context, t string) (*models.Mailbox, error) {
	return nil, nil
}
func (f *fakeMailboxRepo) CountLive(ctx context.Context) (int64, error) { return 1, nil }
func (f *fakeMailboxRepo) ListExpired(ctx context.Context, c time.Time) ([]*models.Mailbox, error) {
	return nil, nil
}

func (f *fakeMailboxRepo) DeleteExpired(ctx context.Context, c time.Time) (int64, error) {
	return 0, nil
}

type fakeEmailRepo struct {
	emails  map[string]*models.Email
	deleted []string
}

func (f *fakeEmailRepo) Create(ctx context.Context, e *models.Email) error { return nil }

func (f *fakeEmailRepo) GetByID(ctx context.Context, mailboxID, id string) (*models.Email, error) {
	e := f.emails[id]
	if e == nil || e.MailboxID != mailboxID {
		return nil, nil
	}
	return e, nil
}

func (f *fakeEmailRepo) ListByMailbox(ctx context.Context, mailboxID string, limit, offset int) ([]*models.Email, int64, error) {
	var out []*models.Email
	for _, e := range f.emails {
		if e.MailboxID == mailboxID {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeEmailRepo) Delete(ctx context.Context, mailboxID, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.emails, id)
	return nil
}

func (f *fakeEmailRepo) DeleteByMailbox(ctx context.Context, mailboxID string) error { return nil }
func (f *fakeEmailRepo) DeleteOlderThan(ctx context.Context, c time.Time) (int64, error) {
	return 0, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeEmailRepo, *models.Mailbox) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mailbox := &models.Mailbox{
		ID:           "mbox_test1",
		EmailAddress: "swift-coral-42@mailcat.ai",
		Token:        "tok_secret",
		ExpiresAt:    utils.Now().Add(time.Hour),
	}

	emailRepo := &fakeEmailRepo{emails: map[string]*models.Email{
		"email_1": {
			ID:          "email_1",
			MailboxID:   "mbox_test1",
			Subject:     "Verify your account",
			FromAddress: "no-reply@acme.com",
			ToAddress:   "swift-coral-42@mailcat.ai",
			BodyText:    "Your code is 824913",
			Code:        "824913",
			Links:       []string{"https://acme.com/verify?t=x"},
			ReceivedAt:  utils.Now(),
		},
		"email_plain": {
			ID:          "email_plain",
			MailboxID:   "mbox_test1",
			Subject:     "hello",
			FromAddress: "friend@example.com",
			BodyText:    "no signals here",
			ReceivedAt:  utils.Now(),
		},
	}}

	cfg := &config.AppConfig{
		InternalAPIKey:     "internal-key",
		RateLimitPerMinute: 600,
		RateLimitBurst:     100,
	}
	repos := &repository.Repositories{
		MailboxRepository: &fakeMailboxRepo{},
		EmailRepository:   emailRepo,
	}
	svc := &services.Services{
		MailboxService:   &fakeMailboxService{mailbox: mailbox},
		IngestionService: &fakeIngestionService{},
	}

	router := gin.New()
	RegisterRoutes(context.Background(), router, cfg, svc, repos)
	return router, emailRepo, mailbox
}

func doRequest(router *gin.Engine, method, path, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestHealthAndStatus(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/status", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "liveMailboxes")
}

func TestCreateMailbox(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/mailboxes", "", "", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	env := parseEnvelope(t, w)
	assert.True(t, env.Success)

	var created struct {
		Email string `json:"email"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "swift-coral-42@mailcat.ai", created.Email)
	assert.Equal(t, "tok_secret", created.Token)
}

func TestInbox_RequiresToken(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/inbox", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, parseEnvelope(t, w).Success)

	w = doRequest(router, http.MethodGet, "/inbox", "wrong-token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInbox_ListsEmails(t *testing.T) {
	router, _, mailbox := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/inbox", mailbox.Token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	env := parseEnvelope(t, w)
	assert.True(t, env.Success)

	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	assert.Len(t, entries, 2)
	assert.Equal(t, "2", w.Header().Get("X-Total-Count"))
}

func TestGetEmail_WithSignals(t *testing.T) {
	router, _, mailbox := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/emails/email_1", mailbox.Token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	env := parseEnvelope(t, w)
	var detail struct {
		Email struct {
			ID      string `json:"id"`
			Subject string `json:"subject"`
		} `json:"email"`
		Code  *string  `json:"code"`
		Links []string `json:"links"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, "email_1", detail.Email.ID)
	require.NotNil(t, detail.Code)
	assert.Equal(t, "824913", *detail.Code)
	assert.Equal(t, []string{"https://acme.com/verify?t=x"}, detail.Links)
}

func TestGetEmail_NoSignalsAreNull(t *testing.T) {
	router, _, mailbox := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/emails/email_plain", mailbox.Token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(parseEnvelope(t, w).Data, &raw))
	assert.Nil(t, raw["code"])
	assert.Nil(t, raw["links"])
}

func TestGetEmail_NotFound(t *testing.T) {
	router, _, mailbox := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/emails/email_missing", mailbox.Token, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, parseEnvelope(t, w).Success)
}

func TestDeleteEmail(t *testing.T) {
	router, emailRepo, mailbox := newTestRouter(t)

	w := doRequest(router, http.MethodDelete, "/emails/email_1", mailbox.Token, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"email_1"}, emailRepo.deleted)

	// Second delete is a 404, the message is gone.
	w = doRequest(router, http.MethodDelete, "/emails/email_1", mailbox.Token, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIngestWebhook_RequiresAPIKey(t *testing.T) {
	router, _, _ := newTestRouter(t)
	body := `{"from":"a@b.com","to":"swift-coral-42@mailcat.ai","raw":"Subject: x\r\n\r\nbody"}`

	w := doRequest(router, http.MethodPost, "/internal/ingest", "", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, http.MethodPost, "/internal/ingest", "", body,
		map[string]string{"X-MAILCAT-API-KEY": "internal-key"})
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestIngestWebhook_BadPayload(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/internal/ingest", "", `{"from":"a@b.com"}`,
		map[string]string{"X-MAILCAT-API-KEY": "internal-key"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateMailbox_RateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := &config.AppConfig{
		InternalAPIKey:     "internal-key",
		RateLimitPerMinute: 1,
		RateLimitBurst:     2,
	}
	repos := &repository.Repositories{
		MailboxRepository: &fakeMailboxRepo{},
		EmailRepository:   &fakeEmailRepo{emails: map[string]*models.Email{}},
	}
	svc := &services.Services{
		MailboxService: &fakeMailboxService{mailbox: &models.Mailbox{
			EmailAddress: "a@mailcat.ai",
			Token:        "t",
			ExpiresAt:    utils.Now().Add(time.Hour),
		}},
		IngestionService: &fakeIngestionService{},
	}

	router := gin.New()
	RegisterRoutes(context.Background(), router, cfg, svc, repos)

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		w := doRequest(router, http.MethodPost, "/mailboxes", "", "", nil)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, http.StatusCreated, codes[0])
	assert.Equal(t, http.StatusCreated, codes[1])
	assert.Contains(t, codes, http.StatusTooManyRequests)
}
