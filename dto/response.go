package dto

import (
	"time"

	"github.com/mailcat/mailcat/internal/models"
)

// APIResponse is the envelope every endpoint returns. Error is populated
// only when Success is false.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func OK(data interface{}) APIResponse {
	return APIResponse{Success: true, Data: data}
}

func Fail(message string) APIResponse {
	return APIResponse{Success: false, Error: message}
}

// MailboxCreated is returned from POST /mailboxes. The token is shown
// exactly once, here.
type MailboxCreated struct {
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// InboxEntry is one row of GET /inbox.
type InboxEntry struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// EmailContent is the full message body inside an EmailDetail.
type EmailContent struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Text       string    `json:"text"`
	HTML       string    `json:"html"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// EmailDetail is returned from GET /emails/:id. Code is null when no
// verification code was recognized; Links is null when no action link was
// found. Both are ordinary outcomes, distinct from an error envelope.
type EmailDetail struct {
	Email EmailContent `json:"email"`
	Code  *string      `json:"code"`
	Links []string     `json:"links"`
}

func NewInboxEntry(e *models.Email) InboxEntry {
	return InboxEntry{
		ID:         e.ID,
		From:       e.FromAddress,
		Subject:    e.Subject,
		ReceivedAt: e.ReceivedAt,
	}
}

func NewEmailDetail(e *models.Email) EmailDetail {
	detail := EmailDetail{
		Email: EmailContent{
			ID:         e.ID,
			From:       e.FromAddress,
			To:         e.ToAddress,
			Subject:    e.Subject,
			Text:       e.BodyText,
			HTML:       e.BodyHTML,
			ReceivedAt: e.ReceivedAt,
		},
	}
	if e.Code != "" {
		code := e.Code
		detail.Code = &code
	}
	if len(e.Links) > 0 {
		detail.Links = append(detail.Links, e.Links...)
	}
	return detail
}
