package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/mailcat/mailcat/api/middleware"
	"github.com/mailcat/mailcat/dto"
	"github.com/mailcat/mailcat/internal/repository"
	"github.com/mailcat/mailcat/internal/tracing"
)

const (
	defaultInboxLimit = 50
	maxInboxLimit     = 200
)

type InboxHandler struct {
	repos *repository.Repositories
}

func NewInboxHandler(repos *repository.Repositories) *InboxHandler {
	return &InboxHandler{repos: repos}
}

// List returns the authenticated mailbox's messages, newest first.
func (h *InboxHandler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "InboxHandler.List")
		defer span.Finish()
		tracing.TagComponentRest(span)

		mailbox := middleware.MailboxFromContext(c)
		if mailbox == nil {
			c.JSON(http.StatusUnauthorized, dto.Fail("Invalid or expired token"))
			return
		}
		tracing.TagMailboxID(span, mailbox.ID)

		limit := parseQueryInt(c, "limit", defaultInboxLimit)
		if limit <= 0 || limit > maxInboxLimit {
			limit = defaultInboxLimit
		}
		offset := parseQueryInt(c, "offset", 0)
		if offset < 0 {
			offset = 0
		}

		emails, total, err := h.repos.EmailRepository.ListByMailbox(ctx, mailbox.ID, limit, offset)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, dto.Fail("Failed to list inbox"))
			return
		}

		// Empty inboxes serialize as [] rather than null.
		entries := make([]dto.InboxEntry, 0, len(emails))
		for _, email := range emails {
			entries = append(entries, dto.NewInboxEntry(email))
		}

		c.Header("X-Total-Count", strconv.FormatInt(total, 10))
		c.JSON(http.StatusOK, dto.OK(entries))
	}
}

func parseQueryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
