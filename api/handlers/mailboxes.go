package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/mailcat/mailcat/dto"
	"github.com/mailcat/mailcat/internal/tracing"
	"github.com/mailcat/mailcat/services"
)

type MailboxesHandler struct {
	svc *services.Services
}

func NewMailboxesHandler(svc *services.Services) *MailboxesHandler {
	return &MailboxesHandler{svc: svc}
}

// Create provisions a disposable mailbox and returns its address together
// with the bearer token. The token is not retrievable afterwards.
func (h *MailboxesHandler) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MailboxesHandler.Create")
		defer span.Finish()
		tracing.TagComponentRest(span)

		mailbox, err := h.svc.MailboxService.CreateMailbox(ctx)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, dto.Fail("Failed to create mailbox"))
			return
		}

		c.JSON(http.StatusCreated, dto.OK(dto.MailboxCreated{
			Email:     mailbox.EmailAddress,
			Token:     mailbox.Token,
			ExpiresAt: mailbox.ExpiresAt,
		}))
	}
}
