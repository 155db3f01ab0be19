package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/mailcat/mailcat/api/middleware"
	"github.com/mailcat/mailcat/dto"
	"github.com/mailcat/mailcat/internal/repository"
	"github.com/mailcat/mailcat/internal/tracing"
)

type EmailsHandler struct {
	repos *repository.Repositories
}

func NewEmailsHandler(repos *repository.Repositories) *EmailsHandler {
	return &EmailsHandler{repos: repos}
}

// Get returns one message with its extracted signals. Lookups are scoped
// to the authenticated mailbox, so one token can never read another
// mailbox's mail.
func (h *EmailsHandler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "EmailsHandler.Get")
		defer span.Finish()
		tracing.TagComponentRest(span)

		mailbox := middleware.MailboxFromContext(c)
		if mailbox == nil {
			c.JSON(http.StatusUnauthorized, dto.Fail("Invalid or expired token"))
			return
		}
		tracing.TagMailboxID(span, mailbox.ID)

		emailID := c.Param("id")
		tracing.TagEmailID(span, emailID)

		email, err := h.repos.EmailRepository.GetByID(ctx, mailbox.ID, emailID)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, dto.Fail("Failed to load email"))
			return
		}
		if email == nil {
			c.JSON(http.StatusNotFound, dto.Fail("Email not found"))
			return
		}

		c.JSON(http.StatusOK, dto.OK(dto.NewEmailDetail(email)))
	}
}

// Delete removes one message from the authenticated mailbox. Deleting a
// message that is already gone is a 404, matching Get.
func (h *EmailsHandler) Delete() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "EmailsHandler.Delete")
		defer span.Finish()
		tracing.TagComponentRest(span)

		mailbox := middleware.MailboxFromContext(c)
		if mailbox == nil {
			c.JSON(http.StatusUnauthorized, dto.Fail("Invalid or expired token"))
			return
		}
		tracing.TagMailboxID(span, mailbox.ID)

		emailID := c.Param("id")
		tracing.TagEmailID(span, emailID)

		email, err := h.repos.EmailRepository.GetByID(ctx, mailbox.ID, emailID)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, dto.Fail("Failed to delete email"))
			return
		}
		if email == nil {
			c.JSON(http.StatusNotFound, dto.Fail("Email not found"))
			return
		}

		if err := h.repos.EmailRepository.Delete(ctx, mailbox.ID, emailID); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, dto.Fail("Failed to delete email"))
			return
		}

		c.JSON(http.StatusOK, dto.OK(gin.H{"deleted": emailID}))
	}
}
