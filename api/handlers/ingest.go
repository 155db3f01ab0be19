package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailcat/mailcat/dto"
	"github.com/mailcat/mailcat/internal/tracing"
	"github.com/mailcat/mailcat/services"

	er "github.com/mailcat/mailcat/internal/errors"
)

// IngestHandler accepts raw MIME over HTTP for delivery platforms that
// forward inbound mail via webhook instead of SMTP. The endpoint sits
// behind the internal API key.
type IngestHandler struct {
	svc *services.Services
}

func NewIngestHandler(svc *services.Services) *IngestHandler {
	return &IngestHandler{svc: svc}
}

func (h *IngestHandler) Inbound() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "IngestHandler.Inbound")
		defer span.Finish()
		tracing.TagComponentRest(span)

		var message dto.InboundMessage
		if err := c.BindJSON(&message); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, dto.Fail("Invalid payload"))
			return
		}

		email, err := h.svc.IngestionService.Deliver(ctx, message.From, message.To, message.Raw)
		if err != nil {
			tracing.TraceErr(span, err)
			switch {
			case errors.Is(err, er.ErrUnknownRecipient):
				c.JSON(http.StatusNotFound, dto.Fail("No such mailbox"))
			case errors.Is(err, er.ErrMessageTooLarge):
				c.JSON(http.StatusRequestEntityTooLarge, dto.Fail("Message too large"))
			default:
				c.JSON(http.StatusInternalServerError, dto.Fail("Failed to ingest message"))
			}
			return
		}

		c.JSON(http.StatusAccepted, dto.OK(gin.H{"id": email.ID}))
	}
}
