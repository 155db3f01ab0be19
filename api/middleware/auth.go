package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mailcat/mailcat/dto"
	"github.com/mailcat/mailcat/interfaces"
	"github.com/mailcat/mailcat/internal/models"
)

// MailboxContextKey is the gin context key the authenticated mailbox is
// stored under.
const MailboxContextKey = "authenticatedMailbox"

// MailboxAuthMiddleware resolves the Bearer token to a live mailbox.
// Expired mailboxes fail authentication the same way as bad tokens.
func MailboxAuthMiddleware(mailboxService interfaces.MailboxService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		if header == "" || token == "" || token == header {
			c.JSON(http.StatusUnauthorized, dto.Fail("Missing bearer token"))
			c.Abort()
			return
		}

		mailbox, err := mailboxService.Authenticate(c.Request.Context(), token)
		if err != nil || mailbox == nil {
			c.JSON(http.StatusUnauthorized, dto.Fail("Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(MailboxContextKey, mailbox)
		c.Next()
	}
}

// MailboxFromContext returns the mailbox stored by MailboxAuthMiddleware.
func MailboxFromContext(c *gin.Context) *models.Mailbox {
	value, exists := c.Get(MailboxContextKey)
	if !exists {
		return nil
	}
	mailbox, ok := value.(*models.Mailbox)
	if !ok {
		return nil
	}
	return mailbox
}
