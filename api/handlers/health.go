package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mailcat/mailcat/internal/repository"
)

// HealthCheck reports process liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status reports readiness, including database reachability and the
// number of live mailboxes.
func Status(repos *repository.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		liveMailboxes, err := repos.MailboxRepository.CountLive(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"error":  "database unavailable",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"liveMailboxes": liveMailboxes,
		})
	}
}
