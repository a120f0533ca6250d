package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health reports liveness and the number of online participants.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"online": h.Hub.OnlineCount(c.Request.Context()),
	})
}
