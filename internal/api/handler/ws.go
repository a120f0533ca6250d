package handler

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pairup/backend/internal/chathub"
	"pairup/backend/internal/config"
	"pairup/backend/internal/models"
)

// ServeWebSocket upgrades the HTTP connection to a WebSocket and hands the new
// participant to the hub. Handshake query parameters carry the display name,
// an optional chat room and the matching attributes.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.Logger.Debug("websocket upgrade failed", "err", err)
		return
	}

	bufSize := config.DefaultSendBuffer
	if h.Config != nil && h.Config.SendBuffer > 0 {
		bufSize = h.Config.SendBuffer
	}
	client := chathub.NewWebSocketClient(uuid.NewString(), conn, h.Hub, bufSize, h.Metrics, h.Logger)

	reg := chathub.Registration{
		Client:   client,
		Name:     c.Query("name"),
		Meta:     handshakeMeta(c),
		ChatRoom: strings.TrimSpace(c.Query("roomId")),
	}

	// RegisterCh is unbuffered, so the participant is registered before any of
	// its frames are read.
	if !h.Hub.Register(reg) {
		conn.Close()
		return
	}
	client.Run()
}

func handshakeMeta(c *gin.Context) models.Meta {
	ip := c.ClientIP()
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return models.Meta{
		Locale:      c.Query("locale"),
		UserAgent:   c.Request.UserAgent(),
		IP:          ip,
		Language:    c.Query(config.AttrLanguage),
		Industry:    c.Query(config.AttrIndustry),
		SkillBucket: c.Query(config.AttrSkillBucket),
	}
}
