package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pairup/backend/internal/chathub"
	"pairup/backend/internal/config"
	"pairup/backend/internal/metrics"
)

// Handler holds a reference to the hub.
type Handler struct {
	Hub      *chathub.ManagerService
	Config   *config.Config
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger

	upgrader websocket.Upgrader
}

func NewHandler(hub *chathub.ManagerService, cfg *config.Config, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{Hub: hub, Config: cfg, Metrics: m, Gatherer: gatherer, Logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Router registers every route on a new gin engine.
func (h *Handler) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/ws", h.ServeWebSocket)
	r.GET("/healthz", h.Health)
	if h.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})))
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.Config == nil {
		return true
	}
	return h.Config.OriginAllowed(origin)
}
