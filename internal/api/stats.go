package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/chatvault/chatvault/internal/metrics"
)

// StatsHandler serves the archive statistics endpoint.
type StatsHandler struct {
	chats ChatRepository
	log   *logrus.Logger
}

// NewStatsHandler creates a StatsHandler with the given dependencies.
func NewStatsHandler(chats ChatRepository, log *logrus.Logger) *StatsHandler {
	return &StatsHandler{chats: chats, log: log}
}

// GetStats handles GET /api/v1/stats — returns aggregate archive statistics.
func (h *StatsHandler) GetStats(c *gin.Context) {
	stats, err := h.chats.Stats(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("stats: query")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
		return
	}

	// Update Prometheus gauges with fresh counts.
	metrics.ChatCount.Set(float64(stats.Chats))
	metrics.MessageCount.Set(float64(stats.Messages))

	c.JSON(http.StatusOK, stats)
}
