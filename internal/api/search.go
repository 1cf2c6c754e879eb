package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/chatvault/chatvault/internal/models"
)

// SearchHandler serves plain-text search over archived chats.
type SearchHandler struct {
	chats ChatRepository
	log   *logrus.Logger
}

// NewSearchHandler creates a SearchHandler with the given dependencies.
func NewSearchHandler(chats ChatRepository, log *logrus.Logger) *SearchHandler {
	return &SearchHandler{chats: chats, log: log}
}

// searchResponse is the JSON payload returned by the search endpoint.
type searchResponse struct {
	Query   string              `json:"query"`
	Results []models.StoredChat `json:"results"`
}

// maxQueryLength caps the search query size.
const maxQueryLength = 500

// Search handles GET /api/v1/search — matches titles and message content.
func (h *SearchHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "query parameter 'q' is required")
		return
	}

	if len(query) > maxQueryLength {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "query exceeds maximum length")
		return
	}

	limit := parseInt(c.Query("limit"), 50)

	results, err := h.chats.SearchChats(c.Request.Context(), query, limit)
	if err != nil {
		h.log.WithError(err).Error("search: query")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
		return
	}

	if results == nil {
		results = []models.StoredChat{}
	}

	c.JSON(http.StatusOK, searchResponse{Query: query, Results: results})
}
