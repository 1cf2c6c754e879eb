package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/chatvault/chatvault/internal/models"
)

// ChatHandler serves archived chat endpoints.
type ChatHandler struct {
	chats ChatRepository
	log   *logrus.Logger
}

// NewChatHandler creates a ChatHandler with the given dependencies.
func NewChatHandler(chats ChatRepository, log *logrus.Logger) *ChatHandler {
	return &ChatHandler{chats: chats, log: log}
}

// listResponse is the JSON payload returned by the chat list endpoint.
type listResponse struct {
	Chats  []models.StoredChat `json:"chats"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// chatResponse is the JSON payload returned by the single-chat endpoint.
type chatResponse struct {
	Chat     *models.StoredChat     `json:"chat"`
	Messages []models.StoredMessage `json:"messages"`
}

// List handles GET /api/v1/chats — returns a page of archived chats.
func (h *ChatHandler) List(c *gin.Context) {
	limit := parseInt(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))

	chats, err := h.chats.ListChats(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.WithError(err).Error("chats: list")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
		return
	}

	if chats == nil {
		chats = []models.StoredChat{}
	}

	c.JSON(http.StatusOK, listResponse{Chats: chats, Limit: limit, Offset: offset})
}

// Get handles GET /api/v1/chats/:id — returns one chat with its messages.
func (h *ChatHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "id must be a positive integer")
		return
	}

	chat, msgs, err := h.chats.GetChat(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrChatNotFound) {
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
			return
		}

		h.log.WithError(err).Error("chats: get")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
		return
	}

	if msgs == nil {
		msgs = []models.StoredMessage{}
	}

	c.JSON(http.StatusOK, chatResponse{Chat: chat, Messages: msgs})
}
