package api

import (
	"context"

	"github.com/chatvault/chatvault/internal/models"
	"github.com/chatvault/chatvault/internal/store"
)

// ChatRepository is the read surface the HTTP handlers need from storage.
type ChatRepository interface {
	ListChats(ctx context.Context, limit, offset int) ([]models.StoredChat, error)
	GetChat(ctx context.Context, chatID int64) (*models.StoredChat, []models.StoredMessage, error)
	SearchChats(ctx context.Context, query string, limit int) ([]models.StoredChat, error)
	Stats(ctx context.Context) (*store.ArchiveStats, error)
}
