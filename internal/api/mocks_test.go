package api_test

import (
	"context"

	"github.com/chatvault/chatvault/internal/models"
	"github.com/chatvault/chatvault/internal/store"
)

// mockChatRepo implements api.ChatRepository for testing.
type mockChatRepo struct {
	listFn   func(ctx context.Context, limit, offset int) ([]models.StoredChat, error)
	getFn    func(ctx context.Context, chatID int64) (*models.StoredChat, []models.StoredMessage, error)
	searchFn func(ctx context.Context, query string, limit int) ([]models.StoredChat, error)
	statsFn  func(ctx context.Context) (*store.ArchiveStats, error)
}

func (m *mockChatRepo) ListChats(ctx context.Context, limit, offset int) ([]models.StoredChat, error) {
	return m.listFn(ctx, limit, offset)
}

func (m *mockChatRepo) GetChat(ctx context.Context, chatID int64) (*models.StoredChat, []models.StoredMessage, error) {
	return m.getFn(ctx, chatID)
}

func (m *mockChatRepo) SearchChats(ctx context.Context, query string, limit int) ([]models.StoredChat, error) {
	return m.searchFn(ctx, query, limit)
}

func (m *mockChatRepo) Stats(ctx context.Context) (*store.ArchiveStats, error) {
	return m.statsFn(ctx)
}
