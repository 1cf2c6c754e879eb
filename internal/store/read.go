package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chatvault/chatvault/internal/models"
)

const messageColumns = `id, chat_id, message_index, role, created_at, content`

// ListChats returns archived chats ordered by source creation time (oldest
// first, nulls last), then by internal ID for a stable order.
func (s *ChatStore) ListChats(ctx context.Context, limit, offset int) ([]models.StoredChat, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `
		SELECT `+chatColumns+`
		FROM chats
		ORDER BY create_time ASC NULLS LAST, id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	defer rows.Close()

	return collectChats(rows)
}

// GetChat returns one chat by internal ID with its ordered messages.
func (s *ChatStore) GetChat(ctx context.Context, chatID int64) (*models.StoredChat, []models.StoredMessage, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.Pool.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = $1`, chatID)

	chat, err := scanChat(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, models.ErrChatNotFound
		}

		return nil, nil, fmt.Errorf("getting chat %d: %w", chatID, err)
	}

	msgs, err := s.listMessages(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}

	return chat, msgs, nil
}

// listMessages returns a chat's messages in presentation order.
func (s *ChatStore) listMessages(ctx context.Context, chatID int64) ([]models.StoredMessage, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE chat_id = $1
		ORDER BY message_index ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("listing messages for chat %d: %w", chatID, err)
	}
	defer rows.Close()

	var msgs []models.StoredMessage

	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		msgs = append(msgs, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return msgs, nil
}

// SearchChats finds chats whose title or flattened content matches the
// query, most recently updated first.
func (s *ChatStore) SearchChats(ctx context.Context, query string, limit int) ([]models.StoredChat, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `
		SELECT `+chatColumns+`
		FROM chats
		WHERE title ILIKE '%' || $1 || '%' OR content_text ILIKE '%' || $1 || '%'
		ORDER BY update_time DESC NULLS LAST, id DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching chats: %w", err)
	}
	defer rows.Close()

	return collectChats(rows)
}

// ArchiveStats summarizes the archive's contents.
type ArchiveStats struct {
	Chats          int64      `json:"chats"`
	Messages       int64      `json:"messages"`
	LastIngestedAt *time.Time `json:"last_ingested_at,omitempty"`
}

// Stats returns aggregate archive counts.
func (s *ChatStore) Stats(ctx context.Context) (*ArchiveStats, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var st ArchiveStats

	err := s.Pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM chats),
			(SELECT count(*) FROM messages),
			(SELECT max(ingested_at) FROM chats)
	`).Scan(&st.Chats, &st.Messages, &st.LastIngestedAt)
	if err != nil {
		return nil, fmt.Errorf("reading archive stats: %w", err)
	}

	return &st, nil
}

// collectChats drains rows into a chat slice.
func collectChats(rows pgx.Rows) ([]models.StoredChat, error) {
	var chats []models.StoredChat

	for rows.Next() {
		c, err := scanChat(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning chat row: %w", err)
		}

		chats = append(chats, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chat rows: %w", err)
	}

	return chats, nil
}
