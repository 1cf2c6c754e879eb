package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/chatvault/chatvault/internal/models"
)

// ChatStore handles chat and message persistence.
type ChatStore struct {
	Base
}

// NewChatStore creates a ChatStore.
func NewChatStore(base Base) *ChatStore {
	return &ChatStore{Base: base}
}

const chatColumns = `id, external_id, title, create_time, update_time, model,
	project_id, project_name, source_file, hash, content_text, ingested_at, updated_at`

// FindByExternalID looks up a chat by its export-stable identity key.
// Returns ErrChatNotFound when no chat exists.
func (s *ChatStore) FindByExternalID(ctx context.Context, externalID string) (*models.StoredChat, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.Pool.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE external_id = $1`, externalID)

	chat, err := scanChat(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrChatNotFound
		}

		return nil, fmt.Errorf("looking up chat %s: %w", externalID, mapWriteError(err))
	}

	return chat, nil
}

// InsertChat inserts a new chat with its full message set in one
// transaction. Returns the internal chat ID. Fails with ErrDuplicateKey if
// a concurrent insert won the race for the same external ID.
func (s *ChatStore) InsertChat(ctx context.Context, chat models.StoredChat, msgs []models.StoredMessage) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("inserting chat %s: %w", chat.ExternalID, err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	var chatID int64

	err = tx.QueryRow(ctx, `
		INSERT INTO chats
			(external_id, title, create_time, update_time, model,
			 project_id, project_name, source_file, hash, content_text, raw_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		chat.ExternalID, chat.Title, chat.CreateTime, chat.UpdateTime, chat.Model,
		chat.ProjectID, chat.ProjectName, chat.SourceFile, chat.Hash, chat.ContentText, chat.RawJSON,
	).Scan(&chatID)
	if err != nil {
		return 0, fmt.Errorf("inserting chat %s: %w", chat.ExternalID, mapWriteError(err))
	}

	if err := insertMessages(ctx, tx, chatID, msgs); err != nil {
		return 0, fmt.Errorf("inserting messages for chat %s: %w", chat.ExternalID, mapWriteError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing chat %s: %w", chat.ExternalID, mapWriteError(err))
	}

	return chatID, nil
}

// ReplaceChat atomically swaps a chat's metadata, hash, raw payload, and
// complete message set. Messages are never merged field-by-field: the old
// set is deleted and the new one inserted, because partial merges cannot
// safely reconcile branch changes.
func (s *ChatStore) ReplaceChat(ctx context.Context, chatID int64, chat models.StoredChat, msgs []models.StoredMessage) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return fmt.Errorf("replacing chat %s: %w", chat.ExternalID, err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	tag, err := tx.Exec(ctx, `
		UPDATE chats
		SET title = $1, create_time = $2, update_time = $3, model = $4,
		    project_id = $5, project_name = $6, source_file = $7,
		    hash = $8, content_text = $9, raw_json = $10, updated_at = now()
		WHERE id = $11
	`,
		chat.Title, chat.CreateTime, chat.UpdateTime, chat.Model,
		chat.ProjectID, chat.ProjectName, chat.SourceFile,
		chat.Hash, chat.ContentText, chat.RawJSON, chatID,
	)
	if err != nil {
		return fmt.Errorf("updating chat %s: %w", chat.ExternalID, mapWriteError(err))
	}

	if tag.RowsAffected() == 0 {
		return models.ErrChatNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("clearing messages for chat %s: %w", chat.ExternalID, mapWriteError(err))
	}

	if err := insertMessages(ctx, tx, chatID, msgs); err != nil {
		return fmt.Errorf("reinserting messages for chat %s: %w", chat.ExternalID, mapWriteError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chat replacement %s: %w", chat.ExternalID, mapWriteError(err))
	}

	return nil
}

// insertMessages inserts the ordered message rows for a chat inside tx.
func insertMessages(ctx context.Context, tx pgx.Tx, chatID int64, msgs []models.StoredMessage) error {
	for _, m := range msgs {
		var rawJSON any
		if len(m.RawJSON) > 0 {
			rawJSON = m.RawJSON
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO messages (chat_id, message_index, role, created_at, content, raw_json)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, chatID, m.Index, m.Role, m.CreatedAt, m.Content, rawJSON)
		if err != nil {
			return fmt.Errorf("message %d: %w", m.Index, err)
		}
	}

	return nil
}
