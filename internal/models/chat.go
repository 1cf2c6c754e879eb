// Package models defines data types for the conversation archive.
package models

import (
	"encoding/json"
	"time"
)

// NormalizedMessage is one retained message of a normalized conversation.
// Index is dense and 0-based over the retained messages only.
type NormalizedMessage struct {
	Index      int             `json:"index"`
	Role       string          `json:"role"`
	CreatedAt  *time.Time      `json:"created_at,omitempty"`
	Content    string          `json:"content"`
	RawPayload json.RawMessage `json:"-"`
}

// NormalizedConversation is the canonical linear form of one conversation:
// the single path of messages that was actually presented, with abandoned
// branches discarded. It is recomputed on every run and serves as the
// comparison baseline against storage, never as a cache.
type NormalizedConversation struct {
	ExternalID  string
	Title       string
	CreateTime  *time.Time
	UpdateTime  *time.Time
	Model       string
	ProjectID   string
	ProjectName string
	SourceFile  string

	Messages []NormalizedMessage

	// FlattenedText is the newline-joined "role: content" rendition of all
	// retained messages, used as the hash input and for plain-text search.
	FlattenedText string

	// ContentHash is a deterministic digest over the flattened content plus
	// structurally significant metadata (title, model).
	ContentHash string

	// RawPayload is the original graph document, retained verbatim.
	RawPayload json.RawMessage

	// PathRecovered is set when the current-node pointer was missing or
	// dangling and the deepest-node fallback was used.
	PathRecovered bool
}

// StoredChat is the persisted form of a conversation. Created on first
// sight of an external ID; its hash and message set are fully replaced when
// a later ingestion produces a different content hash.
type StoredChat struct {
	ID          int64      `json:"id"`
	ExternalID  string     `json:"external_id"`
	Title       string     `json:"title"`
	CreateTime  *time.Time `json:"create_time,omitempty"`
	UpdateTime  *time.Time `json:"update_time,omitempty"`
	Model       string     `json:"model,omitempty"`
	ProjectID   string     `json:"project_id,omitempty"`
	ProjectName string     `json:"project_name,omitempty"`
	SourceFile  string     `json:"source_file,omitempty"`
	Hash        string     `json:"hash"`
	ContentText string     `json:"-"`
	RawJSON     []byte     `json:"-"`
	IngestedAt  time.Time  `json:"ingested_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// StoredMessage is one persisted message row. (chat_id, message_index) is
// unique per chat; rows cascade on chat deletion.
type StoredMessage struct {
	ID        int64      `json:"id"`
	ChatID    int64      `json:"-"`
	Index     int        `json:"index"`
	Role      string     `json:"role"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Content   string     `json:"content"`
	RawJSON   []byte     `json:"-"`
}

// NewStoredChat builds the persisted form of a normalized conversation.
func NewStoredChat(n *NormalizedConversation) StoredChat {
	return StoredChat{
		ExternalID:  n.ExternalID,
		Title:       n.Title,
		CreateTime:  n.CreateTime,
		UpdateTime:  n.UpdateTime,
		Model:       n.Model,
		ProjectID:   n.ProjectID,
		ProjectName: n.ProjectName,
		SourceFile:  n.SourceFile,
		Hash:        n.ContentHash,
		ContentText: n.FlattenedText,
		RawJSON:     n.RawPayload,
	}
}

// NewStoredMessages builds the persisted message rows for a normalized
// conversation. ChatID is filled in by the store at insert time.
func NewStoredMessages(n *NormalizedConversation) []StoredMessage {
	msgs := make([]StoredMessage, len(n.Messages))
	for i, m := range n.Messages {
		msgs[i] = StoredMessage{
			Index:     m.Index,
			Role:      m.Role,
			CreatedAt: m.CreatedAt,
			Content:   m.Content,
			RawJSON:   m.RawPayload,
		}
	}

	return msgs
}
