// Package hash computes deterministic content digests for conversations.
//
// The digest backs both deduplication and change detection across
// re-ingestion runs, so it must be a pure function of content: byte-equal
// input hashes identically regardless of when or how often it is computed.
// SHA-256 keeps accidental collisions between unrelated conversations
// computationally negligible, which a fast non-cryptographic hash would not.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/chatvault/chatvault/internal/models"
)

// digestInput is the canonical structure fed to the digest. Fields are
// marshalled in declaration order by encoding/json, giving a stable byte
// stream. Volatile export fields (node IDs, timestamps, metadata) are
// deliberately excluded so re-exports with regenerated internals still
// compare as unchanged.
type digestInput struct {
	Title    string          `json:"title"`
	Model    string          `json:"model"`
	Messages []digestMessage `json:"messages"`
}

type digestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation returns the hex SHA-256 digest of a normalized
// conversation's content: title, model, and the ordered (role, content)
// pairs of its retained messages.
func Conversation(n *models.NormalizedConversation) string {
	input := digestInput{
		Title:    n.Title,
		Model:    n.Model,
		Messages: make([]digestMessage, len(n.Messages)),
	}

	for i, m := range n.Messages {
		input.Messages[i] = digestMessage{Role: m.Role, Content: m.Content}
	}

	canonical, _ := json.Marshal(input) //nolint:errcheck // plain strings, cannot fail.

	sum := sha256.Sum256(canonical)

	return hex.EncodeToString(sum[:])
}

// Text returns the hex SHA-256 digest of an arbitrary string. Used where a
// single flattened text needs fingerprinting.
func Text(s string) string {
	sum := sha256.Sum256([]byte(s))

	return hex.EncodeToString(sum[:])
}
