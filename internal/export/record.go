package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/chatvault/chatvault/internal/models"
)

// rawRecord mirrors the export wire shape of one conversation. Every field
// is optional at the JSON level; required-field checks happen in parseRecord.
type rawRecord struct {
	ID               string             `json:"id"`
	ConversationID   string             `json:"conversation_id"`
	Title            string             `json:"title"`
	CreateTime       *float64           `json:"create_time"`
	UpdateTime       *float64           `json:"update_time"`
	Model            string             `json:"model"`
	DefaultModelSlug string             `json:"default_model_slug"`
	ProjectID        string             `json:"project_id"`
	ProjectName      string             `json:"project_name"`
	CurrentNode      string             `json:"current_node"`
	Mapping          map[string]rawNode `json:"mapping"`
	Messages         []json.RawMessage  `json:"messages"`
}

// rawNode mirrors one mapping entry. Parent is a pointer because the export
// writes an explicit null for root nodes.
type rawNode struct {
	ID       string          `json:"id"`
	Parent   *string         `json:"parent"`
	Children []string        `json:"children"`
	Message  json.RawMessage `json:"message"`
}

// parseRecord minimally parses one raw record. It fails with
// ErrMalformedRecord when the record has no usable identity or no message
// structure at all; everything else is read defensively.
func parseRecord(raw json.RawMessage, sourceFile string) (*models.RawConversation, error) {
	var rec rawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedRecord, err)
	}

	externalID := rec.ID
	if externalID == "" {
		externalID = rec.ConversationID
	}

	if externalID == "" {
		return nil, fmt.Errorf("%w: record has no id", models.ErrMalformedRecord)
	}

	if len(rec.Mapping) == 0 && rec.Messages == nil {
		return nil, fmt.Errorf("%w: record %s has no node graph and no message list", models.ErrMalformedRecord, externalID)
	}

	title := rec.Title
	if title == "" {
		title = "Untitled Chat"
	}

	model := rec.Model
	if model == "" {
		model = rec.DefaultModelSlug
	}

	conv := &models.RawConversation{
		ExternalID:   externalID,
		Title:        title,
		CreateTime:   unixFloat(rec.CreateTime),
		UpdateTime:   unixFloat(rec.UpdateTime),
		Model:        model,
		ProjectID:    rec.ProjectID,
		ProjectName:  rec.ProjectName,
		SourceFile:   sourceFile,
		CurrentNode:  rec.CurrentNode,
		FlatMessages: rec.Messages,
		Raw:          raw,
	}

	if len(rec.Mapping) > 0 {
		conv.Mapping = make(map[string]models.RawNode, len(rec.Mapping))
		for id, n := range rec.Mapping {
			node := models.RawNode{
				ID:       n.ID,
				Children: n.Children,
				Message:  normalizeJSONNull(n.Message),
			}

			if node.ID == "" {
				node.ID = id
			}

			if n.Parent != nil {
				node.Parent = *n.Parent
			}

			conv.Mapping[id] = node
		}
	}

	return conv, nil
}

// unixFloat converts an export timestamp (UNIX seconds, fractional) to a
// time.Time. Zero and absent values map to nil.
func unixFloat(v *float64) *time.Time {
	if v == nil || *v == 0 || math.IsNaN(*v) {
		return nil
	}

	sec, frac := math.Modf(*v)
	t := time.Unix(int64(sec), int64(frac*1e9)).UTC()

	return &t
}

// normalizeJSONNull maps a literal JSON null to a nil RawMessage so callers
// can test presence with a plain nil check.
func normalizeJSONNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}

	return raw
}
