package normalize

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// messagePayload is the defensively-parsed shape of one message payload.
// Export vintages disagree on where the role lives and what the content
// field looks like, so every field is optional.
type messagePayload struct {
	Author *struct {
		Role string `json:"role"`
	} `json:"author"`
	Role       string          `json:"role"`
	CreateTime *float64        `json:"create_time"`
	Content    json.RawMessage `json:"content"`
}

// parsePayload decodes a raw message payload. Returns nil for absent or
// undecodable payloads; such nodes are structural placeholders.
func parsePayload(raw json.RawMessage) *messagePayload {
	if len(raw) == 0 {
		return nil
	}

	var p messagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}

	return &p
}

// role resolves the message role. Newer exports nest it under author.role,
// older ones put it at the top level; assistant is the historical default.
func (p *messagePayload) role() string {
	if p.Author != nil && p.Author.Role != "" {
		return p.Author.Role
	}

	if p.Role != "" {
		return p.Role
	}

	return "assistant"
}

// createdAt converts the payload's UNIX-seconds timestamp, if any.
func (p *messagePayload) createdAt() *time.Time {
	if p.CreateTime == nil || *p.CreateTime == 0 || math.IsNaN(*p.CreateTime) {
		return nil
	}

	sec, frac := math.Modf(*p.CreateTime)
	t := time.Unix(int64(sec), int64(frac*1e9)).UTC()

	return &t
}

// text extracts the plain-text content of the payload. Known shapes:
//
//	content: {"content_type": "text", "parts": ["hello", ...]}
//	content: {"text": "hello"}
//	content: "hello"
//	content: null / {} / absent
//
// Non-string parts (image pointers and the like) are dropped.
func (p *messagePayload) text() string {
	if len(p.Content) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(p.Content, &asString); err == nil {
		return strings.TrimSpace(asString)
	}

	var asObject struct {
		Parts []json.RawMessage `json:"parts"`
		Text  *string           `json:"text"`
	}

	if err := json.Unmarshal(p.Content, &asObject); err != nil {
		return ""
	}

	if asObject.Parts != nil {
		parts := make([]string, 0, len(asObject.Parts))

		for _, raw := range asObject.Parts {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				parts = append(parts, s)
			}
		}

		return strings.TrimSpace(strings.Join(parts, "\n"))
	}

	if asObject.Text != nil {
		return strings.TrimSpace(*asObject.Text)
	}

	return ""
}
