package models

import (
	"encoding/json"
	"time"
)

// RawConversation is one conversation record as read from an export
// container, minimally parsed. The node graph is kept as an arena keyed by
// node ID; parent/child relations are ID-based, never pointers. The record
// lives only for the duration of one ingestion call.
type RawConversation struct {
	ExternalID  string
	Title       string
	CreateTime  *time.Time
	UpdateTime  *time.Time
	Model       string
	ProjectID   string
	ProjectName string
	SourceFile  string

	// CurrentNode identifies the tip of the branch the user last viewed.
	// May be empty or dangling in older or truncated exports.
	CurrentNode string

	// Mapping is the node arena. Nil for legacy exports that carry a flat
	// message list instead of a graph.
	Mapping map[string]RawNode

	// FlatMessages holds the ordered message payloads of legacy exports
	// without a mapping graph.
	FlatMessages []json.RawMessage

	// Raw is the original record, retained verbatim for archival.
	Raw json.RawMessage
}

// HasGraph reports whether the record carries a node graph.
func (c *RawConversation) HasGraph() bool {
	return len(c.Mapping) > 0
}

// RawNode is one node in the conversation graph. Message is nil for
// structural placeholder nodes.
type RawNode struct {
	ID       string
	Parent   string
	Children []string
	Message  json.RawMessage
}
