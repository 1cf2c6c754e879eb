// Package normalize reconstructs the canonical linear message sequence of a
// conversation from its export representation.
//
// Exports store a conversation as a graph of message nodes: every edit or
// regeneration forks a new branch, and a current-node pointer marks the tip
// of the branch that was actually presented. Normalization projects that
// graph onto the single root-to-tip path, discarding abandoned branches.
package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/chatvault/chatvault/internal/models"
)

// DefaultRoles is the role allow-list applied when none is configured.
// System messages are structural scaffolding and excluded by default.
var DefaultRoles = []string{"user", "assistant", "tool"}

// Config controls which messages are retained.
type Config struct {
	// Roles is the role allow-list. Empty means DefaultRoles.
	Roles []string

	// IncludeSystem adds "system" to the allow-list.
	IncludeSystem bool
}

// Normalizer turns raw conversation records into normalized conversations.
// It is stateless and safe for concurrent use.
type Normalizer struct {
	allowed map[string]struct{}
}

// New creates a Normalizer from the given config.
func New(cfg Config) *Normalizer {
	roles := cfg.Roles
	if len(roles) == 0 {
		roles = DefaultRoles
	}

	allowed := make(map[string]struct{}, len(roles)+1)
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	if cfg.IncludeSystem {
		allowed["system"] = struct{}{}
	}

	return &Normalizer{allowed: allowed}
}

// Normalize produces the canonical linear form of one raw conversation.
// A conversation with zero retained messages is valid (titles-only
// conversations exist in real exports). Fails with ErrMalformedRecord on a
// cyclic parent graph.
func (n *Normalizer) Normalize(raw *models.RawConversation) (*models.NormalizedConversation, error) {
	conv := &models.NormalizedConversation{
		ExternalID:  raw.ExternalID,
		Title:       raw.Title,
		CreateTime:  raw.CreateTime,
		UpdateTime:  raw.UpdateTime,
		Model:       raw.Model,
		ProjectID:   raw.ProjectID,
		ProjectName: raw.ProjectName,
		SourceFile:  raw.SourceFile,
		RawPayload:  raw.Raw,
	}

	if raw.HasGraph() {
		path, recovered, err := currentPath(raw)
		if err != nil {
			return nil, err
		}

		conv.PathRecovered = recovered

		for _, node := range path {
			n.appendKept(conv, node.Message)
		}
	} else {
		// Legacy flat exports: the list is already the linear path. Order by
		// create_time when present, matching how such exports were written.
		payloads := toPayloads(raw.FlatMessages)
		sort.SliceStable(payloads, func(i, j int) bool {
			return payloads[i].sortKey() < payloads[j].sortKey()
		})

		for _, p := range payloads {
			n.appendKept(conv, p.raw)
		}
	}

	conv.FlattenedText = flatten(conv.Messages)

	return conv, nil
}

// appendKept parses a message payload and appends it to the conversation if
// it passes the keep rule: a payload must exist, carry an allowed role, and
// have non-empty text. Indices stay dense over the retained messages.
func (n *Normalizer) appendKept(conv *models.NormalizedConversation, raw []byte) {
	p := parsePayload(raw)
	if p == nil {
		return
	}

	role := p.role()
	if _, ok := n.allowed[role]; !ok {
		return
	}

	content := p.text()
	if content == "" {
		return
	}

	conv.Messages = append(conv.Messages, models.NormalizedMessage{
		Index:      len(conv.Messages),
		Role:       role,
		CreatedAt:  p.createdAt(),
		Content:    content,
		RawPayload: raw,
	})
}

// currentPath walks the node arena from the current-node pointer back to the
// root and returns the path in root-to-tip order. When the pointer is
// missing or dangling it falls back to the deepest node reachable from a
// root and reports recovered=true. The walk is iterative and bounded by the
// arena size, so a cyclic parent graph fails instead of looping.
func currentPath(raw *models.RawConversation) (path []models.RawNode, recovered bool, err error) {
	start := raw.CurrentNode

	if _, ok := raw.Mapping[start]; !ok {
		start, err = deepestNode(raw.Mapping)
		if err != nil {
			return nil, false, err
		}

		recovered = true
	}

	visited := make(map[string]struct{}, len(raw.Mapping))
	reversed := make([]models.RawNode, 0, len(raw.Mapping))

	for id := start; ; {
		if _, seen := visited[id]; seen {
			return nil, false, fmt.Errorf("%w: cyclic parent graph in %s at node %s", models.ErrMalformedRecord, raw.ExternalID, id)
		}

		visited[id] = struct{}{}

		node, ok := raw.Mapping[id]
		if !ok {
			// Dangling parent reference; treat the previous node as root.
			break
		}

		reversed = append(reversed, node)

		if node.Parent == "" {
			break
		}

		id = node.Parent
	}

	path = make([]models.RawNode, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}

	return path, recovered, nil
}

// deepestNode finds the deepest node reachable from the graph roots via
// child edges. Ties break by last-created message timestamp, then by node
// ID, so recovery is deterministic across runs. Fails when no root exists,
// which only happens on a fully cyclic graph.
func deepestNode(mapping map[string]models.RawNode) (string, error) {
	type candidate struct {
		id    string
		depth int
	}

	var frontier []candidate

	for id, node := range mapping {
		if node.Parent == "" {
			frontier = append(frontier, candidate{id: id})

			continue
		}

		if _, ok := mapping[node.Parent]; !ok {
			frontier = append(frontier, candidate{id: id})
		}
	}

	if len(frontier) == 0 {
		return "", fmt.Errorf("%w: node graph has no root", models.ErrMalformedRecord)
	}

	sort.Slice(frontier, func(i, j int) bool { return frontier[i].id < frontier[j].id })

	best := frontier[0]
	bestCreated := nodeCreateTime(mapping[best.id])
	visited := make(map[string]struct{}, len(mapping))

	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]

		if _, seen := visited[cur.id]; seen {
			continue
		}

		visited[cur.id] = struct{}{}

		created := nodeCreateTime(mapping[cur.id])
		if cur.depth > best.depth ||
			(cur.depth == best.depth && created > bestCreated) ||
			(cur.depth == best.depth && created == bestCreated && cur.id > best.id) {
			best = cur
			bestCreated = created
		}

		node := mapping[cur.id]
		for _, child := range node.Children {
			if _, ok := mapping[child]; !ok {
				continue
			}

			if _, seen := visited[child]; !seen {
				frontier = append(frontier, candidate{id: child, depth: cur.depth + 1})
			}
		}
	}

	return best.id, nil
}

// nodeCreateTime returns the node's message creation time as UNIX seconds,
// or 0 when absent.
func nodeCreateTime(node models.RawNode) float64 {
	p := parsePayload(node.Message)
	if p == nil || p.CreateTime == nil {
		return 0
	}

	return *p.CreateTime
}

// flatten renders the retained messages as newline-joined "role: content"
// lines. The result is human-legible, byte-stable, and the hash input.
func flatten(msgs []models.NormalizedMessage) string {
	if len(msgs) == 0 {
		return ""
	}

	var sb strings.Builder

	for i, m := range msgs {
		if i > 0 {
			sb.WriteByte('\n')
		}

		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
	}

	return sb.String()
}

// jsonPayload pairs a raw payload with its parsed form for sorting.
type jsonPayload struct {
	raw    json.RawMessage
	parsed *messagePayload
}

func (p jsonPayload) sortKey() float64 {
	if p.parsed == nil || p.parsed.CreateTime == nil {
		return 0
	}

	return *p.parsed.CreateTime
}

func toPayloads(raws []json.RawMessage) []jsonPayload {
	out := make([]jsonPayload, 0, len(raws))
	for _, raw := range raws {
		out = append(out, jsonPayload{raw: raw, parsed: parsePayload(raw)})
	}

	return out
}
