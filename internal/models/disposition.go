package models

import "time"

// Disposition classifies the outcome of ingesting one conversation.
type Disposition int

const (
	// DispositionNew means no chat existed for the external ID; the chat
	// and its full message set were inserted.
	DispositionNew Disposition = iota

	// DispositionUnchanged means the stored hash matches the freshly
	// computed one; nothing was written.
	DispositionUnchanged

	// DispositionUpdated means the hash differed; chat metadata and the
	// complete message set were replaced transactionally.
	DispositionUpdated

	// DispositionRejected means the record could not be processed; the
	// failure is recorded and the run continues.
	DispositionRejected
)

// String returns the lowercase name of the disposition.
func (d Disposition) String() string {
	switch d {
	case DispositionNew:
		return "new"
	case DispositionUnchanged:
		return "unchanged"
	case DispositionUpdated:
		return "updated"
	case DispositionRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Rejection attributes one rejected record to its source.
type Rejection struct {
	ExternalID string `json:"external_id,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
	Reason     string `json:"reason"`
}

// RunSummary is the aggregate result of one ingestion run — the only thing
// surfaced to callers besides the storage state itself.
type RunSummary struct {
	RunID          string        `json:"run_id"`
	Container      string        `json:"container"`
	New            int           `json:"new"`
	Updated        int           `json:"updated"`
	Unchanged      int           `json:"unchanged"`
	Rejected       int           `json:"rejected"`
	PathRecoveries int           `json:"path_recoveries"`
	Rejections     []Rejection   `json:"rejections,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
}

// Total returns the number of records that reached a disposition.
func (s *RunSummary) Total() int {
	return s.New + s.Updated + s.Unchanged + s.Rejected
}

// Merge folds another summary's counts into this one. Used to combine
// per-worker accumulators at the end of a run.
func (s *RunSummary) Merge(other *RunSummary) {
	s.New += other.New
	s.Updated += other.Updated
	s.Unchanged += other.Unchanged
	s.Rejected += other.Rejected
	s.PathRecoveries += other.PathRecoveries
	s.Rejections = append(s.Rejections, other.Rejections...)
}
