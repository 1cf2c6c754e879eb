// Package ingest drives full ingestion runs: read an export container,
// normalize each conversation, and reconcile it against storage.
//
// A run is idempotent. Re-ingesting an unchanged container writes nothing;
// a changed conversation is replaced whole. Each conversation reaches
// exactly one disposition, and a failure local to one record never aborts
// the run.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chatvault/chatvault/internal/export"
	"github.com/chatvault/chatvault/internal/hash"
	"github.com/chatvault/chatvault/internal/metrics"
	"github.com/chatvault/chatvault/internal/models"
	"github.com/chatvault/chatvault/internal/normalize"
)

// ChatWriter is the slice of the storage gateway the coordinator needs.
type ChatWriter interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.StoredChat, error)
	InsertChat(ctx context.Context, chat models.StoredChat, msgs []models.StoredMessage) (int64, error)
	ReplaceChat(ctx context.Context, chatID int64, chat models.StoredChat, msgs []models.StoredMessage) error
}

// Config tunes a coordinator.
type Config struct {
	// Workers is the ingestion parallelism. Values below 2 select the
	// sequential path.
	Workers int

	// Normalizer configures message retention during normalization.
	Normalizer normalize.Config
}

// Coordinator runs ingestions against a storage gateway.
type Coordinator struct {
	store      ChatWriter
	normalizer *normalize.Normalizer
	log        *logrus.Logger
	workers    int
}

// New creates a Coordinator.
func New(store ChatWriter, cfg Config, log *logrus.Logger) *Coordinator {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	return &Coordinator{
		store:      store,
		normalizer: normalize.New(cfg.Normalizer),
		log:        log,
		workers:    workers,
	}
}

// Run ingests one export container and returns the run summary. The summary
// is returned even on a fatal error, reflecting whatever had already been
// committed; completed writes are never rolled back.
func (c *Coordinator) Run(ctx context.Context, containerPath string) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		RunID:     uuid.NewString(),
		Container: containerPath,
		StartedAt: time.Now(),
	}

	log := c.log.WithFields(logrus.Fields{
		"run_id":    summary.RunID,
		"container": containerPath,
	})

	log.WithField("workers", c.workers).Info("ingestion run started")

	reader, err := export.Open(containerPath, c.log)
	if err != nil {
		summary.Duration = time.Since(summary.StartedAt)

		return summary, err
	}

	defer reader.Close() //nolint:errcheck // read-only container.

	if c.workers > 1 {
		err = c.runParallel(ctx, reader, summary)
	} else {
		err = c.runSequential(ctx, reader, summary)
	}

	summary.Duration = time.Since(summary.StartedAt)
	metrics.IngestRunDuration.Observe(summary.Duration.Seconds())

	log.WithFields(logrus.Fields{
		"new":             summary.New,
		"updated":         summary.Updated,
		"unchanged":       summary.Unchanged,
		"rejected":        summary.Rejected,
		"path_recoveries": summary.PathRecoveries,
		"duration":        summary.Duration,
	}).Info("ingestion run finished")

	return summary, err
}

// runSequential processes records one at a time on the calling goroutine.
func (c *Coordinator) runSequential(ctx context.Context, reader *export.Reader, summary *models.RunSummary) error {
	for {
		raw, err := c.nextRecord(ctx, reader, summary)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}

		if raw == nil {
			continue
		}

		if err := c.process(ctx, raw, summary); err != nil {
			return err
		}
	}
}

// runParallel fans records out to a fixed worker pool. A conversation is
// routed to a worker by hashing its external ID, so two occurrences of the
// same ID in one container are always applied in container order by the
// same worker, never concurrently.
func (c *Coordinator) runParallel(ctx context.Context, reader *export.Reader, summary *models.RunSummary) error {
	g, ctx := errgroup.WithContext(ctx)

	lanes := make([]chan *models.RawConversation, c.workers)
	workerSummaries := make([]models.RunSummary, c.workers)

	for i := range lanes {
		lanes[i] = make(chan *models.RawConversation, 8)

		i := i
		g.Go(func() error {
			for raw := range lanes[i] {
				metrics.IngestWorkersActive.Inc()
				err := c.process(ctx, raw, &workerSummaries[i])
				metrics.IngestWorkersActive.Dec()

				if err != nil {
					return err
				}
			}

			return nil
		})
	}

	// The feeder reads the container on the calling goroutine so record
	// rejections from the reader land in the shared summary without locks.
	feedErr := func() error {
		defer func() {
			for _, lane := range lanes {
				close(lane)
			}
		}()

		for {
			raw, err := c.nextRecord(ctx, reader, summary)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}

				return err
			}

			if raw == nil {
				continue
			}

			select {
			case lanes[laneFor(raw.ExternalID, c.workers)] <- raw:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}()

	workerErr := g.Wait()

	for i := range workerSummaries {
		summary.Merge(&workerSummaries[i])
	}

	// A fatal worker error cancels the group context, which makes the feeder
	// bail out with ctx.Err(). The worker error is the actual abort reason,
	// so it takes precedence over the feeder's cancellation.
	if workerErr != nil {
		return workerErr
	}

	return feedErr
}

// laneFor routes an external ID to a worker lane.
func laneFor(externalID string, workers int) int {
	h := fnv.New32a()
	h.Write([]byte(externalID)) //nolint:errcheck // fnv never fails.

	return int(h.Sum32() % uint32(workers)) //nolint:gosec // workers is small.
}

// nextRecord pulls the next readable record. Skippable record errors are
// tallied as rejections and yield (nil, nil); a nil record with nil error
// means "skip and keep reading". Context cancellation and container-level
// failures surface as errors.
func (c *Coordinator) nextRecord(ctx context.Context, reader *export.Reader, summary *models.RunSummary) (*models.RawConversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := reader.Next()
	if err != nil {
		var recErr *export.RecordError
		if errors.As(err, &recErr) {
			c.reject(summary, models.Rejection{
				SourceFile: recErr.SourceFile,
				Reason:     recErr.Error(),
			})

			return nil, nil
		}

		return nil, err
	}

	return raw, nil
}

// process takes one raw record to its disposition. Only storage
// unavailability is returned as an error; every other failure is local to
// the record and tallied as a rejection.
func (c *Coordinator) process(ctx context.Context, raw *models.RawConversation, summary *models.RunSummary) error {
	disposition, recovered, err := c.ingestOne(ctx, raw)
	if err != nil {
		if errors.Is(err, models.ErrStorageUnavailable) {
			return err
		}

		c.reject(summary, models.Rejection{
			ExternalID: raw.ExternalID,
			SourceFile: raw.SourceFile,
			Reason:     err.Error(),
		})

		return nil
	}

	if recovered {
		summary.PathRecoveries++
		metrics.PathRecoveries.Inc()
	}

	switch disposition {
	case models.DispositionNew:
		summary.New++
	case models.DispositionUpdated:
		summary.Updated++
	case models.DispositionUnchanged:
		summary.Unchanged++
	case models.DispositionRejected:
		// Unreachable: rejections surface as errors above.
	}

	metrics.ConversationsIngested.WithLabelValues(disposition.String()).Inc()

	c.log.WithFields(logrus.Fields{
		"external_id": raw.ExternalID,
		"disposition": disposition.String(),
	}).Debug("conversation ingested")

	return nil
}

// ingestOne normalizes one conversation and reconciles it against storage.
func (c *Coordinator) ingestOne(ctx context.Context, raw *models.RawConversation) (models.Disposition, bool, error) {
	conv, err := c.normalizer.Normalize(raw)
	if err != nil {
		return models.DispositionRejected, false, err
	}

	conv.ContentHash = hash.Conversation(conv)

	chat := models.NewStoredChat(conv)
	msgs := models.NewStoredMessages(conv)

	existing, err := c.store.FindByExternalID(ctx, conv.ExternalID)

	switch {
	case err == nil:
		if existing.Hash == conv.ContentHash {
			return models.DispositionUnchanged, conv.PathRecovered, nil
		}

		if err := c.store.ReplaceChat(ctx, existing.ID, chat, msgs); err != nil {
			return models.DispositionRejected, false, err
		}

		return models.DispositionUpdated, conv.PathRecovered, nil

	case errors.Is(err, models.ErrChatNotFound):
		_, err := c.store.InsertChat(ctx, chat, msgs)
		if err == nil {
			return models.DispositionNew, conv.PathRecovered, nil
		}

		if !errors.Is(err, models.ErrDuplicateKey) {
			return models.DispositionRejected, false, err
		}

		// Lost an insert race: some other writer created the chat between
		// the lookup and the insert. Retry once as an update.
		return c.retryAsUpdate(ctx, conv, chat, msgs)

	default:
		return models.DispositionRejected, false, err
	}
}

// retryAsUpdate re-resolves the chat after a duplicate-key insert failure
// and applies the record as an update. Retried exactly once; a second
// conflict means something is systematically wrong.
func (c *Coordinator) retryAsUpdate(ctx context.Context, conv *models.NormalizedConversation, chat models.StoredChat, msgs []models.StoredMessage) (models.Disposition, bool, error) {
	existing, err := c.store.FindByExternalID(ctx, conv.ExternalID)
	if err != nil {
		return models.DispositionRejected, false, fmt.Errorf("resolving insert conflict for %s: %w", conv.ExternalID, err)
	}

	if existing.Hash == conv.ContentHash {
		return models.DispositionUnchanged, conv.PathRecovered, nil
	}

	if err := c.store.ReplaceChat(ctx, existing.ID, chat, msgs); err != nil {
		return models.DispositionRejected, false, fmt.Errorf("resolving insert conflict for %s: %w", conv.ExternalID, err)
	}

	return models.DispositionUpdated, conv.PathRecovered, nil
}

// reject tallies one rejection.
func (c *Coordinator) reject(summary *models.RunSummary, r models.Rejection) {
	summary.Rejected++
	summary.Rejections = append(summary.Rejections, r)
	metrics.ConversationsIngested.WithLabelValues(models.DispositionRejected.String()).Inc()

	c.log.WithFields(logrus.Fields{
		"external_id": r.ExternalID,
		"source_file": r.SourceFile,
		"reason":      r.Reason,
	}).Warn("conversation rejected")
}
