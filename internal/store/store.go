// Package store provides data access for the conversation archive.
//
// ChatStore is the storage gateway consumed by the ingestion coordinator
// and the read-only surfaces (site generator, HTTP API). Writes for one
// conversation are atomic: either the chat row, its hash, and its complete
// message set are all visible, or none are.
package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/chatvault/chatvault/internal/dbpool"
	"github.com/chatvault/chatvault/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

// Base contains shared dependencies for stores.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// beginTx starts a read-write transaction. Failure to even begin one means
// the store is unreachable, which is fatal to an ingestion run.
func (b *Base) beginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := b.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %v", models.ErrStorageUnavailable, err)
	}

	return tx, nil
}

// mapWriteError translates low-level pgx errors into the store's sentinel
// errors. Unique violations become ErrDuplicateKey so the coordinator can
// retry the race as an update-path lookup; errors that indicate the store
// itself is unreachable become ErrStorageUnavailable so an ingestion run
// aborts instead of rejecting every remaining record.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return models.ErrDuplicateKey
	}

	if isUnavailable(err) {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}

	return err
}

// isUnavailable reports whether err is a connection-level failure rather
// than a problem with one statement. Covers timeouts, pgx errors raised
// before anything reached the server, and network errors from a connection
// dropped mid-run.
func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr)
}
