package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/maintenance-slot-api/pkg/database"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// withTx runs fn inside one transaction. Without a provider fn receives a nil executor and the
// repositories fall back to their own connection.
func withTx(ctx context.Context, provider txProvider, fn func(exec sqlx.ExtContext) error) (err error) {
	if provider == nil {
		return fn(nil)
	}

	tx, err := provider.BeginTxx(ctx, nil)
	if err != nil {
		return storeError(fmt.Errorf("begin tx: %w", err), "")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return storeError(fmt.Errorf("commit tx: %w", err), "")
	}
	return nil
}

// storeError maps a repository failure onto the typed error surface. Typed errors pass through.
func storeError(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if notFoundMsg == "" {
			notFoundMsg = "resource not found"
		}
		return appErrors.Clone(appErrors.ErrNotFound, notFoundMsg)
	case database.IsUnavailable(err):
		return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "schedule store unavailable")
	case database.IsRetryable(err):
		return appErrors.Wrap(err, appErrors.ErrConcurrentUpdate.Code, appErrors.ErrConcurrentUpdate.Status, "concurrent update, retry the request")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "schedule store failure")
	}
}
