package db

import (
	"context"
	"time"

	"gorm.io/gorm"
)

const (
	maxTxAttempts = 3
	txBaseBackoff = 20 * time.Millisecond
)

// RunInTx runs fn in a transaction, retrying serialization failures and deadlocks.
func RunInTx(ctx context.Context, conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		if attempt > 0 {
			backoff := txBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err = conn.WithContext(ctx).Transaction(fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
	}
	return err
}
