// tx.go scopes multi-row mutations to a single transaction. Partial
// application must never be observable: the callback either commits as a whole
// or the transaction is rolled back and the callback's error returned.
package orgs

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func inTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
