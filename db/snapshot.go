package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"budgetdash/apiclients/ynab"

	"github.com/jmoiron/sqlx"
)

// SnapshotAccountBalance records the balances of an account at the given
// date, one snapshot row per (account, date) pair. A snapshot already
// recorded for that pair is overwritten in place, so re-running on the same
// day refreshes rather than duplicates.
//
// The caller may supply the transaction the snapshot should participate in,
// as the account sync does; a nil tx opens and commits one locally.
func (db *DB) SnapshotAccountBalance(ctx context.Context, tx *sqlx.Tx, acc ynab.Account, date time.Time) error {

	if tx != nil {
		return db.snapshotTx(ctx, tx, acc, date)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("balance snapshot tx begin error: %w", err)
	}
	defer tx.Rollback()

	if err := db.snapshotTx(ctx, tx, acc, date); err != nil {
		return err
	}
	return tx.Commit()
}

// snapshotTx performs the (account, date) existence check then
// update-or-insert within the provided transaction.
func (db *DB) snapshotTx(ctx context.Context, tx *sqlx.Tx, acc ynab.Account, date time.Time) error {

	day := date.Format(dateFormat)
	keyArgs := map[string]any{
		"AccountID": acc.ID,
		"Date":      day,
	}
	writeArgs := map[string]any{
		"AccountID":        acc.ID,
		"Date":             day,
		"Balance":          acc.Balance.Decimal(),
		"ClearedBalance":   acc.ClearedBalance.Decimal(),
		"UnclearedBalance": acc.UnclearedBalance.Decimal(),
	}

	var id int64
	err := db.getTx(ctx, tx, db.snapshotGetStmt, &id, keyArgs)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = db.execTx(ctx, tx, db.snapshotInsertStmt, writeArgs)
	case err == nil:
		err = db.execTx(ctx, tx, db.snapshotUpdateStmt, writeArgs)
	}
	if err != nil {
		return fmt.Errorf("balance snapshot %s at %s error: %w", acc.ID, day, err)
	}
	return nil
}
