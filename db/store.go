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

// dateFormat is the plain date form used for date columns and the logical
// snapshot key.
const dateFormat = "2006-01-02"

// datetimeFormat is used for timestamp columns such as budgets.last_modified_on.
const datetimeFormat = time.RFC3339

// BudgetUpsert inserts or updates a budget record and fans out its month
// data, if present, to per (budget, month, category) rows. Since month
// budget rows have a composite logical key they use an explicit existence
// check then update-or-insert rather than a conflict clause. All writes
// occur in a single transaction.
func (db *DB) BudgetUpsert(ctx context.Context, budget ynab.Budget) error {

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("budget upsert tx begin error: %w", err)
	}
	defer tx.Rollback()

	args := map[string]any{
		"ID":             budget.ID,
		"Name":           budget.Name,
		"LastModifiedOn": budget.LastModifiedOn.UTC().Format(datetimeFormat),
		"FirstMonth":     budget.FirstMonth,
		"LastMonth":      budget.LastMonth,
		"CurrencyFormat": budget.CurrencyFormat.String(),
	}
	if err := db.execTx(ctx, tx, db.budgetUpsertStmt, args); err != nil {
		return fmt.Errorf("budget %s upsert error: %w", budget.ID, err)
	}

	for _, month := range budget.Months {
		for _, mc := range month.Categories {
			if err := db.monthBudgetUpsertTx(ctx, tx, budget.ID, month.Month, mc); err != nil {
				return err
			}
		}
	}

	db.log.Debug("budget upsert done",
		"budget", budget.ID, "months", len(budget.Months))
	return tx.Commit()
}

// monthBudgetUpsertTx finds a month budget row by its (budget, month,
// category) key and overwrites its amounts, inserting if absent.
func (db *DB) monthBudgetUpsertTx(ctx context.Context, tx *sqlx.Tx, budgetID, month string, mc ynab.MonthCategory) error {

	keyArgs := map[string]any{
		"BudgetID":   budgetID,
		"Month":      month,
		"CategoryID": mc.ID,
	}
	writeArgs := map[string]any{
		"BudgetID":   budgetID,
		"Month":      month,
		"CategoryID": mc.ID,
		"Budgeted":   mc.Budgeted.Decimal(),
		"Activity":   mc.Activity.Decimal(),
		"Balance":    mc.Balance.Decimal(),
	}

	var id int64
	err := db.getTx(ctx, tx, db.monthBudgetGetStmt, &id, keyArgs)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = db.execTx(ctx, tx, db.monthBudgetInsertStmt, writeArgs)
	case err == nil:
		err = db.execTx(ctx, tx, db.monthBudgetUpdateStmt, writeArgs)
	}
	if err != nil {
		return fmt.Errorf("month budget %s/%s/%s error: %w", budgetID, month, mc.ID, err)
	}
	return nil
}

// AccountsUpsert inserts or updates the provided accounts, replacing every
// mapped field, and records a balance snapshot for each account at today's
// date within the same transaction. An empty batch is a no-op.
func (db *DB) AccountsUpsert(ctx context.Context, accounts []ynab.Account) error {

	if len(accounts) == 0 {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("accounts upsert tx begin error: %w", err)
	}
	defer tx.Rollback()

	today := time.Now()
	for _, acc := range accounts {
		args := map[string]any{
			"ID":                  acc.ID,
			"Name":                acc.Name,
			"Type":                acc.Type,
			"OnBudget":            acc.OnBudget,
			"Closed":              acc.Closed,
			"Note":                acc.Note,
			"Balance":             acc.Balance.Decimal(),
			"ClearedBalance":      acc.ClearedBalance.Decimal(),
			"UnclearedBalance":    acc.UnclearedBalance.Decimal(),
			"TransferPayeeID":     acc.TransferPayeeID,
			"DirectImportLinked":  acc.DirectImportLinked,
			"DirectImportInError": acc.DirectImportInError,
			"Deleted":             acc.Deleted,
		}
		if err := db.execTx(ctx, tx, db.accountUpsertStmt, args); err != nil {
			return fmt.Errorf("account %s upsert error: %w", acc.ID, err)
		}
		if err := db.snapshotTx(ctx, tx, acc, today); err != nil {
			return err
		}
	}

	db.log.Debug("accounts upsert done", "count", len(accounts))
	return tx.Commit()
}

// PayeesUpsert inserts or updates the provided payees. An empty batch is a
// no-op.
func (db *DB) PayeesUpsert(ctx context.Context, payees []ynab.Payee) error {

	if len(payees) == 0 {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("payees upsert tx begin error: %w", err)
	}
	defer tx.Rollback()

	for _, payee := range payees {
		args := map[string]any{
			"ID":                payee.ID,
			"Name":              payee.Name,
			"TransferAccountID": payee.TransferAccountID,
			"Deleted":           payee.Deleted,
		}
		if err := db.execTx(ctx, tx, db.payeeUpsertStmt, args); err != nil {
			return fmt.Errorf("payee %s upsert error: %w", payee.ID, err)
		}
	}

	db.log.Debug("payees upsert done", "count", len(payees))
	return tx.Commit()
}

// CategoriesUpsert flattens the provided category groups and inserts or
// updates each category, denormalizing the group id and name onto the
// category row. An empty batch is a no-op.
func (db *DB) CategoriesUpsert(ctx context.Context, groups []ynab.CategoryGroup) error {

	if len(groups) == 0 {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("categories upsert tx begin error: %w", err)
	}
	defer tx.Rollback()

	var count int
	for _, group := range groups {
		for _, category := range group.Categories {
			args := map[string]any{
				"ID":        category.ID,
				"Name":      category.Name,
				"GroupID":   group.ID,
				"GroupName": group.Name,
				"Hidden":    category.Hidden,
				"Deleted":   category.Deleted,
			}
			if err := db.execTx(ctx, tx, db.categoryUpsertStmt, args); err != nil {
				return fmt.Errorf("category %s upsert error: %w", category.ID, err)
			}
			count++
		}
	}

	db.log.Debug("categories upsert done", "groups", len(groups), "categories", count)
	return tx.Commit()
}

// TransactionsUpsert inserts or updates the provided transactions and fans
// out each transaction's sub-transaction splits, associating them with the
// parent transaction id. Sub-transactions use an explicit existence check
// then update-or-insert. An empty batch is a no-op.
func (db *DB) TransactionsUpsert(ctx context.Context, transactions []ynab.Transaction) error {

	if len(transactions) == 0 {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transactions upsert tx begin error: %w", err)
	}
	defer tx.Rollback()

	var subCount int
	for _, txn := range transactions {
		args := map[string]any{
			"ID":         txn.ID,
			"Date":       txn.Date.Format(dateFormat),
			"Amount":     txn.Amount.Decimal(),
			"Memo":       txn.Memo,
			"Cleared":    txn.Cleared,
			"Approved":   txn.Approved,
			"AccountID":  txn.AccountID,
			"PayeeID":    txn.PayeeID,
			"CategoryID": txn.CategoryID,
		}
		if err := db.execTx(ctx, tx, db.transactionUpsertStmt, args); err != nil {
			return fmt.Errorf("transaction %s upsert error: %w", txn.ID, err)
		}

		for _, st := range txn.Subtransactions {
			if err := db.subTransactionUpsertTx(ctx, tx, txn.ID, st); err != nil {
				return err
			}
			subCount++
		}
	}

	db.log.Debug("transactions upsert done",
		"transactions", len(transactions), "subtransactions", subCount)
	return tx.Commit()
}

// subTransactionUpsertTx finds a sub-transaction by id and overwrites every
// field except the id, inserting if absent. The parent transaction id is
// taken from the owning transaction rather than the split record itself.
func (db *DB) subTransactionUpsertTx(ctx context.Context, tx *sqlx.Tx, transactionID string, st ynab.SubTransaction) error {

	writeArgs := map[string]any{
		"ID":                st.ID,
		"TransactionID":     transactionID,
		"Amount":            st.Amount.Decimal(),
		"Memo":              st.Memo,
		"PayeeID":           st.PayeeID,
		"CategoryID":        st.CategoryID,
		"TransferAccountID": st.TransferAccountID,
		"Deleted":           st.Deleted,
	}

	var id string
	err := db.getTx(ctx, tx, db.subTransactionGetStmt, &id, map[string]any{"ID": st.ID})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = db.execTx(ctx, tx, db.subTransactionInsertStmt, writeArgs)
	case err == nil:
		err = db.execTx(ctx, tx, db.subTransactionUpdateStmt, writeArgs)
	}
	if err != nil {
		return fmt.Errorf("subtransaction %s error: %w", st.ID, err)
	}
	return nil
}

// SyncRunRecord appends one stage outcome row for a sync run. Outcome
// recording is outside the per-batch transactions so that failed stages are
// recorded too.
func (db *DB) SyncRunRecord(ctx context.Context, runID, budgetID, stage, status, message string) error {

	var msg any
	if message != "" {
		msg = message
	}
	args := map[string]any{
		"RunID":    runID,
		"BudgetID": budgetID,
		"Stage":    stage,
		"Status":   status,
		"Message":  msg,
	}
	if err := db.syncRunInsertStmt.verifyArgs(args); err != nil {
		return err
	}
	if _, err := db.syncRunInsertStmt.ExecContext(ctx, args); err != nil {
		return fmt.Errorf("sync run %s stage %s record error: %w", runID, stage, err)
	}
	return nil
}
