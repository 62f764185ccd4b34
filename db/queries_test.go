package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"budgetdash/apiclients/ynab"

	"github.com/google/go-cmp/cmp"
)

// seedLedger loads a small ledger: two accounts, two categories, one payee
// and four transactions across three days in January 2024.
func seedLedger(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()

	accounts := []ynab.Account{
		testAccount("acc-1", "Checking", 120000),
		testAccount("acc-2", "Savings", 500000),
	}
	if err := db.AccountsUpsert(ctx, accounts); err != nil {
		t.Fatalf("accounts seed error: %v", err)
	}

	groups := []ynab.CategoryGroup{{
		ID:   "grp-1",
		Name: "Everyday Expenses",
		Categories: []ynab.Category{
			{ID: "cat-1", Name: "Groceries"},
			{ID: "cat-2", Name: "Transport"},
		},
	}}
	if err := db.CategoriesUpsert(ctx, groups); err != nil {
		t.Fatalf("categories seed error: %v", err)
	}

	if err := db.PayeesUpsert(ctx, []ynab.Payee{{ID: "pay-1", Name: "Greengrocer"}}); err != nil {
		t.Fatalf("payees seed error: %v", err)
	}

	day := func(d int) ynab.Date {
		return ynab.Date{Time: time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)}
	}
	transactions := []ynab.Transaction{
		{ID: "txn-1", Date: day(10), Amount: -10000, Cleared: "cleared", Approved: true,
			AccountID: "acc-1", PayeeID: ptrStr("pay-1"), CategoryID: ptrStr("cat-1"),
			Memo: ptrStr("weekly shop")},
		{ID: "txn-2", Date: day(11), Amount: -5000, Cleared: "cleared", Approved: true,
			AccountID: "acc-1", CategoryID: ptrStr("cat-2")},
		{ID: "txn-3", Date: day(11), Amount: -2000, Cleared: "uncleared", Approved: false,
			AccountID: "acc-2", CategoryID: ptrStr("cat-1")},
		{ID: "txn-4", Date: day(12), Amount: 300000, Cleared: "cleared", Approved: true,
			AccountID: "acc-1"},
	}
	if err := db.TransactionsUpsert(ctx, transactions); err != nil {
		t.Fatalf("transactions seed error: %v", err)
	}
}

func TestTransactionsGet(t *testing.T) {
	db := setupTestDB(t)
	seedLedger(t, db)
	ctx := context.Background()

	t.Run("all", func(t *testing.T) {
		rows, err := db.TransactionsGet(ctx, TransactionsFilter{})
		if err != nil {
			t.Fatalf("transactions get error: %v", err)
		}
		if got, want := len(rows), 4; got != want {
			t.Fatalf("got %d rows, want %d", got, want)
		}
		if got, want := rows[0].RowCount, 4; got != want {
			t.Errorf("got row count %d, want %d", got, want)
		}
		// Most recent first.
		if got, want := rows[0].ID, "txn-4"; got != want {
			t.Errorf("got first row %q, want %q", got, want)
		}
		if got, want := rows[0].AccountName, "Checking"; got != want {
			t.Errorf("got account name %q, want %q", got, want)
		}
	})

	t.Run("paged", func(t *testing.T) {
		rows, err := db.TransactionsGet(ctx, TransactionsFilter{Limit: 2, Offset: 2})
		if err != nil {
			t.Fatalf("transactions get error: %v", err)
		}
		if got, want := len(rows), 2; got != want {
			t.Fatalf("got %d rows, want %d", got, want)
		}
		if got, want := rows[0].RowCount, 4; got != want {
			t.Errorf("got row count %d, want %d", got, want)
		}
	})

	t.Run("by account", func(t *testing.T) {
		rows, err := db.TransactionsGet(ctx, TransactionsFilter{AccountID: "acc-2"})
		if err != nil {
			t.Fatalf("transactions get error: %v", err)
		}
		if got, want := len(rows), 1; got != want {
			t.Fatalf("got %d rows, want %d", got, want)
		}
		if got, want := rows[0].ID, "txn-3"; got != want {
			t.Errorf("got row %q, want %q", got, want)
		}
	})

	t.Run("by date range", func(t *testing.T) {
		rows, err := db.TransactionsGet(ctx, TransactionsFilter{
			DateFrom: time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
			DateTo:   time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("transactions get error: %v", err)
		}
		if got, want := len(rows), 2; got != want {
			t.Fatalf("got %d rows, want %d", got, want)
		}
	})

	t.Run("search", func(t *testing.T) {
		rows, err := db.TransactionsGet(ctx, TransactionsFilter{Search: "weekly"})
		if err != nil {
			t.Fatalf("transactions get error: %v", err)
		}
		if got, want := len(rows), 1; got != want {
			t.Fatalf("got %d rows, want %d", got, want)
		}
		if rows[0].PayeeName == nil || *rows[0].PayeeName != "Greengrocer" {
			t.Errorf("got payee %v, want Greengrocer", rows[0].PayeeName)
		}
	})

	t.Run("no match", func(t *testing.T) {
		_, err := db.TransactionsGet(ctx, TransactionsFilter{Search: "zzz"})
		if !errors.Is(err, sql.ErrNoRows) {
			t.Fatalf("expected sql.ErrNoRows, got %v", err)
		}
	})
}

func TestSpendByDate(t *testing.T) {
	db := setupTestDB(t)
	seedLedger(t, db)

	rows, err := db.SpendByDate(context.Background(), "", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("spend by date error: %v", err)
	}

	// txn-4 is an inflow and does not appear.
	want := []DateTotal{
		{Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Total: 10},
		{Date: time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), Total: 7},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("spend by date mismatch (-want +got):\n%s", diff)
	}

	// Restricted to one account.
	rows, err = db.SpendByDate(context.Background(), "acc-2", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("spend by date error: %v", err)
	}
	if got, want := len(rows), 1; got != want {
		t.Fatalf("got %d rows, want %d", got, want)
	}
	if got, want := rows[0].Total, 2.0; got != want {
		t.Errorf("got total %v, want %v", got, want)
	}
}

func TestSpendByCategory(t *testing.T) {
	db := setupTestDB(t)
	seedLedger(t, db)

	rows, err := db.SpendByCategory(context.Background(), time.Time{}, time.Time{}, 10)
	if err != nil {
		t.Fatalf("spend by category error: %v", err)
	}

	want := []CategoryTotal{
		{Category: "Groceries", Total: 12},
		{Category: "Transport", Total: 5},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("spend by category mismatch (-want +got):\n%s", diff)
	}

	rows, err = db.SpendByCategory(context.Background(), time.Time{}, time.Time{}, 1)
	if err != nil {
		t.Fatalf("spend by category error: %v", err)
	}
	if got, want := len(rows), 1; got != want {
		t.Fatalf("got %d rows, want %d", got, want)
	}
}

func TestAccountsGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.AccountsGet(ctx, false)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows on empty db, got %v", err)
	}

	open := testAccount("acc-1", "Checking", 120000)
	closed := testAccount("acc-2", "Old Savings", 0)
	closed.Closed = true
	if err := db.AccountsUpsert(ctx, []ynab.Account{open, closed}); err != nil {
		t.Fatalf("accounts seed error: %v", err)
	}

	rows, err := db.AccountsGet(ctx, false)
	if err != nil {
		t.Fatalf("accounts get error: %v", err)
	}
	if got, want := len(rows), 1; got != want {
		t.Fatalf("got %d accounts, want %d", got, want)
	}
	if got, want := rows[0].Name, "Checking"; got != want {
		t.Errorf("got account %q, want %q", got, want)
	}

	rows, err = db.AccountsGet(ctx, true)
	if err != nil {
		t.Fatalf("accounts get error: %v", err)
	}
	if got, want := len(rows), 2; got != want {
		t.Fatalf("got %d accounts, want %d", got, want)
	}
}

func TestBalanceHistoryGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	acc := testAccount("acc-1", "Checking", 120000)
	if err := db.AccountsUpsert(ctx, []ynab.Account{acc}); err != nil {
		t.Fatalf("accounts seed error: %v", err)
	}

	day1 := time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC)
	if err := db.SnapshotAccountBalance(ctx, nil, acc, day1); err != nil {
		t.Fatalf("snapshot error: %v", err)
	}
	acc.Balance = 110000
	if err := db.SnapshotAccountBalance(ctx, nil, acc, day1.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("snapshot error: %v", err)
	}

	rows, err := db.BalanceHistoryGet(ctx, "acc-1",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("balance history error: %v", err)
	}
	if got, want := len(rows), 2; got != want {
		t.Fatalf("got %d rows, want %d", got, want)
	}
	if got, want := rows[0].AccountName, "Checking"; got != want {
		t.Errorf("got account name %q, want %q", got, want)
	}
	if !rows[0].Date.Before(rows[1].Date) {
		t.Errorf("rows not in date order: %v, %v", rows[0].Date, rows[1].Date)
	}
	if got, want := rows[1].Balance.String(), "110"; got != want {
		t.Errorf("got balance %q, want %q", got, want)
	}
}

func TestMonthBudgetGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedLedger(t, db)
	budget := ynab.Budget{
		ID:   "bud-1",
		Name: "Family Budget",
		Months: []ynab.Month{{
			Month: "2024-01-01",
			Categories: []ynab.MonthCategory{
				{ID: "cat-1", Name: "Groceries", Budgeted: 250000, Activity: -198500, Balance: 51500},
				{ID: "cat-2", Name: "Transport", Budgeted: 100000, Activity: -20000, Balance: 80000},
			},
		}},
	}
	if err := db.BudgetUpsert(ctx, budget); err != nil {
		t.Fatalf("budget seed error: %v", err)
	}

	rows, err := db.MonthBudgetGet(ctx, "bud-1", "2024-01-01")
	if err != nil {
		t.Fatalf("month budget get error: %v", err)
	}
	if got, want := len(rows), 2; got != want {
		t.Fatalf("got %d rows, want %d", got, want)
	}
	if rows[0].CategoryName == nil || *rows[0].CategoryName != "Groceries" {
		t.Errorf("got category %v, want Groceries", rows[0].CategoryName)
	}
	if got, want := rows[0].Budgeted.String(), "250"; got != want {
		t.Errorf("got budgeted %q, want %q", got, want)
	}

	_, err = db.MonthBudgetGet(ctx, "bud-1", "1999-01-01")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}
