package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Query defaults for open-ended date ranges.
const (
	openDateFrom = "0001-01-01"
	openDateTo   = "9999-12-31"
)

func formatRangeDate(t time.Time, open string) string {
	if t.IsZero() {
		return open
	}
	return t.Format(dateFormat)
}

// TransactionsFilter restricts a transactions page. Zero values widen the
// filter: an empty AccountID or Search matches everything and zero dates
// open the range.
type TransactionsFilter struct {
	AccountID string
	DateFrom  time.Time
	DateTo    time.Time
	Search    string
	Limit     int
	Offset    int
}

// TransactionRow is a transaction as listed on the dashboard, with the
// account, payee and category names joined in. RowCount reports the total
// number of matching rows across all pages.
type TransactionRow struct {
	ID           string          `db:"id"`
	Date         time.Time       `db:"date"`
	Amount       decimal.Decimal `db:"amount"`
	Memo         *string         `db:"memo"`
	Cleared      string          `db:"cleared"`
	Approved     bool            `db:"approved"`
	AccountName  string          `db:"account_name"`
	PayeeName    *string         `db:"payee_name"`
	CategoryName *string         `db:"category_name"`
	RowCount     int             `db:"row_count"`
}

// TransactionsGet returns one page of transactions for the provided filter,
// most recent first. An empty result returns sql.ErrNoRows.
func (db *DB) TransactionsGet(ctx context.Context, filter TransactionsFilter) ([]TransactionRow, error) {

	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	args := map[string]any{
		"AccountID":  filter.AccountID,
		"DateFrom":   formatRangeDate(filter.DateFrom, openDateFrom),
		"DateTo":     formatRangeDate(filter.DateTo, openDateTo),
		"Search":     filter.Search,
		"PageLimit":  filter.Limit,
		"PageOffset": filter.Offset,
	}
	if err := db.transactionsGetStmt.verifyArgs(args); err != nil {
		return nil, err
	}

	var rows []TransactionRow
	if err := db.transactionsGetStmt.SelectContext(ctx, &rows, args); err != nil {
		return nil, fmt.Errorf("transactions get error: %w", err)
	}
	if len(rows) == 0 {
		return nil, sql.ErrNoRows
	}
	return rows, nil
}

// DateTotal is a spending total for one day, for charting. Totals are
// aggregated as floats which is sufficient for display.
type DateTotal struct {
	Date  time.Time `db:"date"`
	Total float64   `db:"total"`
}

// SpendByDate returns daily outflow totals, optionally restricted to one
// account. Days with no spending are absent from the series.
func (db *DB) SpendByDate(ctx context.Context, accountID string, from, to time.Time) ([]DateTotal, error) {

	args := map[string]any{
		"AccountID": accountID,
		"DateFrom":  formatRangeDate(from, openDateFrom),
		"DateTo":    formatRangeDate(to, openDateTo),
	}
	if err := db.spendByDateStmt.verifyArgs(args); err != nil {
		return nil, err
	}

	var rows []DateTotal
	if err := db.spendByDateStmt.SelectContext(ctx, &rows, args); err != nil {
		return nil, fmt.Errorf("spend by date error: %w", err)
	}
	return rows, nil
}

// CategoryTotal is an outflow total for one category.
type CategoryTotal struct {
	Category string  `db:"category"`
	Total    float64 `db:"total"`
}

// SpendByCategory returns the topN categories by outflow over the date
// range.
func (db *DB) SpendByCategory(ctx context.Context, from, to time.Time, topN int) ([]CategoryTotal, error) {

	if topN <= 0 {
		topN = 10
	}
	args := map[string]any{
		"DateFrom": formatRangeDate(from, openDateFrom),
		"DateTo":   formatRangeDate(to, openDateTo),
		"TopN":     topN,
	}
	if err := db.spendByCategoryStmt.verifyArgs(args); err != nil {
		return nil, err
	}

	var rows []CategoryTotal
	if err := db.spendByCategoryStmt.SelectContext(ctx, &rows, args); err != nil {
		return nil, fmt.Errorf("spend by category error: %w", err)
	}
	return rows, nil
}

// AccountRow is an account as listed on the dashboard.
type AccountRow struct {
	ID               string          `db:"id"`
	Name             string          `db:"name"`
	Type             string          `db:"type"`
	OnBudget         bool            `db:"on_budget"`
	Closed           bool            `db:"closed"`
	Balance          decimal.Decimal `db:"balance"`
	ClearedBalance   decimal.Decimal `db:"cleared_balance"`
	UnclearedBalance decimal.Decimal `db:"uncleared_balance"`
}

// AccountsGet returns the current accounts, budget accounts first. An empty
// result returns sql.ErrNoRows.
func (db *DB) AccountsGet(ctx context.Context, includeClosed bool) ([]AccountRow, error) {

	args := map[string]any{
		"IncludeClosed": includeClosed,
	}
	if err := db.accountsGetStmt.verifyArgs(args); err != nil {
		return nil, err
	}

	var rows []AccountRow
	if err := db.accountsGetStmt.SelectContext(ctx, &rows, args); err != nil {
		return nil, fmt.Errorf("accounts get error: %w", err)
	}
	if len(rows) == 0 {
		return nil, sql.ErrNoRows
	}
	return rows, nil
}

// BalanceHistoryRow is one balance snapshot for charting balances over
// time.
type BalanceHistoryRow struct {
	AccountID        string          `db:"account_id"`
	AccountName      string          `db:"account_name"`
	Date             time.Time       `db:"date"`
	Balance          decimal.Decimal `db:"balance"`
	ClearedBalance   decimal.Decimal `db:"cleared_balance"`
	UnclearedBalance decimal.Decimal `db:"uncleared_balance"`
}

// BalanceHistoryGet returns balance snapshots over the date range,
// optionally restricted to one account, in date order.
func (db *DB) BalanceHistoryGet(ctx context.Context, accountID string, from, to time.Time) ([]BalanceHistoryRow, error) {

	args := map[string]any{
		"AccountID": accountID,
		"DateFrom":  formatRangeDate(from, openDateFrom),
		"DateTo":    formatRangeDate(to, openDateTo),
	}
	if err := db.balanceHistoryGetStmt.verifyArgs(args); err != nil {
		return nil, err
	}

	var rows []BalanceHistoryRow
	if err := db.balanceHistoryGetStmt.SelectContext(ctx, &rows, args); err != nil {
		return nil, fmt.Errorf("balance history get error: %w", err)
	}
	return rows, nil
}

// MonthBudgetRow is the budgeted, activity and balance amounts for one
// category in one month.
type MonthBudgetRow struct {
	Month        string          `db:"month"`
	CategoryID   string          `db:"category_id"`
	CategoryName *string         `db:"category_name"`
	GroupName    *string         `db:"group_name"`
	Budgeted     decimal.Decimal `db:"budgeted"`
	Activity     decimal.Decimal `db:"activity"`
	Balance      decimal.Decimal `db:"balance"`
}

// MonthBudgetGet returns the per-category amounts for one month of a
// budget. An empty result returns sql.ErrNoRows.
func (db *DB) MonthBudgetGet(ctx context.Context, budgetID, month string) ([]MonthBudgetRow, error) {

	args := map[string]any{
		"BudgetID": budgetID,
		"Month":    month,
	}
	if err := db.monthBudgetSummaryStmt.verifyArgs(args); err != nil {
		return nil, err
	}

	var rows []MonthBudgetRow
	if err := db.monthBudgetSummaryStmt.SelectContext(ctx, &rows, args); err != nil {
		return nil, fmt.Errorf("month budget get error: %w", err)
	}
	if len(rows) == 0 {
		return nil, sql.ErrNoRows
	}
	return rows, nil
}
