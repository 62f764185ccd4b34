package web

/* view types for the web server */

import (
	"fmt"
	"math"

	"budgetdash/db"
)

// dateDisplayFormat is the date form shown on listing pages.
const dateDisplayFormat = "02/01/2006"

// viewTransaction is a view version of the db.TransactionRow type, with
// non-pointer fields and display-formatted amounts.
type viewTransaction struct {
	ID           string
	DateStr      string
	Amount       string
	Outflow      bool
	Memo         string
	Cleared      string
	Approved     bool
	AccountName  string
	PayeeName    string
	CategoryName string
	RowCount     int
}

// newViewTransactions maps db.TransactionRow records to a slice of
// viewTransaction.
func newViewTransactions(rows []db.TransactionRow) []viewTransaction {
	tv := make([]viewTransaction, len(rows))
	for i, r := range rows {
		tv[i].ID = r.ID
		tv[i].DateStr = r.Date.Format(dateDisplayFormat)
		tv[i].Amount = r.Amount.StringFixed(2)
		tv[i].Outflow = r.Amount.IsNegative()
		tv[i].Cleared = r.Cleared
		tv[i].Approved = r.Approved
		tv[i].AccountName = r.AccountName
		tv[i].RowCount = r.RowCount
		// de-pointer
		if r.Memo != nil {
			tv[i].Memo = *r.Memo
		}
		if r.PayeeName != nil {
			tv[i].PayeeName = *r.PayeeName
		}
		if r.CategoryName != nil {
			tv[i].CategoryName = *r.CategoryName
		}
	}
	return tv
}

// viewAccount is a view version of db.AccountRow with display-formatted
// balances.
type viewAccount struct {
	ID               string
	Name             string
	Type             string
	OnBudget         bool
	Closed           bool
	Balance          string
	ClearedBalance   string
	UnclearedBalance string
}

// newViewAccounts converts a slice of db.AccountRow to a slice of
// viewAccount.
func newViewAccounts(rows []db.AccountRow) []viewAccount {
	av := make([]viewAccount, len(rows))
	for i, r := range rows {
		av[i].ID = r.ID
		av[i].Name = r.Name
		av[i].Type = r.Type
		av[i].OnBudget = r.OnBudget
		av[i].Closed = r.Closed
		av[i].Balance = r.Balance.StringFixed(2)
		av[i].ClearedBalance = r.ClearedBalance.StringFixed(2)
		av[i].UnclearedBalance = r.UnclearedBalance.StringFixed(2)
	}
	return av
}

// viewBarPoint is one bar of a simple css bar chart, with the bar length
// scaled against the largest value in the series.
type viewBarPoint struct {
	Label   string
	Total   string
	Percent int
}

// newViewCategoryBars converts category totals to chart bars.
func newViewCategoryBars(rows []db.CategoryTotal) []viewBarPoint {
	var max float64
	for _, r := range rows {
		max = math.Max(max, r.Total)
	}
	bars := make([]viewBarPoint, len(rows))
	for i, r := range rows {
		bars[i].Label = r.Category
		bars[i].Total = fmt.Sprintf("%.2f", r.Total)
		bars[i].Percent = barPercent(r.Total, max)
	}
	return bars
}

// newViewDateBars converts daily totals to chart bars.
func newViewDateBars(rows []db.DateTotal) []viewBarPoint {
	var max float64
	for _, r := range rows {
		max = math.Max(max, r.Total)
	}
	bars := make([]viewBarPoint, len(rows))
	for i, r := range rows {
		bars[i].Label = r.Date.Format(dateDisplayFormat)
		bars[i].Total = fmt.Sprintf("%.2f", r.Total)
		bars[i].Percent = barPercent(r.Total, max)
	}
	return bars
}

func barPercent(value, max float64) int {
	if max <= 0 {
		return 0
	}
	p := int(math.Round(value / max * 100))
	if p < 0 {
		p = 0
	}
	return p
}

// viewBalancePoint is one snapshot on the accounts page balance table.
type viewBalancePoint struct {
	DateStr     string
	AccountName string
	Balance     string
}

// newViewBalancePoints converts balance history rows for display.
func newViewBalancePoints(rows []db.BalanceHistoryRow) []viewBalancePoint {
	bv := make([]viewBalancePoint, len(rows))
	for i, r := range rows {
		bv[i].DateStr = r.Date.Format(dateDisplayFormat)
		bv[i].AccountName = r.AccountName
		bv[i].Balance = r.Balance.StringFixed(2)
	}
	return bv
}
