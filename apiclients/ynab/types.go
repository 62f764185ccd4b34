package ynab

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Milliunits is YNAB's integer currency representation, worth 1/1000 of a
// currency unit.
type Milliunits int64

// Decimal converts milliunits to an exact decimal currency amount, so
// 12345 milliunits become 12.345.
func (m Milliunits) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -3)
}

// Date is YNAB's plain "2006-01-02" date.
type Date struct {
	time.Time
}

// UnmarshalJSON implements the json.Unmarshaler interface for a Date. A null
// or empty value is left as the zero time.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("invalid ynab date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// MarshalJSON implements the json.Marshaler interface for a Date.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format("2006-01-02"))
}

// CurrencyFormat describes a budget's currency settings.
type CurrencyFormat struct {
	ISOCode        string `json:"iso_code"`
	ExampleFormat  string `json:"example_format"`
	DecimalDigits  int    `json:"decimal_digits"`
	CurrencySymbol string `json:"currency_symbol"`
}

// String provides a short descriptive representation such as
// "GBP (123,456.78)".
func (cf *CurrencyFormat) String() string {
	if cf == nil {
		return ""
	}
	return fmt.Sprintf("%s (%s)", cf.ISOCode, cf.ExampleFormat)
}

// Budget represents a YNAB budget, optionally carrying per-month category
// budget data.
type Budget struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	LastModifiedOn time.Time       `json:"last_modified_on"`
	FirstMonth     string          `json:"first_month"`
	LastMonth      string          `json:"last_month"`
	CurrencyFormat *CurrencyFormat `json:"currency_format"`
	Months         []Month         `json:"months"`
}

// Month is one month of budget data with its category allocations.
type Month struct {
	Month      string          `json:"month"`
	Categories []MonthCategory `json:"categories"`
}

// MonthCategory is the budgeted/activity/balance triple for one category in
// one month.
type MonthCategory struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Budgeted Milliunits `json:"budgeted"`
	Activity Milliunits `json:"activity"`
	Balance  Milliunits `json:"balance"`
}

// CategoryGroup groups categories under a label.
type CategoryGroup struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Hidden     bool       `json:"hidden"`
	Deleted    bool       `json:"deleted"`
	Categories []Category `json:"categories"`
}

// Category represents a single budgeting category.
type Category struct {
	ID              string `json:"id"`
	CategoryGroupID string `json:"category_group_id"`
	Name            string `json:"name"`
	Hidden          bool   `json:"hidden"`
	Deleted         bool   `json:"deleted"`
}

// Payee represents a payee, which for transfers references the counterparty
// account.
type Payee struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	TransferAccountID *string `json:"transfer_account_id"`
	Deleted           bool    `json:"deleted"`
}

// Account represents a single YNAB account with its balances in milliunits.
type Account struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Type                string     `json:"type"`
	OnBudget            bool       `json:"on_budget"`
	Closed              bool       `json:"closed"`
	Note                *string    `json:"note"`
	Balance             Milliunits `json:"balance"`
	ClearedBalance      Milliunits `json:"cleared_balance"`
	UnclearedBalance    Milliunits `json:"uncleared_balance"`
	TransferPayeeID     *string    `json:"transfer_payee_id"`
	DirectImportLinked  bool       `json:"direct_import_linked"`
	DirectImportInError bool       `json:"direct_import_in_error"`
	Deleted             bool       `json:"deleted"`
}

// Transaction represents a single transaction, possibly split into
// sub-transactions.
type Transaction struct {
	ID              string           `json:"id"`
	Date            Date             `json:"date"`
	Amount          Milliunits       `json:"amount"`
	Memo            *string          `json:"memo"`
	Cleared         string           `json:"cleared"`
	Approved        bool             `json:"approved"`
	AccountID       string           `json:"account_id"`
	PayeeID         *string          `json:"payee_id"`
	CategoryID      *string          `json:"category_id"`
	Deleted         bool             `json:"deleted"`
	Subtransactions []SubTransaction `json:"subtransactions"`
}

// SubTransaction is a split of a parent Transaction's amount.
type SubTransaction struct {
	ID                string     `json:"id"`
	TransactionID     string     `json:"transaction_id"`
	Amount            Milliunits `json:"amount"`
	Memo              *string    `json:"memo"`
	PayeeID           *string    `json:"payee_id"`
	CategoryID        *string    `json:"category_id"`
	TransferAccountID *string    `json:"transfer_account_id"`
	Deleted           bool       `json:"deleted"`
}

// The YNAB API wraps every response in a "data" envelope. The envelope types
// below are internal to the client.

type budgetResponse struct {
	Data struct {
		Budget Budget `json:"budget"`
	} `json:"data"`
}

type budgetsResponse struct {
	Data struct {
		Budgets []Budget `json:"budgets"`
	} `json:"data"`
}

type monthsResponse struct {
	Data struct {
		Months []Month `json:"months"`
	} `json:"data"`
}

type categoriesResponse struct {
	Data struct {
		CategoryGroups []CategoryGroup `json:"category_groups"`
	} `json:"data"`
}

type payeesResponse struct {
	Data struct {
		Payees []Payee `json:"payees"`
	} `json:"data"`
}

type accountsResponse struct {
	Data struct {
		Accounts []Account `json:"accounts"`
	} `json:"data"`
}

type transactionsResponse struct {
	Data struct {
		Transactions []Transaction `json:"transactions"`
	} `json:"data"`
}
