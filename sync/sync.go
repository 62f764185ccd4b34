// Package sync orchestrates a full pull of budget data from the budget
// service into the local mirror. Entities are synchronized in dependency
// order so that enforced references resolve: the budget and its month data
// first, then categories, payees and accounts, then transactions with their
// splits.
//
// A failed stage does not stop later stages; stage errors are collected and
// returned joined, and every stage outcome is recorded against a run
// identifier for inspection.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budgetdash/apiclients/ynab"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Source fetches budget data from the budget service. Implemented by
// apiclients/ynab.APIClient.
type Source interface {
	GetBudgetByID(ctx context.Context, budgetID string) (*ynab.Budget, error)
	GetCategories(ctx context.Context, budgetID string) ([]ynab.CategoryGroup, error)
	GetPayees(ctx context.Context, budgetID string) ([]ynab.Payee, error)
	GetAccounts(ctx context.Context, budgetID string) ([]ynab.Account, error)
	GetTransactions(ctx context.Context, budgetID string, opts *ynab.TransactionsOptions) ([]ynab.Transaction, error)
}

// Store persists budget data in the local mirror. Implemented by db.DB.
type Store interface {
	BudgetUpsert(ctx context.Context, budget ynab.Budget) error
	CategoriesUpsert(ctx context.Context, groups []ynab.CategoryGroup) error
	PayeesUpsert(ctx context.Context, payees []ynab.Payee) error
	AccountsUpsert(ctx context.Context, accounts []ynab.Account) error
	TransactionsUpsert(ctx context.Context, transactions []ynab.Transaction) error
	SnapshotAccountBalance(ctx context.Context, tx *sqlx.Tx, acc ynab.Account, date time.Time) error
	SyncRunRecord(ctx context.Context, runID, budgetID, stage, status, message string) error
}

// Syncer runs full synchronizations of one budget.
type Syncer struct {
	source Source
	store  Store
	log    *slog.Logger

	// sinceDate, when set ("2006-01-02"), restricts the transactions fetch
	// to transactions on or after that date.
	sinceDate string
}

// NewSyncer creates a Syncer over the provided source and store.
func NewSyncer(source Source, store Store, logger *slog.Logger, sinceDate string) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		source:    source,
		store:     store,
		log:       logger,
		sinceDate: sinceDate,
	}
}

// stage is one named step of a full synchronization.
type stage struct {
	name string
	run  func(ctx context.Context) error
}

// SyncAll pulls every entity of the budget into the local mirror in
// dependency order. Each stage commits independently; a failed stage is
// recorded and skipped over so later stages still run, with committed
// stages never rolled back. The joined stage errors, if any, are returned.
func (s *Syncer) SyncAll(ctx context.Context, budgetID string) error {

	runID := uuid.NewString()
	s.log.Info("sync started", "run", runID, "budget", budgetID)

	stages := []stage{
		{"budget", func(ctx context.Context) error { return s.syncBudget(ctx, budgetID) }},
		{"categories", func(ctx context.Context) error { return s.syncCategories(ctx, budgetID) }},
		{"payees", func(ctx context.Context) error { return s.syncPayees(ctx, budgetID) }},
		{"accounts", func(ctx context.Context) error { return s.syncAccounts(ctx, budgetID) }},
		{"transactions", func(ctx context.Context) error { return s.syncTransactions(ctx, budgetID) }},
	}

	var errs []error
	for _, st := range stages {
		status, message := "ok", ""
		if err := st.run(ctx); err != nil {
			status, message = "error", err.Error()
			s.log.Error("sync stage failed", "run", runID, "stage", st.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", st.name, err))
		}
		if err := s.store.SyncRunRecord(ctx, runID, budgetID, st.name, status, message); err != nil {
			errs = append(errs, fmt.Errorf("%s outcome record: %w", st.name, err))
		}
	}

	s.log.Info("sync finished", "run", runID, "budget", budgetID, "errors", len(errs))
	return errors.Join(errs...)
}

func (s *Syncer) syncBudget(ctx context.Context, budgetID string) error {
	budget, err := s.source.GetBudgetByID(ctx, budgetID)
	if err != nil {
		return err
	}
	if budget == nil {
		s.log.Info("no budget data to sync", "budget", budgetID)
		return nil
	}
	return s.store.BudgetUpsert(ctx, *budget)
}

func (s *Syncer) syncCategories(ctx context.Context, budgetID string) error {
	groups, err := s.source.GetCategories(ctx, budgetID)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		s.log.Info("no categories to sync", "budget", budgetID)
		return nil
	}
	return s.store.CategoriesUpsert(ctx, groups)
}

func (s *Syncer) syncPayees(ctx context.Context, budgetID string) error {
	payees, err := s.source.GetPayees(ctx, budgetID)
	if err != nil {
		return err
	}
	if len(payees) == 0 {
		s.log.Info("no payees to sync", "budget", budgetID)
		return nil
	}
	return s.store.PayeesUpsert(ctx, payees)
}

func (s *Syncer) syncAccounts(ctx context.Context, budgetID string) error {
	accounts, err := s.source.GetAccounts(ctx, budgetID)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		s.log.Info("no accounts to sync", "budget", budgetID)
		return nil
	}
	return s.store.AccountsUpsert(ctx, accounts)
}

func (s *Syncer) syncTransactions(ctx context.Context, budgetID string) error {
	var opts *ynab.TransactionsOptions
	if s.sinceDate != "" {
		opts = &ynab.TransactionsOptions{SinceDate: s.sinceDate}
	}
	transactions, err := s.source.GetTransactions(ctx, budgetID, opts)
	if err != nil {
		return err
	}
	if len(transactions) == 0 {
		s.log.Info("no transactions to sync", "budget", budgetID)
		return nil
	}
	return s.store.TransactionsUpsert(ctx, transactions)
}

// SnapshotBalances fetches the budget's accounts and records a balance
// snapshot for each. Intended to run from a scheduler around month end: a
// run on the 1st of a month is attributed to the last day of the previous
// month.
func (s *Syncer) SnapshotBalances(ctx context.Context, budgetID string) error {

	accounts, err := s.source.GetAccounts(ctx, budgetID)
	if err != nil {
		return fmt.Errorf("snapshot accounts fetch error: %w", err)
	}

	date := time.Now()
	if date.Day() == 1 {
		date = date.AddDate(0, 0, -1)
	}

	for _, acc := range accounts {
		if err := s.store.SnapshotAccountBalance(ctx, nil, acc, date); err != nil {
			return err
		}
	}
	s.log.Info("balances snapshotted",
		"budget", budgetID, "accounts", len(accounts), "date", date.Format("2006-01-02"))
	return nil
}
