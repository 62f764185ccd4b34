// Package db provides the local budget mirror for the budgetdash project.
//
// Although the database backend is sqlite, to allow for simple desktop and
// single-file deployment, the database is not treated as a dumb storage
// layer. Each query is held in an sql file in the `sql` directory which can
// be run directly on the sqlite command line with its example values.
//
// The use of external, runnable sql files as Go prepared statements is made
// possible through the parameterization scheme set out in parameterize.go.
//
// Writes arrive as batches from the budget service sync and are applied as
// full-record upserts, one transaction per batch. Reads serve the web
// dashboard.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/jmoiron/sqlx" // helper library
	_ "modernc.org/sqlite"    // pure go sqlite driver
)

// schemaFile is the idempotent schema definition, applied on connection.
const schemaFile = "schema.sql"

// parameterizedStmt describes an sql file parsed into an sqlx NamedStmt
// expecting the provided args.
type parameterizedStmt struct {
	sqlFile string
	args    []string
	*sqlx.NamedStmt
}

// verifyArgs determines if the number of arguments provided to a
// parameterizedStmt is as expected. This check could be more thorough.
func (p *parameterizedStmt) verifyArgs(args map[string]any) error {
	if got, want := len(args), len(p.args); got != want {
		return fmt.Errorf(
			"argument length to named statement from %q incorrect: got %d want %d",
			p.sqlFile,
			got,
			want,
		)
	}
	return nil
}

// DB provides a wrapper around the sql.DB connection for application-specific
// db operations.
type DB struct {
	*sqlx.DB
	sqlFS fs.FS
	log   *slog.Logger

	// Prepared statements.
	budgetUpsertStmt      *parameterizedStmt
	accountUpsertStmt     *parameterizedStmt
	payeeUpsertStmt       *parameterizedStmt
	categoryUpsertStmt    *parameterizedStmt
	transactionUpsertStmt *parameterizedStmt

	subTransactionGetStmt    *parameterizedStmt
	subTransactionInsertStmt *parameterizedStmt
	subTransactionUpdateStmt *parameterizedStmt

	monthBudgetGetStmt    *parameterizedStmt
	monthBudgetInsertStmt *parameterizedStmt
	monthBudgetUpdateStmt *parameterizedStmt

	snapshotGetStmt    *parameterizedStmt
	snapshotInsertStmt *parameterizedStmt
	snapshotUpdateStmt *parameterizedStmt

	syncRunInsertStmt *parameterizedStmt

	transactionsGetStmt    *parameterizedStmt
	spendByDateStmt        *parameterizedStmt
	spendByCategoryStmt    *parameterizedStmt
	accountsGetStmt        *parameterizedStmt
	balanceHistoryGetStmt  *parameterizedStmt
	monthBudgetSummaryStmt *parameterizedStmt
}

// NewConnection creates a new connection to an SQLite database at the given
// path, initialises the schema and prepares the named statements. sqlDir is
// the filesystem holding the sql files, normally a mount of SQLEmbeddedFS.
func NewConnection(dbPath string, sqlDir fs.FS, logger *slog.Logger) (*DB, error) {

	// dataSource is the default setting for file-based databases.
	dataSource := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dbPath)

	// In-memory databases, as used for testing, need a shared cache so that
	// each connection in the pool sees the same database.
	if strings.Contains(dbPath, ":memory:") || strings.Contains(dbPath, "mode=memory") {
		if !strings.Contains(dbPath, "cache=shared") {
			return nil, fmt.Errorf("in-memory connection %q should contain 'cache=shared'", dbPath)
		}
		dataSource = dbPath + "&_pragma=foreign_keys(1)"
	}
	dbDB, err := sql.Open("sqlite", dataSource)
	if err != nil {
		return nil, err
	}
	if err := dbDB.Ping(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(
			os.Stdout,
			&slog.HandlerOptions{Level: slog.LevelWarn},
		))
	}

	// Wrap the standard library *sql.DB with sqlx.
	db := &DB{
		DB:    sqlx.NewDb(dbDB, "sqlite"),
		sqlFS: sqlDir,
		log:   logger,
	}

	// The schema is applied before statement preparation so that statements
	// always have tables to prepare against, including on a fresh database.
	if err := db.InitSchema(); err != nil {
		return nil, err
	}
	if err := db.prepareNamedStatements(); err != nil {
		return nil, fmt.Errorf("could not prepare named statements: %w", err)
	}

	return db, nil
}

// InitSchema creates the necessary tables if they don't already exist. The
// schema file can be run idempotently.
func (db *DB) InitSchema() error {

	schema, err := fs.ReadFile(db.sqlFS, schemaFile)
	if err != nil {
		return fmt.Errorf("could not read schema file at %q: %w", schemaFile, err)
	}

	_, err = db.ExecContext(context.Background(), string(schema))
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// prepareNamedStatements prepares all the named statements for this database
// connection.
func (db *DB) prepareNamedStatements() error {
	for _, s := range []struct {
		stmt **parameterizedStmt
		file string
	}{
		{&db.budgetUpsertStmt, "budget_upsert.sql"},
		{&db.accountUpsertStmt, "account_upsert.sql"},
		{&db.payeeUpsertStmt, "payee_upsert.sql"},
		{&db.categoryUpsertStmt, "category_upsert.sql"},
		{&db.transactionUpsertStmt, "transaction_upsert.sql"},

		{&db.subTransactionGetStmt, "subtransaction_get.sql"},
		{&db.subTransactionInsertStmt, "subtransaction_insert.sql"},
		{&db.subTransactionUpdateStmt, "subtransaction_update.sql"},

		{&db.monthBudgetGetStmt, "month_budget_get.sql"},
		{&db.monthBudgetInsertStmt, "month_budget_insert.sql"},
		{&db.monthBudgetUpdateStmt, "month_budget_update.sql"},

		{&db.snapshotGetStmt, "balance_snapshot_get.sql"},
		{&db.snapshotInsertStmt, "balance_snapshot_insert.sql"},
		{&db.snapshotUpdateStmt, "balance_snapshot_update.sql"},

		{&db.syncRunInsertStmt, "sync_run_insert.sql"},

		{&db.transactionsGetStmt, "transactions_page.sql"},
		{&db.spendByDateStmt, "spend_by_date.sql"},
		{&db.spendByCategoryStmt, "spend_by_category.sql"},
		{&db.accountsGetStmt, "accounts_list.sql"},
		{&db.balanceHistoryGetStmt, "balance_history.sql"},
		{&db.monthBudgetSummaryStmt, "month_budget_summary.sql"},
	} {
		var err error
		*s.stmt, err = db.prepNamedStatement(db.sqlFS, s.file)
		if err != nil {
			return fmt.Errorf("statement %q error: %w", s.file, err)
		}
	}
	return nil
}

// prepNamedStatement prepares the SQL query in the named file.
func (db *DB) prepNamedStatement(fileFS fs.FS, filePath string) (*parameterizedStmt, error) {
	query, err := ParameterizeFile(fileFS, filePath)
	if err != nil {
		return nil, fmt.Errorf("could not parameterize %q: %w", filePath, err)
	}

	pQuery, err := db.PrepareNamed(string(query.Body))
	if err != nil {
		return nil, fmt.Errorf("could not prepare statement %q: %w", filePath, err)
	}
	return &parameterizedStmt{
		filePath,
		query.Parameters,
		pQuery,
	}, nil
}

// execTx runs a write statement within the provided transaction, first
// verifying the arguments and rebinding the prepared statement to the
// transaction.
func (db *DB) execTx(ctx context.Context, tx *sqlx.Tx, stmt *parameterizedStmt, args map[string]any) error {
	if err := stmt.verifyArgs(args); err != nil {
		return err
	}
	_, err := tx.NamedStmtContext(ctx, stmt.NamedStmt).ExecContext(ctx, args)
	if err != nil {
		return fmt.Errorf("%s exec error: %w", stmt.sqlFile, err)
	}
	return nil
}

// getTx runs a single-row query within the provided transaction, scanning
// into dest. An empty result returns sql.ErrNoRows.
func (db *DB) getTx(ctx context.Context, tx *sqlx.Tx, stmt *parameterizedStmt, dest any, args map[string]any) error {
	if err := stmt.verifyArgs(args); err != nil {
		return err
	}
	return tx.NamedStmtContext(ctx, stmt.NamedStmt).GetContext(ctx, dest, args)
}
