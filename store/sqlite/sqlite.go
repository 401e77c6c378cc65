/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements the money ledger (generic.Store, generic.TxStore) and the
  school records the engines read: students, teachers, class fee
  structures, class subjects, attendance, holidays and marks.

INTERFACES IMPLEMENTED:
  generic.Store:      Transaction persistence
  generic.TxStore:    Atomic multi-write
  fees.Directory:     Students and class fee defaults
  payroll.Directory:  Teachers, attendance, holidays
  results.Directory:  Student class, subjects, marks

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on transactions table
  - No DELETE statements on transactions table (except Reset for demos)
  - Corrections via reversal transactions only

KEY TABLES:
  transactions:   Immutable ledger of fee and salary payments
  students:       Student records with optional fee override (JSON)
  teachers:       Teacher records with base salary
  class_fees:     Default fee structure per class (JSON)
  class_subjects: Subjects taught per class (JSON)
  attendance:     One row per (date, teacher), keyed by yyyy-MM-dd
  holidays:       School holidays, keyed by yyyy-MM-dd
  marks:          One row per (student, exam cycle, subject)

DATE KEYS:
  Dates are stored as yyyy-MM-dd text and months as yyyy-MM. Text order is
  date order, so range queries compare strings directly.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Two payments for the same student
  at the same time are both appended; nothing serializes them.

USAGE:
  store, err := sqlite.New("./data/school.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := generic.NewLedger(store)

SEE ALSO:
  - records.go: Students, teachers, classes, attendance, holidays, marks
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/school-engine/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL,
		account TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		amount TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		method TEXT,
		months_json TEXT,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		metadata_json TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_entity_account_date
		ON transactions(entity_id, account, effective_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_idempotency
		ON transactions(idempotency_key) WHERE idempotency_key IS NOT NULL;

	-- Combined family payments share a reference
	CREATE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(reference_id) WHERE reference_id IS NOT NULL;

	-- Students
	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		class_name TEXT NOT NULL,
		parent_phone TEXT,
		date_of_birth TEXT,
		fee_override_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_students_parent_phone
		ON students(parent_phone);

	-- Teachers
	CREATE TABLE IF NOT EXISTS teachers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		subject TEXT,
		phone TEXT,
		base_salary TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Class defaults
	CREATE TABLE IF NOT EXISTS class_fees (
		class_name TEXT PRIMARY KEY,
		structure_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS class_subjects (
		class_name TEXT PRIMARY KEY,
		subjects_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Attendance (one mark per teacher per day)
	CREATE TABLE IF NOT EXISTS attendance (
		date TEXT NOT NULL,
		teacher_id TEXT NOT NULL,
		status TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (date, teacher_id)
	);

	-- Holidays
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(date, name);

	-- Marks (NULL mark = not recorded)
	CREATE TABLE IF NOT EXISTS marks (
		student_id TEXT NOT NULL,
		exam_cycle TEXT NOT NULL,
		subject TEXT NOT NULL,
		mark REAL,
		PRIMARY KEY (student_id, exam_cycle, subject)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION STORE (generic.Store interface)
// =============================================================================

const transactionColumns = `id, entity_id, account, effective_at, amount, tx_type, method, months_json,
		       reference_id, reason, idempotency_key, metadata_json, created_by, created_at`

// Append adds a transaction to the ledger.
func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendTx(ctx, s.db, tx)
}

func (s *Store) appendTx(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, tx generic.Transaction) error {
	metadataJSON, err := json.Marshal(tx.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	monthsJSON, err := json.Marshal(tx.Months)
	if err != nil {
		return fmt.Errorf("failed to encode months: %w", err)
	}

	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = generic.Today()
	}

	query := `
		INSERT INTO transactions
		(id, entity_id, account, effective_at, amount, tx_type, method, months_json,
		 reference_id, reason, idempotency_key, metadata_json, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query,
		tx.ID,
		tx.EntityID,
		tx.Account.AccountID(),
		tx.EffectiveAt.DateKey(),
		tx.Amount.Value.String(),
		tx.Type,
		tx.Method,
		string(monthsJSON),
		nullString(tx.ReferenceID),
		tx.Reason,
		nullString(tx.IdempotencyKey),
		string(metadataJSON),
		tx.CreatedBy,
		createdAt.DateKey(),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return nil
}

// AppendBatch adds multiple transactions atomically.
func (s *Store) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicate idempotency keys within the batch first
	idempotencyKeys := make(map[string]bool)
	for _, tx := range txs {
		if tx.IdempotencyKey != "" {
			if idempotencyKeys[tx.IdempotencyKey] {
				return generic.ErrDuplicateIdempotencyKey
			}
			idempotencyKeys[tx.IdempotencyKey] = true
		}
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, tx := range txs {
		if err := s.appendTx(ctx, sqlTx, tx); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

// Load returns all transactions for an entity+account.
func (s *Store) Load(ctx context.Context, entityID generic.EntityID, account generic.Account) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE entity_id = ? AND account = ?
		ORDER BY effective_at ASC, rowid ASC
	`

	return s.queryTransactions(ctx, query, entityID, account.AccountID())
}

// LoadRange returns transactions with effective dates in [from, to].
func (s *Store) LoadRange(ctx context.Context, entityID generic.EntityID, account generic.Account, from, to generic.TimePoint) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE entity_id = ? AND account = ?
		  AND effective_at >= ? AND effective_at <= ?
		ORDER BY effective_at ASC, rowid ASC
	`

	return s.queryTransactions(ctx, query, entityID, account.AccountID(), from.DateKey(), to.DateKey())
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

// TransactionsByReference returns every transaction sharing a reference ID,
// such as the shares of one combined family payment.
func (s *Store) TransactionsByReference(ctx context.Context, referenceID string) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE reference_id = ?
		ORDER BY rowid ASC
	`

	return s.queryTransactions(ctx, query, referenceID)
}

// RecentTransactions returns the latest transactions across all accounts.
func (s *Store) RecentTransactions(ctx context.Context, limit int) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		ORDER BY rowid DESC
		LIMIT ?
	`

	return s.queryTransactions(ctx, query, limit)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]generic.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx             generic.Transaction
		accountID      string
		effectiveAt    string
		amount         string
		method         sql.NullString
		monthsJSON     sql.NullString
		referenceID    sql.NullString
		reason         sql.NullString
		idempotencyKey sql.NullString
		metadataJSON   sql.NullString
		createdBy      sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&tx.ID, &tx.EntityID, &accountID, &effectiveAt, &amount, &tx.Type,
		&method, &monthsJSON, &referenceID, &reason, &idempotencyKey,
		&metadataJSON, &createdBy, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Account = generic.GetOrCreateAccount(accountID)
	tx.EffectiveAt = parseDate(effectiveAt)
	tx.CreatedAt = parseDate(createdAt)
	tx.Amount = generic.NewAmountFromDecimal(generic.MustParseDecimal(amount))
	tx.Method = method.String
	tx.ReferenceID = referenceID.String
	tx.Reason = reason.String
	tx.IdempotencyKey = idempotencyKey.String
	tx.CreatedBy = createdBy.String

	if monthsJSON.Valid && monthsJSON.String != "" {
		if err := json.Unmarshal([]byte(monthsJSON.String), &tx.Months); err != nil {
			return tx, fmt.Errorf("failed to decode months for %s: %w", tx.ID, err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &tx.Metadata); err != nil {
			return tx, fmt.Errorf("failed to decode metadata for %s: %w", tx.ID, err)
		}
	}

	return tx, nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", generic.ErrTransactionFailed, err)
	}
	defer sqlTx.Rollback()

	txStore := &txStore{tx: sqlTx, parent: s}
	if err := fn(txStore); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", generic.ErrTransactionFailed, err)
	}
	return nil
}

type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) Append(ctx context.Context, tx generic.Transaction) error {
	return ts.parent.appendTx(ctx, ts.tx, tx)
}

func (ts *txStore) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	for _, tx := range txs {
		if err := ts.parent.appendTx(ctx, ts.tx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (ts *txStore) Load(ctx context.Context, entityID generic.EntityID, account generic.Account) ([]generic.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE entity_id = ? AND account = ?
		ORDER BY effective_at ASC, rowid ASC
	`
	return ts.query(ctx, query, entityID, account.AccountID())
}

func (ts *txStore) LoadRange(ctx context.Context, entityID generic.EntityID, account generic.Account, from, to generic.TimePoint) ([]generic.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE entity_id = ? AND account = ?
		  AND effective_at >= ? AND effective_at <= ?
		ORDER BY effective_at ASC, rowid ASC
	`
	return ts.query(ctx, query, entityID, account.AccountID(), from.DateKey(), to.DateKey())
}

func (ts *txStore) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := ts.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

// Reads inside WithTx go through the open transaction; the parent's lock is held.
func (ts *txStore) query(ctx context.Context, query string, args ...any) ([]generic.Transaction, error) {
	rows, err := ts.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"transactions", "students", "teachers", "class_fees",
		"class_subjects", "attendance", "holidays", "marks",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDate(s string) generic.TimePoint {
	t, err := time.Parse(generic.DateLayout, s)
	if err != nil {
		return generic.TimePoint{}
	}
	return generic.FromTime(t)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
