// Package sqlite is the embedded SQL storage backend built on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mrx7355608/finance-app-2.0/internal/core"
	"github.com/mrx7355608/finance-app-2.0/internal/storage"

	_ "modernc.org/sqlite"
)

// Ensure interface conformance
var (
	_ storage.Store             = (*Store)(nil)
	_ storage.RecordRepository  = recordRepo{}
	_ storage.ExpenseRepository = expenseRepo{}
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DSN returns the connection string used for dbPath. Foreign keys are
// enforced per connection.
func DSN(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Open creates the database directory if needed, connects and migrates.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; busy_timeout covers the migration connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Records() storage.RecordRepository   { return recordRepo{q: s.db, now: s.now} }
func (s *Store) Expenses() storage.ExpenseRepository { return expenseRepo{q: s.db, now: s.now} }

func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(txView{q: tx, now: s.now}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Failed to roll back SQLite transaction", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type txView struct {
	q   DBTX
	now func() time.Time
}

func (v txView) Records() storage.RecordRepository   { return recordRepo{q: v.q, now: v.now} }
func (v txView) Expenses() storage.ExpenseRepository { return expenseRepo{q: v.q, now: v.now} }

const recordColumns = `id, name, images, bought_price, sold_price, created_at, updated_at`

type recordRepo struct {
	q   DBTX
	now func() time.Time
}

func (r recordRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.q.QueryRowContext(ctx, `SELECT 1 FROM records WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check record exists: %w", err)
	}
	return true, nil
}

func (r recordRepo) Insert(ctx context.Context, in core.RecordInput) (core.Record, error) {
	images, err := json.Marshal(in.Images)
	if err != nil {
		return core.Record{}, fmt.Errorf("encode images: %w", err)
	}
	now := formatTime(r.now())

	row := r.q.QueryRowContext(ctx, `
		INSERT INTO records (name, images, bought_price, sold_price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING `+recordColumns,
		in.Name, string(images), in.BoughtPrice, nullInt(in.SoldPrice), now, now)

	rec, err := scanRecord(row)
	if err != nil {
		return core.Record{}, fmt.Errorf("insert record: %w", err)
	}

	slog.DebugContext(ctx, "Record saved to SQLite", "id", rec.ID, "name", rec.Name)
	return rec, nil
}

func (r recordRepo) FindAll(ctx context.Context) ([]core.Record, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+recordColumns+` FROM records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := make([]core.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return out, nil
}

func (r recordRepo) FindByID(ctx context.Context, id int64) (core.Record, bool, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, false, nil
	}
	if err != nil {
		return core.Record{}, false, fmt.Errorf("get record by id: %w", err)
	}
	return rec, true, nil
}

func (r recordRepo) Update(ctx context.Context, id int64, in core.RecordInput) (core.Record, error) {
	images, err := json.Marshal(in.Images)
	if err != nil {
		return core.Record{}, fmt.Errorf("encode images: %w", err)
	}

	row := r.q.QueryRowContext(ctx, `
		UPDATE records
		SET name = ?, images = ?, bought_price = ?, sold_price = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+recordColumns,
		in.Name, string(images), in.BoughtPrice, nullInt(in.SoldPrice), formatTime(r.now()), id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("update record: %w", err)
	}
	return rec, nil
}

func (r recordRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	slog.DebugContext(ctx, "Record deleted from SQLite", "id", id)
	return nil
}

const expenseColumns = `id, name, amount, record_id, created_at`

type expenseRepo struct {
	q   DBTX
	now func() time.Time
}

func (r expenseRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.q.QueryRowContext(ctx, `SELECT 1 FROM expenses WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check expense exists: %w", err)
	}
	return true, nil
}

func (r expenseRepo) Insert(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	row := r.q.QueryRowContext(ctx, `
		INSERT INTO expenses (name, amount, record_id, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING `+expenseColumns,
		in.Name, in.Amount.String(), in.RecordID, formatTime(r.now()))

	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"record_id", e.RecordID,
		"amount", e.Amount.String())
	return e, nil
}

func (r expenseRepo) FindAll(ctx context.Context) ([]core.Expense, error) {
	return r.list(ctx, `SELECT `+expenseColumns+` FROM expenses ORDER BY id`)
}

func (r expenseRepo) FindByID(ctx context.Context, id int64) (core.Expense, bool, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, false, nil
	}
	if err != nil {
		return core.Expense{}, false, fmt.Errorf("get expense by id: %w", err)
	}
	return e, true, nil
}

func (r expenseRepo) FindByRecordID(ctx context.Context, recordID int64) ([]core.Expense, error) {
	return r.list(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE record_id = ? ORDER BY id`, recordID)
}

func (r expenseRepo) UpdateName(ctx context.Context, id int64, name string) (core.Expense, error) {
	row := r.q.QueryRowContext(ctx,
		`UPDATE expenses SET name = ? WHERE id = ? RETURNING `+expenseColumns, name, id)
	return r.updated(row, "update expense name")
}

func (r expenseRepo) UpdateAmount(ctx context.Context, id int64, amount decimal.Decimal) (core.Expense, error) {
	row := r.q.QueryRowContext(ctx,
		`UPDATE expenses SET amount = ? WHERE id = ? RETURNING `+expenseColumns, amount.String(), id)
	return r.updated(row, "update expense amount")
}

func (r expenseRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

func (r expenseRepo) DeleteByRecordID(ctx context.Context, recordID int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM expenses WHERE record_id = ?`, recordID)
	if err != nil {
		return fmt.Errorf("delete expenses by record: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.DebugContext(ctx, "Expenses deleted from SQLite", "record_id", recordID, "count", n)
	return nil
}

func (r expenseRepo) list(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

func (r expenseRepo) updated(row *sql.Row, op string) (core.Expense, error) {
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (core.Record, error) {
	var (
		rec                  core.Record
		images               string
		sold                 sql.NullInt64
		createdAt, updatedAt string
	)
	if err := s.Scan(&rec.ID, &rec.Name, &images, &rec.BoughtPrice, &sold, &createdAt, &updatedAt); err != nil {
		return core.Record{}, err
	}
	if err := json.Unmarshal([]byte(images), &rec.Images); err != nil {
		return core.Record{}, fmt.Errorf("decode images: %w", err)
	}
	if sold.Valid {
		rec.SoldPrice = core.Int64(sold.Int64)
	}
	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Record{}, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Record{}, err
	}
	return rec, nil
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e         core.Expense
		amount    string
		createdAt string
	)
	if err := s.Scan(&e.ID, &e.Name, &amount, &e.RecordID, &createdAt); err != nil {
		return core.Expense{}, err
	}
	var err error
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Expense{}, fmt.Errorf("decode amount: %w", err)
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
