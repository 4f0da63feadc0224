// Package postgres is the remote storage backend built on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mrx7355608/finance-app-2.0/internal/core"
	"github.com/mrx7355608/finance-app-2.0/internal/storage"
)

// Ensure interface conformance
var (
	_ storage.Store             = (*Store)(nil)
	_ storage.RecordRepository  = recordRepo{}
	_ storage.ExpenseRepository = expenseRepo{}
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Open connects to dsn, verifies the connection and migrates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := RunMigrations(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{pool: pool, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) Records() storage.RecordRepository   { return recordRepo{q: s.pool, now: s.now} }
func (s *Store) Expenses() storage.ExpenseRepository { return expenseRepo{q: s.pool, now: s.now} }

func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(txView{q: tx, now: s.now})
	})
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
	var ok bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM records WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("check record exists: %w", err)
	}
	return ok, nil
}

func (r recordRepo) Insert(ctx context.Context, in core.RecordInput) (core.Record, error) {
	now := r.now().UTC()
	row := r.q.QueryRow(ctx, `
		INSERT INTO records (name, images, bought_price, sold_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING `+recordColumns,
		in.Name, in.Images, in.BoughtPrice, in.SoldPrice, now)

	rec, err := scanRecord(row)
	if err != nil {
		return core.Record{}, fmt.Errorf("insert record: %w", err)
	}

	slog.DebugContext(ctx, "Record saved to Postgres", "id", rec.ID, "name", rec.Name)
	return rec, nil
}

func (r recordRepo) FindAll(ctx context.Context) ([]core.Record, error) {
	rows, err := r.q.Query(ctx, `SELECT `+recordColumns+` FROM records ORDER BY id`)
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
	rec, err := scanRecord(r.q.QueryRow(ctx, `SELECT `+recordColumns+` FROM records WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Record{}, false, nil
	}
	if err != nil {
		return core.Record{}, false, fmt.Errorf("get record by id: %w", err)
	}
	return rec, true, nil
}

func (r recordRepo) Update(ctx context.Context, id int64, in core.RecordInput) (core.Record, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE records
		SET name = $2, images = $3, bought_price = $4, sold_price = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+recordColumns,
		id, in.Name, in.Images, in.BoughtPrice, in.SoldPrice, r.now().UTC())

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Record{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("update record: %w", err)
	}
	return rec, nil
}

func (r recordRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM records WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// amount is read back as text so decimal keeps its exact scale.
const expenseColumns = `id, name, amount::text, record_id, created_at`

type expenseRepo struct {
	q   DBTX
	now func() time.Time
}

func (r expenseRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM expenses WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("check expense exists: %w", err)
	}
	return ok, nil
}

func (r expenseRepo) Insert(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO expenses (name, amount, record_id, created_at)
		VALUES ($1, $2::numeric, $3, $4)
		RETURNING `+expenseColumns,
		in.Name, in.Amount.String(), in.RecordID, r.now().UTC())

	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return e, nil
}

func (r expenseRepo) FindAll(ctx context.Context) ([]core.Expense, error) {
	return r.list(ctx, `SELECT `+expenseColumns+` FROM expenses ORDER BY id`)
}

func (r expenseRepo) FindByID(ctx context.Context, id int64) (core.Expense, bool, error) {
	e, err := scanExpense(r.q.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Expense{}, false, nil
	}
	if err != nil {
		return core.Expense{}, false, fmt.Errorf("get expense by id: %w", err)
	}
	return e, true, nil
}

func (r expenseRepo) FindByRecordID(ctx context.Context, recordID int64) ([]core.Expense, error) {
	return r.list(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE record_id = $1 ORDER BY id`, recordID)
}

func (r expenseRepo) UpdateName(ctx context.Context, id int64, name string) (core.Expense, error) {
	row := r.q.QueryRow(ctx,
		`UPDATE expenses SET name = $2 WHERE id = $1 RETURNING `+expenseColumns, id, name)
	return updated(row, "update expense name")
}

func (r expenseRepo) UpdateAmount(ctx context.Context, id int64, amount decimal.Decimal) (core.Expense, error) {
	row := r.q.QueryRow(ctx,
		`UPDATE expenses SET amount = $2::numeric WHERE id = $1 RETURNING `+expenseColumns, id, amount.String())
	return updated(row, "update expense amount")
}

func (r expenseRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

func (r expenseRepo) DeleteByRecordID(ctx context.Context, recordID int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM expenses WHERE record_id = $1`, recordID)
	if err != nil {
		return fmt.Errorf("delete expenses by record: %w", err)
	}
	slog.DebugContext(ctx, "Expenses deleted from Postgres", "record_id", recordID, "count", tag.RowsAffected())
	return nil
}

func (r expenseRepo) list(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := r.q.Query(ctx, query, args...)
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

func updated(row pgx.Row, op string) (core.Expense, error) {
	e, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Expense{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

func scanRecord(row pgx.Row) (core.Record, error) {
	var rec core.Record
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Images, &rec.BoughtPrice, &rec.SoldPrice, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return core.Record{}, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

func scanExpense(row pgx.Row) (core.Expense, error) {
	var (
		e      core.Expense
		amount string
	)
	if err := row.Scan(&e.ID, &e.Name, &amount, &e.RecordID, &e.CreatedAt); err != nil {
		return core.Expense{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("decode amount: %w", err)
	}
	e.Amount = d
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}
