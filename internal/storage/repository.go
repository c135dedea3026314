package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aditi5926/expense-tracker/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the persistence store for accounts and expenses.
// Every expense operation is scoped to an owner at the query level, so a
// logic error higher up can never leak another account's rows.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// under concurrent requests at this scale.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateAccount inserts a new account. A username collision surfaces as
// core.ErrDuplicateUsername.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, username, passwordHash string) (core.Account, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, passwordHash, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Account{}, fmt.Errorf("insert account %q: %w", username, core.ErrDuplicateUsername)
		}
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account insert id: %w", err)
	}

	slog.InfoContext(ctx, "Account created", "id", id, "username", username)

	return core.Account{ID: id, Username: username, PasswordHash: passwordHash, CreatedAt: now}, nil
}

// GetAccountByUsername returns core.ErrNotFound when no such account exists.
// Credential verification happens in the ledger, never in SQL.
func (r *SQLiteRepository) GetAccountByUsername(ctx context.Context, username string) (core.Account, error) {
	var a core.Account
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM accounts WHERE username = ?`,
		username,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account %q: %w", username, core.ErrNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account by username: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) CountAccounts(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return count, nil
}

// CreateExpense inserts a new expense row and returns it with its assigned ID.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (owner_id, description, category, reimbursable, quantity, unit_price, total, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.OwnerID, e.Description, string(e.Category), e.Reimbursable, e.Quantity, e.UnitPrice, e.Total, e.CreatedAt,
	)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense insert id: %w", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"owner_id", e.OwnerID,
		"category", e.Category,
		"total", e.Total)

	return e, nil
}

// GetExpense fetches a single expense scoped to its owner.
func (r *SQLiteRepository) GetExpense(ctx context.Context, ownerID, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, description, category, reimbursable, quantity, unit_price, total, created_at
		 FROM expenses WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// GetExpenseOwner reports which account owns an expense. The ledger uses it
// to tell "no such expense" apart from "someone else's expense".
func (r *SQLiteRepository) GetExpenseOwner(ctx context.Context, id int64) (int64, error) {
	var ownerID int64
	err := r.db.QueryRowContext(ctx, `SELECT owner_id FROM expenses WHERE id = ?`, id).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get expense owner: %w", err)
	}
	return ownerID, nil
}

// ListExpenses returns one page of an owner's expenses, newest first.
// An empty category means no category filter. The id tiebreak keeps the
// ordering stable when several rows share a timestamp.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, ownerID int64, category core.Category, limit, offset int) ([]core.Expense, error) {
	query := `SELECT id, owner_id, description, category, reimbursable, quantity, unit_price, total, created_at
		 FROM expenses WHERE owner_id = ?`
	args := []any{ownerID}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}

	return expenses, nil
}

func (r *SQLiteRepository) CountExpenses(ctx context.Context, ownerID int64, category core.Category) (int64, error) {
	query := `SELECT COUNT(*) FROM expenses WHERE owner_id = ?`
	args := []any{ownerID}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, string(category))
	}

	var count int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return count, nil
}

// UpdateExpense overwrites all mutable fields of an owner's expense in one
// statement. Total must already be recomputed by the caller.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses
		 SET description = ?, category = ?, reimbursable = ?, quantity = ?, unit_price = ?, total = ?
		 WHERE id = ? AND owner_id = ?`,
		e.Description, string(e.Category), e.Reimbursable, e.Quantity, e.UnitPrice, e.Total, e.ID, e.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update expense rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("expense %d: %w", e.ID, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Expense updated",
		"id", e.ID,
		"owner_id", e.OwnerID,
		"category", e.Category,
		"total", e.Total)

	return nil
}

// DeleteExpense hard-deletes an owner's expense.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, ownerID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Expense deleted", "id", id, "owner_id", ownerID)
	return nil
}

// RefreshOwnerTotals rebuilds the precomputed per-category totals for one
// account from the expenses table. Called by the summary worker after every
// expense change event.
func (r *SQLiteRepository) RefreshOwnerTotals(ctx context.Context, ownerID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin refresh totals: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM category_totals WHERE owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("clear category totals: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO category_totals (owner_id, category, total, expense_count, refreshed_at)
		 SELECT owner_id, category, SUM(total), COUNT(*), ?
		 FROM expenses WHERE owner_id = ? GROUP BY category`,
		time.Now().UTC(), ownerID,
	); err != nil {
		return fmt.Errorf("rebuild category totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit refresh totals: %w", err)
	}

	slog.InfoContext(ctx, "Category totals refreshed", "owner_id", ownerID)
	return nil
}

// GetOwnerSummary reads the precomputed totals for one account.
func (r *SQLiteRepository) GetOwnerSummary(ctx context.Context, ownerID int64) (core.OwnerSummary, error) {
	summary := core.OwnerSummary{OwnerID: ownerID}

	rows, err := r.db.QueryContext(ctx,
		`SELECT category, total, expense_count FROM category_totals WHERE owner_id = ? ORDER BY total DESC`,
		ownerID,
	)
	if err != nil {
		return summary, fmt.Errorf("get owner summary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ct core.CategoryTotal
		var category string
		if err := rows.Scan(&category, &ct.Total, &ct.Count); err != nil {
			return summary, fmt.Errorf("scan category total: %w", err)
		}
		ct.Category = core.Category(category)
		summary.Total += ct.Total
		summary.ByCategory = append(summary.ByCategory, ct)
	}
	if err := rows.Err(); err != nil {
		return summary, fmt.Errorf("iterate category totals: %w", err)
	}

	return summary, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var e core.Expense
	var category string
	err := row.Scan(&e.ID, &e.OwnerID, &e.Description, &category, &e.Reimbursable,
		&e.Quantity, &e.UnitPrice, &e.Total, &e.CreatedAt)
	if err != nil {
		return core.Expense{}, err
	}
	e.Category = core.Category(category)
	return e, nil
}

// isUniqueViolation detects SQLite's UNIQUE constraint failure without tying
// the store to driver-specific error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
