package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"cashstash/internal/core"
)

// SQLiteRepository is the sqlite-backed Store.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens dbPath, runs migrations and returns the store.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite serializes writers anyway; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

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

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const txColumns = `id, user_id, type, amount, description, category_id, category_name, created_at`

func (r *SQLiteRepository) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+txColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, string(tx.Type), tx.Amount, tx.Description,
		string(tx.CategoryID), tx.CategoryName, tx.CreatedAt.UnixNano())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

func (r *SQLiteRepository) UpdateFields(ctx context.Context, id string, amount float64, description string) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET amount = ?, description = ? WHERE id = ?`,
		amount, description, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.Transaction{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx        core.Transaction
		typ, cat  string
		createdAt int64
	)
	err := s.Scan(&tx.ID, &tx.UserID, &typ, &tx.Amount, &tx.Description, &cat, &tx.CategoryName, &createdAt)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TransactionType(typ)
	tx.CategoryID = core.CategoryID(cat)
	tx.CreatedAt = time.Unix(0, createdAt).UTC()
	return tx, nil
}

const userColumns = `id, fullname, email, password_hash, role, created_at`

func (r *SQLiteRepository) CreateUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.FullName, u.Email, u.PasswordHash, u.Role, u.CreatedAt.UnixNano())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (User, error) {
	return r.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (User, error) {
	return r.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *SQLiteRepository) UpdateDisplayName(ctx context.Context, id, name string) (User, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET fullname = ? WHERE id = ?`, name, id)
	if err != nil {
		return User{}, fmt.Errorf("update user %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return User{}, ErrNotFound
	}
	return r.UserByID(ctx, id)
}

func (r *SQLiteRepository) queryUser(ctx context.Context, query string, arg string) (User, error) {
	var (
		u         User
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.Role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = time.Unix(0, createdAt).UTC()
	return u, nil
}
