package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAccountNotFound indicates no account exists for the given email.
var ErrAccountNotFound = errors.New("account not found")

// Account is a stored user account. No surface requires sign-in yet;
// the table and these accessors back the planned authentication flow.
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// AccountStore persists accounts.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates an AccountStore backed by pool.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Create inserts an account. The caller hashes the password.
func (s *AccountStore) Create(ctx context.Context, email, passwordHash string) (Account, error) {
	var acct Account
	err := s.pool.QueryRow(ctx,
		`INSERT INTO accounts (email, password_hash)
		 VALUES ($1, $2)
		 RETURNING id, email, password_hash, created_at`,
		email, passwordHash,
	).Scan(&acct.ID, &acct.Email, &acct.PasswordHash, &acct.CreatedAt)
	if err != nil {
		return Account{}, fmt.Errorf("inserting account: %w", err)
	}
	return acct, nil
}

// GetByEmail fetches an account by email.
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (Account, error) {
	var acct Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM accounts WHERE email = $1`,
		email,
	).Scan(&acct.ID, &acct.Email, &acct.PasswordHash, &acct.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("account %q: %w", email, ErrAccountNotFound)
		}
		return Account{}, fmt.Errorf("getting account: %w", err)
	}
	return acct, nil
}
