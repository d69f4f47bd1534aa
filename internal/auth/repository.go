package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new account and returns the created Account.
func (r *Repository) Create(ctx context.Context, email, passwordHash, displayName, company, role string) (*Account, error) {
	var a Account
	row := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (email, password_hash, name, company, role, is_system_account)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING id, balance_cents, hold_cents
	`, email, passwordHash, displayName, company, role)
	if err := row.Scan(&a.ID, &a.BalanceCents, &a.HoldCents); err != nil {
		return nil, err
	}
	a.Email = email
	a.DisplayName = displayName
	a.Company = company
	a.Role = role
	return &a, nil
}

// GetByEmail returns the account and password hash for login. Returns nil if not found.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Account, string, error) {
	var a Account
	var passwordHash string
	var name, company *string
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, name, company, role, balance_cents, hold_cents, password_hash
		FROM accounts WHERE email = $1
	`, email)
	if err := row.Scan(&a.ID, &a.Email, &name, &company, &a.Role, &a.BalanceCents, &a.HoldCents, &passwordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if name != nil {
		a.DisplayName = *name
	}
	if company != nil {
		a.Company = *company
	}
	return &a, passwordHash, nil
}
