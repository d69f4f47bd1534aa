package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealflow/backend/internal/models"
)

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func (r *AccountRepo) Create(ctx context.Context, a *models.Account) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, email, name, company, password_hash, role, balance_cents, hold_cents, webhook_url, is_system_account)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, a.ID, a.Email, a.Name, a.Company, a.PasswordHash, a.Role, a.BalanceCents, a.HoldCents, a.WebhookURL, a.IsSystemAccount).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, company, password_hash, role, balance_cents, hold_cents, webhook_url, is_system_account, created_at, updated_at
		FROM accounts WHERE id = $1
	`, id).Scan(&a.ID, &a.Email, &a.Name, &a.Company, &a.PasswordHash, &a.Role, &a.BalanceCents, &a.HoldCents, &a.WebhookURL, &a.IsSystemAccount, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, company, password_hash, role, balance_cents, hold_cents, webhook_url, is_system_account, created_at, updated_at
		FROM accounts WHERE email = $1
	`, email).Scan(&a.ID, &a.Email, &a.Name, &a.Company, &a.PasswordHash, &a.Role, &a.BalanceCents, &a.HoldCents, &a.WebhookURL, &a.IsSystemAccount, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) Update(ctx context.Context, a *models.Account) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts SET email = $2, name = $3, company = $4, password_hash = $5, role = $6, balance_cents = $7, hold_cents = $8, webhook_url = $9, is_system_account = $10, updated_at = now()
		WHERE id = $1
	`, a.ID, a.Email, a.Name, a.Company, a.PasswordHash, a.Role, a.BalanceCents, a.HoldCents, a.WebhookURL, a.IsSystemAccount)
	return err
}

func (r *AccountRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM accounts WHERE id = $1", id)
	return err
}

func (r *AccountRepo) List(ctx context.Context) ([]*models.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, email, name, company, password_hash, role, balance_cents, hold_cents, webhook_url, is_system_account, created_at, updated_at
		FROM accounts ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &a.Company, &a.PasswordHash, &a.Role, &a.BalanceCents, &a.HoldCents, &a.WebhookURL, &a.IsSystemAccount, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}

// ListByRole returns accounts with the given role, newest first.
func (r *AccountRepo) ListByRole(ctx context.Context, role string) ([]*models.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, email, name, company, password_hash, role, balance_cents, hold_cents, webhook_url, is_system_account, created_at, updated_at
		FROM accounts WHERE role = $1 ORDER BY created_at DESC
	`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &a.Company, &a.PasswordHash, &a.Role, &a.BalanceCents, &a.HoldCents, &a.WebhookURL, &a.IsSystemAccount, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}

// GetByIDForUpdate locks the account row for update. Call within a transaction.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error) {
	var a models.Account
	err := tx.QueryRow(ctx, `
		SELECT id, email, name, company, password_hash, role, balance_cents, hold_cents, webhook_url, is_system_account, created_at, updated_at
		FROM accounts WHERE id = $1 FOR UPDATE
	`, id).Scan(&a.ID, &a.Email, &a.Name, &a.Company, &a.PasswordHash, &a.Role, &a.BalanceCents, &a.HoldCents, &a.WebhookURL, &a.IsSystemAccount, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DeductBalance atomically deducts amountCents if the balance covers it.
// Returns the new balance or a no-rows error when funds are insufficient.
func (r *AccountRepo) DeductBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amountCents int64) (newBalance int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET balance_cents = balance_cents - $1, updated_at = now()
		WHERE id = $2 AND balance_cents >= $1
		RETURNING balance_cents
	`, amountCents, id).Scan(&newBalance)
	return newBalance, err
}

// AddBalance adds amountCents to the account and returns the new balance.
func (r *AccountRepo) AddBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amountCents int64) (newBalance int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET balance_cents = balance_cents + $1, updated_at = now()
		WHERE id = $2
		RETURNING balance_cents
	`, amountCents, id).Scan(&newBalance)
	return newBalance, err
}
