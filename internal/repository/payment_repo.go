package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealflow/backend/internal/models"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

func (r *PaymentRepo) Create(ctx context.Context, p *models.PaymentLedger) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO payment_ledger (id, account_id, deal_id, milestone_id, entry_type, amount, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, p.ID, p.AccountID, p.DealID, p.MilestoneID, p.EntryType, p.Amount, p.BalanceAfter).Scan(&p.CreatedAt)
}

// CreateTx inserts a ledger entry inside the given transaction.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx pgx.Tx, p *models.PaymentLedger) error {
	return tx.QueryRow(ctx, `
		INSERT INTO payment_ledger (id, account_id, deal_id, milestone_id, entry_type, amount, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, p.ID, p.AccountID, p.DealID, p.MilestoneID, p.EntryType, p.Amount, p.BalanceAfter).Scan(&p.CreatedAt)
}

func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentLedger, error) {
	var p models.PaymentLedger
	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, deal_id, milestone_id, entry_type, amount, balance_after, created_at
		FROM payment_ledger WHERE id = $1
	`, id).Scan(&p.ID, &p.AccountID, &p.DealID, &p.MilestoneID, &p.EntryType, &p.Amount, &p.BalanceAfter, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.PaymentLedger, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, deal_id, milestone_id, entry_type, amount, balance_after, created_at
		FROM payment_ledger WHERE account_id = $1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.PaymentLedger
	for rows.Next() {
		var p models.PaymentLedger
		if err := rows.Scan(&p.ID, &p.AccountID, &p.DealID, &p.MilestoneID, &p.EntryType, &p.Amount, &p.BalanceAfter, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}

func (r *PaymentRepo) ListByDealID(ctx context.Context, dealID uuid.UUID) ([]*models.PaymentLedger, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, deal_id, milestone_id, entry_type, amount, balance_after, created_at
		FROM payment_ledger WHERE deal_id = $1 ORDER BY created_at DESC
	`, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.PaymentLedger
	for rows.Next() {
		var p models.PaymentLedger
		if err := rows.Scan(&p.ID, &p.AccountID, &p.DealID, &p.MilestoneID, &p.EntryType, &p.Amount, &p.BalanceAfter, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}
