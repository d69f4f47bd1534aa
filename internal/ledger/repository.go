package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealflow/backend/internal/models"
)

var errInsufficientFunds = errors.New("insufficient funds")
var errNoHeldFunds = errors.New("no held funds for deal")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PlaceEscrowHold runs inside the caller's transaction. It:
// a) Verifies marketer balance_cents >= amountCents (via atomic UPDATE with condition)
// b) Deducts balance_cents and adds to hold_cents on the marketer account
// c) Inserts an ESCROW_HOLD entry into payment_ledger
// d) Inserts a record into deal_escrows
// milestoneID is nil for deal-level escrow; set for milestone funding.
func (r *Repository) PlaceEscrowHold(ctx context.Context, tx pgx.Tx, dealID uuid.UUID, milestoneID *uuid.UUID, marketerID uuid.UUID, amountCents int64) error {
	var balanceAfter int64
	err := tx.QueryRow(ctx, `
		UPDATE accounts
		SET balance_cents = balance_cents - $1, hold_cents = hold_cents + $1, updated_at = now()
		WHERE id = $2 AND balance_cents >= $1
		RETURNING balance_cents
	`, amountCents, marketerID).Scan(&balanceAfter)
	if errors.Is(err, pgx.ErrNoRows) {
		return errInsufficientFunds
	}
	if err != nil {
		return err
	}
	var holdEntryID uuid.UUID
	row := tx.QueryRow(ctx, `
		INSERT INTO payment_ledger (id, account_id, deal_id, milestone_id, entry_type, amount, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, uuid.New(), marketerID, dealID, milestoneID, models.LedgerEntryEscrowHold, -amountCents, balanceAfter)
	if err := row.Scan(&holdEntryID); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO deal_escrows (id, deal_id, milestone_id, marketer_id, held_cents, released_cents, status, hold_entry_id)
		VALUES ($1, $2, $3, $4, $5, 0, 'HELD', $6)
	`, uuid.New(), dealID, milestoneID, marketerID, amountCents, holdEntryID)
	return err
}

// ReleaseEscrow runs in its own transaction: pays the creator amountCents out
// of the deal's held funds. Partial releases are allowed; the hold settles
// once fully released.
func (r *Repository) ReleaseEscrow(ctx context.Context, dealID uuid.UUID, milestoneID *uuid.UUID, creatorID uuid.UUID, amountCents int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var escrowID, marketerID uuid.UUID
	var heldCents, releasedCents int64
	row := tx.QueryRow(ctx, `
		SELECT id, marketer_id, held_cents, released_cents FROM deal_escrows
		WHERE deal_id = $1 AND milestone_id IS NOT DISTINCT FROM $2 AND status = 'HELD'
		FOR UPDATE
	`, dealID, milestoneID)
	if err := row.Scan(&escrowID, &marketerID, &heldCents, &releasedCents); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errNoHeldFunds
		}
		return err
	}
	if heldCents-releasedCents < amountCents {
		return errInsufficientFunds
	}

	var creatorBalance int64
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET balance_cents = balance_cents + $1, updated_at = now()
		WHERE id = $2
		RETURNING balance_cents
	`, amountCents, creatorID).Scan(&creatorBalance)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE accounts SET hold_cents = hold_cents - $1, updated_at = now() WHERE id = $2
	`, amountCents, marketerID)
	if err != nil {
		return err
	}

	var releaseEntryID uuid.UUID
	row = tx.QueryRow(ctx, `
		INSERT INTO payment_ledger (id, account_id, deal_id, milestone_id, entry_type, amount, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, uuid.New(), creatorID, dealID, milestoneID, models.LedgerEntryEscrowRelease, amountCents, creatorBalance)
	if err := row.Scan(&releaseEntryID); err != nil {
		return err
	}

	status := "HELD"
	if releasedCents+amountCents >= heldCents {
		status = "SETTLED"
	}
	_, err = tx.Exec(ctx, `
		UPDATE deal_escrows SET released_cents = released_cents + $1, status = $2, release_entry_id = $3 WHERE id = $4
	`, amountCents, status, releaseEntryID, escrowID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RefundEscrow returns all remaining held funds for the deal to the marketer
// (e.g. the deal was cancelled).
func (r *Repository) RefundEscrow(ctx context.Context, dealID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, milestone_id, marketer_id, held_cents - released_cents FROM deal_escrows
		WHERE deal_id = $1 AND status = 'HELD'
		FOR UPDATE
	`, dealID)
	if err != nil {
		return err
	}
	type hold struct {
		id          uuid.UUID
		milestoneID *uuid.UUID
		marketerID  uuid.UUID
		remaining   int64
	}
	var holds []hold
	for rows.Next() {
		var h hold
		if err := rows.Scan(&h.id, &h.milestoneID, &h.marketerID, &h.remaining); err != nil {
			rows.Close()
			return err
		}
		holds = append(holds, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, h := range holds {
		var balanceAfter int64
		err = tx.QueryRow(ctx, `
			UPDATE accounts SET hold_cents = hold_cents - $1, balance_cents = balance_cents + $1, updated_at = now()
			WHERE id = $2
			RETURNING balance_cents
		`, h.remaining, h.marketerID).Scan(&balanceAfter)
		if err != nil {
			return err
		}
		var refundEntryID uuid.UUID
		row := tx.QueryRow(ctx, `
			INSERT INTO payment_ledger (id, account_id, deal_id, milestone_id, entry_type, amount, balance_after)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, uuid.New(), h.marketerID, dealID, h.milestoneID, models.LedgerEntryEscrowRefund, h.remaining, balanceAfter)
		if err := row.Scan(&refundEntryID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE deal_escrows SET status = 'REFUNDED', release_entry_id = $1 WHERE id = $2
		`, refundEntryID, h.id)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
