package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealflow/backend/internal/models"
)

type DealRepo struct {
	pool *pgxpool.Pool
}

func NewDealRepo(pool *pgxpool.Pool) *DealRepo {
	return &DealRepo{pool: pool}
}

const dealColumns = `id, deal_number, offer_id, marketer_id, creator_id, status, payment_info, milestones, offer_content, proof_submissions, created_at, updated_at`

func (r *DealRepo) Create(ctx context.Context, d *models.Deal) error {
	paymentInfo, milestones, offerContent, proofs, err := marshalDealDocs(d)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO deals (id, deal_number, offer_id, marketer_id, creator_id, status, payment_info, milestones, offer_content, proof_submissions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, d.ID, d.DealNumber, d.OfferID, d.MarketerID, d.CreatorID, d.Status, paymentInfo, milestones, offerContent, proofs).Scan(&d.CreatedAt, &d.UpdatedAt)
}

// CreateTx inserts the deal inside the given transaction. Used when accepting
// an offer so the offer update and deal insert commit together.
func (r *DealRepo) CreateTx(ctx context.Context, tx pgx.Tx, d *models.Deal) error {
	paymentInfo, milestones, offerContent, proofs, err := marshalDealDocs(d)
	if err != nil {
		return err
	}
	return tx.QueryRow(ctx, `
		INSERT INTO deals (id, deal_number, offer_id, marketer_id, creator_id, status, payment_info, milestones, offer_content, proof_submissions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, d.ID, d.DealNumber, d.OfferID, d.MarketerID, d.CreatorID, d.Status, paymentInfo, milestones, offerContent, proofs).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *DealRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id)
	return scanDeal(row)
}

// GetByIDForUpdate locks the deal row for update. Call within a transaction.
func (r *DealRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Deal, error) {
	row := tx.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1 FOR UPDATE`, id)
	return scanDeal(row)
}

func (r *DealRepo) Update(ctx context.Context, d *models.Deal) error {
	paymentInfo, milestones, offerContent, proofs, err := marshalDealDocs(d)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE deals SET status = $2, payment_info = $3, milestones = $4, offer_content = $5, proof_submissions = $6, updated_at = now()
		WHERE id = $1
	`, d.ID, d.Status, paymentInfo, milestones, offerContent, proofs)
	return err
}

// UpdateTx persists the deal inside the given transaction.
func (r *DealRepo) UpdateTx(ctx context.Context, tx pgx.Tx, d *models.Deal) error {
	paymentInfo, milestones, offerContent, proofs, err := marshalDealDocs(d)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE deals SET status = $2, payment_info = $3, milestones = $4, offer_content = $5, proof_submissions = $6, updated_at = now()
		WHERE id = $1
	`, d.ID, d.Status, paymentInfo, milestones, offerContent, proofs)
	return err
}

func (r *DealRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM deals WHERE id = $1", id)
	return err
}

// ListByAccountID returns deals where the account is either party, newest first.
func (r *DealRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Deal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+dealColumns+` FROM deals
		WHERE marketer_id = $1 OR creator_id = $1
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

func (r *DealRepo) GetByOfferID(ctx context.Context, offerID uuid.UUID) (*models.Deal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE offer_id = $1`, offerID)
	return scanDeal(row)
}

func scanDeal(row rowScanner) (*models.Deal, error) {
	var d models.Deal
	var paymentInfo, milestones, offerContent, proofs []byte
	err := row.Scan(&d.ID, &d.DealNumber, &d.OfferID, &d.MarketerID, &d.CreatorID, &d.Status, &paymentInfo, &milestones, &offerContent, &proofs, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(paymentInfo, &d.PaymentInfo); err != nil {
		return nil, fmt.Errorf("decode deal payment_info: %w", err)
	}
	if err := json.Unmarshal(milestones, &d.Milestones); err != nil {
		return nil, fmt.Errorf("decode deal milestones: %w", err)
	}
	if err := json.Unmarshal(offerContent, &d.OfferContent); err != nil {
		return nil, fmt.Errorf("decode deal offer_content: %w", err)
	}
	if err := json.Unmarshal(proofs, &d.ProofSubmissions); err != nil {
		return nil, fmt.Errorf("decode deal proof_submissions: %w", err)
	}
	return &d, nil
}

func marshalDealDocs(d *models.Deal) (paymentInfo, milestones, offerContent, proofs []byte, err error) {
	if d.PaymentInfo.Transactions == nil {
		d.PaymentInfo.Transactions = []models.Transaction{}
	}
	if d.Milestones == nil {
		d.Milestones = []models.Milestone{}
	}
	if d.ProofSubmissions == nil {
		d.ProofSubmissions = []models.ProofSubmission{}
	}
	if paymentInfo, err = json.Marshal(d.PaymentInfo); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode deal payment_info: %w", err)
	}
	if milestones, err = json.Marshal(d.Milestones); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode deal milestones: %w", err)
	}
	if offerContent, err = json.Marshal(d.OfferContent); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode deal offer_content: %w", err)
	}
	if proofs, err = json.Marshal(d.ProofSubmissions); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode deal proof_submissions: %w", err)
	}
	return paymentInfo, milestones, offerContent, proofs, nil
}
