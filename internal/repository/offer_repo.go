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

type OfferRepo struct {
	pool *pgxpool.Pool
}

func NewOfferRepo(pool *pgxpool.Pool) *OfferRepo {
	return &OfferRepo{pool: pool}
}

func (r *OfferRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const offerColumns = `id, marketer_id, creator_id, offer_name, description, proposed_amount, deliverables, desired_review_date, desired_post_date, notes, attachments, status, counters, viewed_by_creator, viewed_by_marketer, created_at, updated_at`

func (r *OfferRepo) Create(ctx context.Context, o *models.Offer) error {
	deliverables, counters, attachments, err := marshalOfferDocs(o)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO offers (id, marketer_id, creator_id, offer_name, description, proposed_amount, deliverables, desired_review_date, desired_post_date, notes, attachments, status, counters, viewed_by_creator, viewed_by_marketer)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`, o.ID, o.MarketerID, o.CreatorID, o.OfferName, o.Description, o.ProposedAmount, deliverables, o.DesiredReviewDate, o.DesiredPostDate, o.Notes, attachments, o.Status, counters, o.ViewedByCreator, o.ViewedByMarketer).Scan(&o.CreatedAt, &o.UpdatedAt)
}

func (r *OfferRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id)
	return scanOffer(row)
}

func (r *OfferRepo) Update(ctx context.Context, o *models.Offer) error {
	deliverables, counters, attachments, err := marshalOfferDocs(o)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE offers SET marketer_id = $2, creator_id = $3, offer_name = $4, description = $5, proposed_amount = $6, deliverables = $7, desired_review_date = $8, desired_post_date = $9, notes = $10, attachments = $11, status = $12, counters = $13, viewed_by_creator = $14, viewed_by_marketer = $15, updated_at = now()
		WHERE id = $1
	`, o.ID, o.MarketerID, o.CreatorID, o.OfferName, o.Description, o.ProposedAmount, deliverables, o.DesiredReviewDate, o.DesiredPostDate, o.Notes, attachments, o.Status, counters, o.ViewedByCreator, o.ViewedByMarketer)
	return err
}

// UpdateTx persists the offer inside the given transaction.
func (r *OfferRepo) UpdateTx(ctx context.Context, tx pgx.Tx, o *models.Offer) error {
	deliverables, counters, attachments, err := marshalOfferDocs(o)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE offers SET marketer_id = $2, creator_id = $3, offer_name = $4, description = $5, proposed_amount = $6, deliverables = $7, desired_review_date = $8, desired_post_date = $9, notes = $10, attachments = $11, status = $12, counters = $13, viewed_by_creator = $14, viewed_by_marketer = $15, updated_at = now()
		WHERE id = $1
	`, o.ID, o.MarketerID, o.CreatorID, o.OfferName, o.Description, o.ProposedAmount, deliverables, o.DesiredReviewDate, o.DesiredPostDate, o.Notes, attachments, o.Status, counters, o.ViewedByCreator, o.ViewedByMarketer)
	return err
}

func (r *OfferRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM offers WHERE id = $1", id)
	return err
}

// ListByAccountID returns offers where the account is either party, newest first.
func (r *OfferRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Offer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+offerColumns+` FROM offers
		WHERE marketer_id = $1 OR creator_id = $1
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (*models.Offer, error) {
	var o models.Offer
	var deliverables, counters, attachments []byte
	err := row.Scan(&o.ID, &o.MarketerID, &o.CreatorID, &o.OfferName, &o.Description, &o.ProposedAmount, &deliverables, &o.DesiredReviewDate, &o.DesiredPostDate, &o.Notes, &attachments, &o.Status, &counters, &o.ViewedByCreator, &o.ViewedByMarketer, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(deliverables, &o.Deliverables); err != nil {
		return nil, fmt.Errorf("decode offer deliverables: %w", err)
	}
	if err := json.Unmarshal(counters, &o.Counters); err != nil {
		return nil, fmt.Errorf("decode offer counters: %w", err)
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &o.Attachments); err != nil {
			return nil, fmt.Errorf("decode offer attachments: %w", err)
		}
	}
	return &o, nil
}

func marshalOfferDocs(o *models.Offer) (deliverables, counters, attachments []byte, err error) {
	if o.Deliverables == nil {
		o.Deliverables = []string{}
	}
	if o.Counters == nil {
		o.Counters = []models.Counter{}
	}
	if deliverables, err = json.Marshal(o.Deliverables); err != nil {
		return nil, nil, nil, fmt.Errorf("encode offer deliverables: %w", err)
	}
	if counters, err = json.Marshal(o.Counters); err != nil {
		return nil, nil, nil, fmt.Errorf("encode offer counters: %w", err)
	}
	if attachments, err = json.Marshal(o.Attachments); err != nil {
		return nil, nil, nil, fmt.Errorf("encode offer attachments: %w", err)
	}
	return deliverables, counters, attachments, nil
}
