package directory

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CreatorProfile is the public listing marketers browse when sourcing deals.
type CreatorProfile struct {
	ID                 uuid.UUID
	AccountID          uuid.UUID
	DisplayName        string
	Slug               string
	Bio                string
	Niches             []string
	Platforms          json.RawMessage
	FollowerCount      int32
	MinDealAmountCents int64
	Status             string
	CompletedDeals     int32
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type CreateParams struct {
	AccountID          uuid.UUID
	DisplayName        string
	Slug               string
	Bio                string
	Niches             []string
	Platforms          json.RawMessage
	FollowerCount      int32
	MinDealAmountCents int64
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (*CreatorProfile, error) {
	var id uuid.UUID
	var status string
	var completedDeals int32
	row := r.pool.QueryRow(ctx, `
		INSERT INTO creator_profiles (
			account_id, display_name, slug, bio, niches, platforms,
			follower_count, min_deal_amount_cents, status, completed_deals
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'DRAFT', 0)
		RETURNING id, status, completed_deals
	`, p.AccountID, p.DisplayName, p.Slug, p.Bio, p.Niches, p.Platforms,
		p.FollowerCount, p.MinDealAmountCents)
	if err := row.Scan(&id, &status, &completedDeals); err != nil {
		return nil, err
	}
	return &CreatorProfile{
		ID:                 id,
		AccountID:          p.AccountID,
		DisplayName:        p.DisplayName,
		Slug:               p.Slug,
		Bio:                p.Bio,
		Niches:             p.Niches,
		Platforms:          p.Platforms,
		FollowerCount:      p.FollowerCount,
		MinDealAmountCents: p.MinDealAmountCents,
		Status:             status,
		CompletedDeals:     completedDeals,
	}, nil
}

// Publish flips the profile to PUBLISHED. Only the owner may publish.
func (r *Repository) Publish(ctx context.Context, accountID, profileID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE creator_profiles SET status = 'PUBLISHED', updated_at = now()
		WHERE id = $1 AND account_id = $2
	`, profileID, accountID)
	return err
}

func (r *Repository) GetBySlug(ctx context.Context, slug string) (*CreatorProfile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, account_id, display_name, slug, bio, niches, platforms,
		       follower_count, min_deal_amount_cents, status, completed_deals
		FROM creator_profiles WHERE slug = $1
	`, slug)
	var p CreatorProfile
	err := row.Scan(&p.ID, &p.AccountID, &p.DisplayName, &p.Slug, &p.Bio, &p.Niches,
		&p.Platforms, &p.FollowerCount, &p.MinDealAmountCents, &p.Status, &p.CompletedDeals)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPublished returns published profiles, optionally filtered by niche.
func (r *Repository) ListPublished(ctx context.Context, niche string) ([]*CreatorProfile, error) {
	query := `
		SELECT id, account_id, display_name, slug, bio, niches, platforms,
		       follower_count, min_deal_amount_cents, status, completed_deals
		FROM creator_profiles
		WHERE status = 'PUBLISHED'
	`
	args := []any{}
	if niche != "" {
		query += ` AND $1 = ANY(niches)`
		args = append(args, niche)
	}
	query += ` ORDER BY follower_count DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*CreatorProfile
	for rows.Next() {
		var p CreatorProfile
		if err := rows.Scan(&p.ID, &p.AccountID, &p.DisplayName, &p.Slug, &p.Bio, &p.Niches,
			&p.Platforms, &p.FollowerCount, &p.MinDealAmountCents, &p.Status, &p.CompletedDeals); err != nil {
			return nil, err
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}
