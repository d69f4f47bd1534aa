package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Service interface {
	PlaceEscrowHold(ctx context.Context, tx pgx.Tx, dealID uuid.UUID, milestoneID *uuid.UUID, marketerID uuid.UUID, amountCents int64) error
	ReleaseEscrow(ctx context.Context, dealID uuid.UUID, milestoneID *uuid.UUID, creatorID uuid.UUID, amountCents int64) error
	RefundEscrow(ctx context.Context, dealID uuid.UUID) error
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func (s *service) PlaceEscrowHold(ctx context.Context, tx pgx.Tx, dealID uuid.UUID, milestoneID *uuid.UUID, marketerID uuid.UUID, amountCents int64) error {
	return s.repo.PlaceEscrowHold(ctx, tx, dealID, milestoneID, marketerID, amountCents)
}

func (s *service) ReleaseEscrow(ctx context.Context, dealID uuid.UUID, milestoneID *uuid.UUID, creatorID uuid.UUID, amountCents int64) error {
	return s.repo.ReleaseEscrow(ctx, dealID, milestoneID, creatorID, amountCents)
}

func (s *service) RefundEscrow(ctx context.Context, dealID uuid.UUID) error {
	return s.repo.RefundEscrow(ctx, dealID)
}

// ErrInsufficientFunds is returned when the marketer's balance is too low for the escrow hold.
var ErrInsufficientFunds = errInsufficientFunds

// ErrNoHeldFunds is returned when a release targets a deal with nothing in escrow.
var ErrNoHeldFunds = errNoHeldFunds
