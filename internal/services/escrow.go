package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/dealflow/backend/internal/models"
)

// The escrow engine is pure arithmetic over a deal's transaction ledger and
// milestone list. Summarize produces the figures both parties see; the
// release operations gate and append ledger entries. All amounts are cents.

// DealSummary is the payment read-model for a deal.
type DealSummary struct {
	ProjectPrice              int64 `json:"projectPrice"`
	InEscrow                  int64 `json:"inEscrow"`
	MilestonesPaidCount       int   `json:"milestonesPaidCount"`
	MilestonesPaidAmount      int64 `json:"milestonesPaidAmount"`
	MilestonesRemainingCount  int   `json:"milestonesRemainingCount"`
	MilestonesRemainingAmount int64 `json:"milestonesRemainingAmount"`
	TotalEarnings             int64 `json:"totalEarnings"`
}

// Summarize folds the deal's ledger and milestones into a DealSummary.
//
// The accounting rules, in order:
//  1. A cancelled deal keeps its project price and zeroes everything else.
//  2. Non-milestone escrow transactions add to inEscrow; non-milestone
//     releases (half or final) add to totalEarnings and offset inEscrow.
//  3. A milestone in flight (active, in_review, paid, revision_required)
//     adds amount+bonus to inEscrow. A paid-out milestone (completed, paid)
//     counts as paid, adds to totalEarnings and offsets inEscrow. Anything
//     not yet paid out (pending, proposed, active, in_review,
//     revision_required) counts as remaining. "Remaining" means not yet
//     paid, not "not yet escrowed", so in-flight milestones appear in both.
//  4. projectPrice = base + paid + remaining: milestone commitments grow the
//     project value beyond the base contracted amount.
//
// inEscrow and totalEarnings accumulate signed and are clamped at zero once,
// at the end, so the result does not depend on iteration order.
func Summarize(d *models.Deal) DealSummary {
	s := DealSummary{ProjectPrice: d.PaymentInfo.PaymentAmount}
	if d.Status == models.DealStatusCancelled {
		return s
	}

	var inEscrow, earnings int64
	for _, t := range d.PaymentInfo.Transactions {
		if t.MilestoneID != nil {
			continue
		}
		switch t.Type {
		case models.TransactionEscrow:
			inEscrow += t.PaymentAmount
		case models.TransactionReleaseHalf, models.TransactionReleaseFinal:
			earnings += t.PaymentAmount
			inEscrow -= t.PaymentAmount
		}
	}

	for i := range d.Milestones {
		m := &d.Milestones[i]
		total := m.Total()
		switch m.Status {
		case models.MilestoneStatusActive, models.MilestoneStatusInReview,
			models.MilestoneStatusPaid, models.MilestoneStatusRevisionRequired:
			inEscrow += total
		}
		switch m.Status {
		case models.MilestoneStatusCompleted, models.MilestoneStatusPaid:
			s.MilestonesPaidCount++
			s.MilestonesPaidAmount += total
			inEscrow -= total
			earnings += total
		}
		switch m.Status {
		case models.MilestoneStatusPending, models.MilestoneStatusProposed,
			models.MilestoneStatusActive, models.MilestoneStatusInReview,
			models.MilestoneStatusRevisionRequired:
			s.MilestonesRemainingCount++
			s.MilestonesRemainingAmount += total
		}
	}

	s.ProjectPrice = d.PaymentInfo.PaymentAmount + s.MilestonesPaidAmount + s.MilestonesRemainingAmount
	s.InEscrow = clampZero(inEscrow)
	s.TotalEarnings = clampZero(earnings)
	return s
}

// CanReleaseFirstHalf: the first-half release is a one-shot action available
// while the deal is accepted or content has been submitted for approval.
func CanReleaseFirstHalf(d *models.Deal) bool {
	if d.Status != models.DealStatusAccepted && d.Status != models.DealStatusContentSubmitted {
		return false
	}
	return !d.HasTransaction(models.TransactionReleaseHalf)
}

// CanReleaseFinal: the final release requires the first half to have been
// released already. This is a business rule, not a display rule.
func CanReleaseFinal(d *models.Deal) bool {
	return d.HasTransaction(models.TransactionReleaseHalf)
}

// ReleaseFirstHalf appends a release_half transaction for 50% of the base
// payment amount.
func ReleaseFirstHalf(d *models.Deal, now time.Time) (*models.Deal, error) {
	if !CanReleaseFirstHalf(d) {
		return nil, ErrInvalidTransition
	}
	out := cloneDeal(d)
	out.PaymentInfo.Transactions = append(out.PaymentInfo.Transactions, models.Transaction{
		TransactionID: uuid.New(),
		Type:          models.TransactionReleaseHalf,
		PaymentAmount: d.PaymentInfo.PaymentAmount / 2,
		CreatedAt:     now,
	})
	out.UpdatedAt = now
	return out, nil
}

// ReleaseFinal appends a release_final transaction for the unreleased
// remainder of the base amount and marks the completion payment issued.
func ReleaseFinal(d *models.Deal, now time.Time) (*models.Deal, error) {
	if !CanReleaseFinal(d) {
		return nil, ErrPrerequisiteNotMet
	}
	var released int64
	for _, t := range d.PaymentInfo.Transactions {
		if t.MilestoneID != nil {
			continue
		}
		if t.Type == models.TransactionReleaseHalf || t.Type == models.TransactionReleaseFinal {
			released += t.PaymentAmount
		}
	}
	out := cloneDeal(d)
	out.PaymentInfo.Transactions = append(out.PaymentInfo.Transactions, models.Transaction{
		TransactionID: uuid.New(),
		Type:          models.TransactionReleaseFinal,
		PaymentAmount: clampZero(d.PaymentInfo.PaymentAmount - released),
		CreatedAt:     now,
	})
	out.Status = models.DealStatusCompletionIssued
	out.UpdatedAt = now
	return out, nil
}

// FundEscrow appends a deal-level escrow transaction (not tied to any
// milestone) for the given amount.
func FundEscrow(d *models.Deal, amount int64, now time.Time) (*models.Deal, error) {
	if amount <= 0 {
		return nil, ErrValidation
	}
	if d.Status == models.DealStatusCancelled {
		return nil, ErrInvalidTransition
	}
	out := cloneDeal(d)
	out.PaymentInfo.Transactions = append(out.PaymentInfo.Transactions, models.Transaction{
		TransactionID: uuid.New(),
		Type:          models.TransactionEscrow,
		PaymentAmount: amount,
		CreatedAt:     now,
	})
	out.UpdatedAt = now
	return out, nil
}

func clampZero(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

func cloneDeal(d *models.Deal) *models.Deal {
	out := *d
	out.PaymentInfo.Transactions = make([]models.Transaction, len(d.PaymentInfo.Transactions))
	copy(out.PaymentInfo.Transactions, d.PaymentInfo.Transactions)
	out.Milestones = make([]models.Milestone, len(d.Milestones))
	copy(out.Milestones, d.Milestones)
	out.ProofSubmissions = make([]models.ProofSubmission, len(d.ProofSubmissions))
	copy(out.ProofSubmissions, d.ProofSubmissions)
	return &out
}
