package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/dealflow/backend/internal/models"
)

// Milestone lifecycle:
//
//	pending -(fund)-> active -(submit)-> in_review -(approve)-> completed
//	                                        |(request revision)
//	                                        v
//	                              revision_required -(resubmit)-> in_review
//
// Funding sets fundedAt and appends a milestone-tied escrow transaction to
// the deal ledger. Edit and delete are permitted only before funding.

// MilestoneEdit carries the editable milestone fields. Nil pointers leave the
// field unchanged.
type MilestoneEdit struct {
	Name        *string    `json:"name,omitempty"`
	Amount      *int64     `json:"amount,omitempty"`
	Bonus       *int64     `json:"bonus,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Description *string    `json:"description,omitempty"`
}

// ValidateMilestoneAmount enforces the minimum milestone amount before any
// state change.
func ValidateMilestoneAmount(amount int64) error {
	if amount < models.MinMilestoneAmount {
		return ErrValidation
	}
	return nil
}

// NewMilestone builds a pending milestone after validating its fields.
func NewMilestone(name string, amount, bonus int64, dueDate *time.Time, description string) (*models.Milestone, error) {
	if name == "" {
		return nil, ErrValidation
	}
	if err := ValidateMilestoneAmount(amount); err != nil {
		return nil, err
	}
	return &models.Milestone{
		ID:          uuid.New(),
		Name:        name,
		Amount:      amount,
		Bonus:       bonus,
		DueDate:     dueDate,
		Description: description,
		Status:      models.MilestoneStatusPending,
	}, nil
}

// CanModifyMilestone: edit and delete are allowed only while fundedAt is
// unset, regardless of status.
func CanModifyMilestone(m *models.Milestone) bool {
	return !m.Funded()
}

// EditMilestone applies the edit to an unfunded milestone.
func EditMilestone(m *models.Milestone, edit MilestoneEdit) (*models.Milestone, error) {
	if !CanModifyMilestone(m) {
		return nil, ErrForbidden
	}
	out := cloneMilestone(m)
	if edit.Name != nil {
		if *edit.Name == "" {
			return nil, ErrValidation
		}
		out.Name = *edit.Name
	}
	if edit.Amount != nil {
		if err := ValidateMilestoneAmount(*edit.Amount); err != nil {
			return nil, err
		}
		out.Amount = *edit.Amount
	}
	if edit.Bonus != nil {
		out.Bonus = *edit.Bonus
	}
	if edit.DueDate != nil {
		out.DueDate = edit.DueDate
	}
	if edit.Description != nil {
		out.Description = *edit.Description
	}
	return out, nil
}

// DeleteMilestone checks the delete guard; the caller removes the row.
func DeleteMilestone(m *models.Milestone) error {
	if !CanModifyMilestone(m) {
		return ErrForbidden
	}
	return nil
}

// FundMilestone escrows a pending milestone: sets fundedAt, activates it and
// appends a milestone-tied escrow transaction. A deal in Accepted moves to
// In-Process on its first funding.
func FundMilestone(d *models.Deal, milestoneID uuid.UUID, now time.Time) (*models.Deal, error) {
	m, idx := d.FindMilestone(milestoneID)
	if m == nil {
		return nil, ErrValidation
	}
	if m.Status != models.MilestoneStatusPending {
		return nil, ErrInvalidTransition
	}
	out := cloneDeal(d)
	fundedAt := now
	out.Milestones[idx].FundedAt = &fundedAt
	out.Milestones[idx].Status = models.MilestoneStatusActive
	msID := milestoneID
	out.PaymentInfo.Transactions = append(out.PaymentInfo.Transactions, models.Transaction{
		TransactionID: uuid.New(),
		Type:          models.TransactionEscrow,
		PaymentAmount: m.Total(),
		MilestoneID:   &msID,
		CreatedAt:     now,
	})
	if out.Status == models.DealStatusAccepted {
		out.Status = models.DealStatusInProcess
	}
	out.UpdatedAt = now
	return out, nil
}

// SubmitMilestoneWork appends a deliverable block and moves the milestone to
// in_review. Allowed from active/paid or after a revision request.
func SubmitMilestoneWork(m *models.Milestone, deliverable models.MilestoneDeliverable, now time.Time) (*models.Milestone, error) {
	switch m.Status {
	case models.MilestoneStatusActive, models.MilestoneStatusPaid, models.MilestoneStatusRevisionRequired:
	default:
		return nil, ErrInvalidTransition
	}
	out := cloneMilestone(m)
	deliverable.SubmittedAt = now
	out.Deliverables = append(out.Deliverables, deliverable)
	out.Status = models.MilestoneStatusInReview
	return out, nil
}

// ReviewMilestone resolves an in_review milestone. Approval completes it and
// sets completedAt once; a revision request records feedback and sends it
// back to the creator.
func ReviewMilestone(m *models.Milestone, decision, feedback, reviewer string, now time.Time) (*models.Milestone, error) {
	if m.Status != models.MilestoneStatusInReview {
		return nil, ErrInvalidTransition
	}
	out := cloneMilestone(m)
	switch decision {
	case models.MilestoneStatusApproved:
		out.Status = models.MilestoneStatusCompleted
		if out.CompletedAt == nil {
			completedAt := now
			out.CompletedAt = &completedAt
		}
	case models.MilestoneStatusRevisionRequired:
		out.Status = models.MilestoneStatusRevisionRequired
	default:
		return nil, ErrValidation
	}
	if feedback != "" {
		out.Feedback = append(out.Feedback, models.MilestoneFeedback{
			Comment:   feedback,
			By:        reviewer,
			CreatedAt: now,
		})
	}
	return out, nil
}

func cloneMilestone(m *models.Milestone) *models.Milestone {
	out := *m
	out.Deliverables = make([]models.MilestoneDeliverable, len(m.Deliverables))
	copy(out.Deliverables, m.Deliverables)
	out.Feedback = make([]models.MilestoneFeedback, len(m.Feedback))
	copy(out.Feedback, m.Feedback)
	return &out
}
