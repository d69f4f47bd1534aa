package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/dealflow/backend/internal/models"
)

// Deal content/proof lifecycle. Proof submissions are created by the Creator
// and reviewed by the Marketer; approving the final proof is gated on the
// first-half escrow release having already occurred.

// SubmitProof appends a pending_review proof submission and moves the deal to
// Content for Approval Submitted.
func SubmitProof(d *models.Deal, attachments []string, final bool, now time.Time) (*models.Deal, error) {
	switch d.Status {
	case models.DealStatusAccepted, models.DealStatusInProcess,
		models.DealStatusContentSubmitted, models.DealStatusContentApproved:
	default:
		return nil, ErrInvalidTransition
	}
	if len(attachments) == 0 {
		return nil, ErrValidation
	}
	out := cloneDeal(d)
	out.ProofSubmissions = append(out.ProofSubmissions, models.ProofSubmission{
		ID:          uuid.New(),
		Attachments: append([]string(nil), attachments...),
		SubmittedAt: now,
		SubmittedBy: models.RoleCreator,
		Final:       final,
		Status:      models.ProofStatusPendingReview,
	})
	out.Status = models.DealStatusContentSubmitted
	out.UpdatedAt = now
	return out, nil
}

// ReviewProof resolves a pending proof. Approving the final proof requires
// the first-half release to exist; the failure is surfaced to the user
// rather than silently allowed.
func ReviewProof(d *models.Deal, proofID uuid.UUID, decision, feedback string, now time.Time) (*models.Deal, error) {
	proof := d.FindProof(proofID)
	if proof == nil {
		return nil, ErrValidation
	}
	if proof.Status != models.ProofStatusPendingReview {
		return nil, ErrInvalidTransition
	}
	if decision != models.ProofStatusApproved && decision != models.ProofStatusRevisionRequired {
		return nil, ErrValidation
	}
	if decision == models.ProofStatusApproved && proof.Final && !CanReleaseFinal(d) {
		return nil, ErrPrerequisiteNotMet
	}
	out := cloneDeal(d)
	updated := out.FindProof(proofID)
	updated.Status = decision
	if feedback != "" {
		updated.Feedback = append(updated.Feedback, feedback)
		out.OfferContent.Feedback = append(out.OfferContent.Feedback, feedback)
	}
	if decision == models.ProofStatusApproved {
		out.Status = models.DealStatusContentApproved
	}
	out.UpdatedAt = now
	return out, nil
}

// MarkFinalContentPosted records that the approved content went live.
func MarkFinalContentPosted(d *models.Deal, now time.Time) (*models.Deal, error) {
	if d.Status != models.DealStatusContentApproved {
		return nil, ErrInvalidTransition
	}
	out := cloneDeal(d)
	out.Status = models.DealStatusFinalContentPosted
	out.UpdatedAt = now
	return out, nil
}

// RequestCancellation opens a cancellation on an in-flight deal.
func RequestCancellation(d *models.Deal, now time.Time) (*models.Deal, error) {
	switch d.Status {
	case models.DealStatusCancelled, models.DealStatusCancellation,
		models.DealStatusCompletionIssued:
		return nil, ErrInvalidTransition
	}
	out := cloneDeal(d)
	out.Status = models.DealStatusCancellation
	out.UpdatedAt = now
	return out, nil
}

// ConfirmCancellation finalizes a pending cancellation.
func ConfirmCancellation(d *models.Deal, now time.Time) (*models.Deal, error) {
	if d.Status != models.DealStatusCancellation {
		return nil, ErrInvalidTransition
	}
	out := cloneDeal(d)
	out.Status = models.DealStatusCancelled
	out.UpdatedAt = now
	return out, nil
}
