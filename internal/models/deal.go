package models

import (
	"time"

	"github.com/google/uuid"
)

// Deal status enums. A deal is created when an offer is accepted.
const (
	DealStatusAccepted           = "Accepted"
	DealStatusInProcess          = "In-Process"
	DealStatusCancellation       = "Cancellation"
	DealStatusContentSubmitted   = "Content for Approval Submitted"
	DealStatusContentApproved    = "Content Approved"
	DealStatusFinalContentPosted = "Final Content Posted"
	DealStatusCompletionIssued   = "Completion Payment Issued"
	DealStatusCancelled          = "Cancelled"
)

// Payment transaction type enums.
const (
	TransactionEscrow       = "escrow"
	TransactionReleaseHalf  = "release_half"
	TransactionReleaseFinal = "release_final"
)

type Deal struct {
	ID               uuid.UUID         `json:"id"`
	DealNumber       string            `json:"dealNumber"`
	OfferID          uuid.UUID         `json:"offerId"`
	MarketerID       uuid.UUID         `json:"marketerId"`
	CreatorID        uuid.UUID         `json:"creatorId"`
	Status           string            `json:"status"`
	PaymentInfo      PaymentInfo       `json:"paymentInfo"`
	Milestones       []Milestone       `json:"milestones"`
	OfferContent     OfferContent      `json:"offerContent"`
	ProofSubmissions []ProofSubmission `json:"proofSubmissions"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

type PaymentInfo struct {
	PaymentAmount int64         `json:"paymentAmount"` // base contracted amount, cents
	Transactions  []Transaction `json:"transactions"`  // append-only ledger
}

type Transaction struct {
	TransactionID uuid.UUID  `json:"transactionId"`
	Type          string     `json:"type"` // escrow | release_half | release_final
	PaymentAmount int64      `json:"paymentAmount"`
	MilestoneID   *uuid.UUID `json:"milestoneId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type OfferContent struct {
	Feedback []string `json:"feedback,omitempty"`
}

// Proof submission status enums.
const (
	ProofStatusPendingReview    = "pending_review"
	ProofStatusApproved         = "approved"
	ProofStatusRevisionRequired = "revision_required"
)

// ProofSubmission is creator-submitted evidence of completed work awaiting
// marketer review. Final marks the submission whose approval closes the deal.
type ProofSubmission struct {
	ID          uuid.UUID `json:"id"`
	Attachments []string  `json:"attachments"`
	SubmittedAt time.Time `json:"submittedAt"`
	SubmittedBy string    `json:"submittedBy"`
	Final       bool      `json:"final,omitempty"`
	Status      string    `json:"status"`
	Feedback    []string  `json:"feedback,omitempty"`
}

// HasTransaction reports whether any ledger entry of the given type exists.
func (d *Deal) HasTransaction(txType string) bool {
	for _, t := range d.PaymentInfo.Transactions {
		if t.Type == txType {
			return true
		}
	}
	return false
}

// FindMilestone returns the milestone with the given ID and its index, or nil.
func (d *Deal) FindMilestone(id uuid.UUID) (*Milestone, int) {
	for i := range d.Milestones {
		if d.Milestones[i].ID == id {
			return &d.Milestones[i], i
		}
	}
	return nil, -1
}

// FindProof returns the proof submission with the given ID, or nil.
func (d *Deal) FindProof(id uuid.UUID) *ProofSubmission {
	for i := range d.ProofSubmissions {
		if d.ProofSubmissions[i].ID == id {
			return &d.ProofSubmissions[i]
		}
	}
	return nil
}
