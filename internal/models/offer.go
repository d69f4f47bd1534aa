package models

import (
	"time"

	"github.com/google/uuid"
)

// Party names as they appear in offer/deal documents and display statuses.
const (
	RoleCreator  = "Creator"
	RoleMarketer = "Marketer"
)

// Offer status enums. Rejected-Countered is the only status the counter chain
// re-enters; Accepted, Rejected and Cancelled are terminal.
const (
	OfferStatusDraft             = "Draft"
	OfferStatusSent              = "Sent"
	OfferStatusInReview          = "Offer in Review"
	OfferStatusRejected          = "Rejected"
	OfferStatusRejectedCountered = "Rejected-Countered"
	OfferStatusAccepted          = "Accepted"
	OfferStatusCancelled         = "Cancelled"
	OfferStatusDeleted           = "Deleted"
)

type Offer struct {
	ID                uuid.UUID  `json:"id"`
	MarketerID        uuid.UUID  `json:"marketerId"`
	CreatorID         uuid.UUID  `json:"creatorId"`
	OfferName         string     `json:"offerName"`
	Description       string     `json:"description"`
	ProposedAmount    int64      `json:"proposedAmount"` // cents
	Deliverables      []string   `json:"deliverables"`
	DesiredReviewDate *time.Time `json:"desiredReviewDate,omitempty"`
	DesiredPostDate   *time.Time `json:"desiredPostDate,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	Attachments       []string   `json:"attachments,omitempty"`
	Status            string     `json:"status"`
	Counters          []Counter  `json:"counters"`
	ViewedByCreator   bool       `json:"viewedByCreator"`
	ViewedByMarketer  bool       `json:"viewedByMarketer"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Counter is immutable once appended. The latest counter always determines
// current terms and which party must act next.
type Counter struct {
	CounterBy         string     `json:"counterBy"` // Creator | Marketer
	CounterAmount     int64      `json:"counterAmount"`
	CounterReviewDate *time.Time `json:"counterReviewDate,omitempty"`
	CounterPostDate   *time.Time `json:"counterPostDate,omitempty"`
	Description       string     `json:"description,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	Deliverables      []string   `json:"deliverables,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// LatestCounter returns the most recent counter, or nil when none exist.
func (o *Offer) LatestCounter() *Counter {
	if len(o.Counters) == 0 {
		return nil
	}
	return &o.Counters[len(o.Counters)-1]
}

// TerminalStatus reports whether the offer can no longer be acted on.
func (o *Offer) TerminalStatus() bool {
	switch o.Status {
	case OfferStatusAccepted, OfferStatusRejected, OfferStatusCancelled, OfferStatusDeleted:
		return true
	}
	return false
}
