package models

import (
	"time"

	"github.com/google/uuid"
)

// Milestone status enums. proposed appears in legacy documents and is treated
// like pending for the remaining/paid accounting.
const (
	MilestoneStatusPending          = "pending"
	MilestoneStatusProposed         = "proposed"
	MilestoneStatusActive           = "active"
	MilestoneStatusPaid             = "paid"
	MilestoneStatusInReview         = "in_review"
	MilestoneStatusApproved         = "approved"
	MilestoneStatusRevisionRequired = "revision_required"
	MilestoneStatusCompleted        = "completed"
)

// MinMilestoneAmount is the smallest amount a milestone may carry, in cents.
const MinMilestoneAmount int64 = 100_00

type Milestone struct {
	ID           uuid.UUID              `json:"id"`
	Name         string                 `json:"name"`
	Amount       int64                  `json:"amount"` // cents
	Bonus        int64                  `json:"bonus"`  // cents
	DueDate      *time.Time             `json:"dueDate,omitempty"`
	Description  string                 `json:"description,omitempty"`
	Status       string                 `json:"status"`
	Deliverables []MilestoneDeliverable `json:"deliverables,omitempty"`
	Feedback     []MilestoneFeedback    `json:"feedback,omitempty"`
	FundedAt     *time.Time             `json:"fundedAt,omitempty"`
	CompletedAt  *time.Time             `json:"completedAt,omitempty"`
}

// MilestoneDeliverable is one submission block of creator work.
type MilestoneDeliverable struct {
	Files       []string  `json:"files,omitempty"`
	Content     string    `json:"content,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
	SubmittedBy string    `json:"submittedBy"`
}

type MilestoneFeedback struct {
	Comment   string    `json:"comment"`
	By        string    `json:"by"`
	CreatedAt time.Time `json:"createdAt"`
}

// Total is the milestone's full payout value (amount plus bonus).
func (m *Milestone) Total() int64 {
	return m.Amount + m.Bonus
}

// Funded reports whether escrow funding has occurred for this milestone.
// Edit and delete are disallowed once funded.
func (m *Milestone) Funded() bool {
	return m.FundedAt != nil
}
