package services

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dealflow/backend/internal/models"
)

// The negotiation engine is pure: every operation takes an offer document and
// returns a new document (plus a typed error for business-rule violations).
// Persistence and notification are the caller's problem.

// Terms is the effective set of deal terms: the latest counter's fields with
// field-by-field fallback to the original offer.
type Terms struct {
	Amount       int64      `json:"amount"`
	ReviewDate   *time.Time `json:"reviewDate,omitempty"`
	PostDate     *time.Time `json:"postDate,omitempty"`
	Description  string     `json:"description"`
	Notes        string     `json:"notes,omitempty"`
	Deliverables []string   `json:"deliverables"`
	Changed      TermChanges `json:"changed"`
}

// TermChanges flags which fields of the latest counter differ from the
// ORIGINAL offer, not from the previous counter. This is the "Change
// Requested" diff shown to the user.
type TermChanges struct {
	Amount       bool `json:"amount"`
	ReviewDate   bool `json:"reviewDate"`
	PostDate     bool `json:"postDate"`
	Description  bool `json:"description"`
	Notes        bool `json:"notes"`
	Deliverables bool `json:"deliverables"`
}

// Permissions describes what the viewing party may do with an offer.
type Permissions struct {
	CanAct      bool `json:"canAct"`
	IsReviewing bool `json:"isReviewing"`
}

// CounterTerms is the input for appending a counter.
type CounterTerms struct {
	Amount       int64      `json:"counterAmount"`
	ReviewDate   *time.Time `json:"counterReviewDate,omitempty"`
	PostDate     *time.Time `json:"counterPostDate,omitempty"`
	Description  string     `json:"description,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	Deliverables []string   `json:"deliverables,omitempty"`
}

// CurrentTerms resolves the offer's effective terms. Each counter field falls
// back to the original offer field when the counter left it unset.
func CurrentTerms(o *models.Offer) Terms {
	t := Terms{
		Amount:       o.ProposedAmount,
		ReviewDate:   o.DesiredReviewDate,
		PostDate:     o.DesiredPostDate,
		Description:  o.Description,
		Notes:        o.Notes,
		Deliverables: o.Deliverables,
	}
	c := o.LatestCounter()
	if c == nil {
		return t
	}
	if c.CounterAmount != 0 {
		t.Amount = c.CounterAmount
	}
	if c.CounterReviewDate != nil {
		t.ReviewDate = c.CounterReviewDate
	}
	if c.CounterPostDate != nil {
		t.PostDate = c.CounterPostDate
	}
	if c.Description != "" {
		t.Description = c.Description
	}
	if c.Notes != "" {
		t.Notes = c.Notes
	}
	if len(c.Deliverables) > 0 {
		t.Deliverables = c.Deliverables
	}
	t.Changed = TermChanges{
		Amount:       t.Amount != o.ProposedAmount,
		ReviewDate:   !equalTime(t.ReviewDate, o.DesiredReviewDate),
		PostDate:     !equalTime(t.PostDate, o.DesiredPostDate),
		Description:  t.Description != o.Description,
		Notes:        t.Notes != o.Notes,
		Deliverables: !equalStrings(t.Deliverables, o.Deliverables),
	}
	return t
}

// ActionPermissions derives whose turn it is. With no counters only the
// Creator may act on a marketer-issued offer; otherwise the party that did
// NOT author the latest counter acts next. Terminal offers permit nobody.
func ActionPermissions(o *models.Offer, viewerRole string) Permissions {
	p := Permissions{IsReviewing: o.Status == models.OfferStatusInReview}
	if o.TerminalStatus() {
		return p
	}
	if c := o.LatestCounter(); c != nil {
		p.CanAct = viewerRole != c.CounterBy
	} else {
		p.CanAct = viewerRole == models.RoleCreator
	}
	return p
}

// AcceptOffer marks the offer accepted and produces the deal from its current
// terms. Repeated attempts against a terminal offer never mutate state.
func AcceptOffer(o *models.Offer, viewerRole string, now time.Time) (*models.Offer, *models.Deal, error) {
	if err := guardAct(o, viewerRole); err != nil {
		return nil, nil, err
	}
	out := cloneOffer(o)
	out.Status = models.OfferStatusAccepted
	out.UpdatedAt = now

	terms := CurrentTerms(o)
	deal := &models.Deal{
		ID:         uuid.New(),
		DealNumber: newDealNumber(),
		OfferID:    o.ID,
		MarketerID: o.MarketerID,
		CreatorID:  o.CreatorID,
		Status:     models.DealStatusAccepted,
		PaymentInfo: models.PaymentInfo{
			PaymentAmount: terms.Amount,
			Transactions:  []models.Transaction{},
		},
		Milestones:       []models.Milestone{},
		ProofSubmissions: []models.ProofSubmission{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return out, deal, nil
}

// CounterOffer appends an immutable counter authored by the viewer. New terms
// must be re-viewed by the other party, so both viewed flags reset.
func CounterOffer(o *models.Offer, viewerRole string, terms CounterTerms, now time.Time) (*models.Offer, error) {
	if err := guardAct(o, viewerRole); err != nil {
		return nil, err
	}
	out := cloneOffer(o)
	out.Counters = append(out.Counters, models.Counter{
		CounterBy:         viewerRole,
		CounterAmount:     terms.Amount,
		CounterReviewDate: terms.ReviewDate,
		CounterPostDate:   terms.PostDate,
		Description:       terms.Description,
		Notes:             terms.Notes,
		Deliverables:      terms.Deliverables,
		CreatedAt:         now,
	})
	out.Status = models.OfferStatusRejectedCountered
	out.ViewedByCreator = false
	out.ViewedByMarketer = false
	out.UpdatedAt = now
	return out, nil
}

// RejectOffer moves the offer to its terminal Rejected status.
func RejectOffer(o *models.Offer, viewerRole string, now time.Time) (*models.Offer, error) {
	if err := guardAct(o, viewerRole); err != nil {
		return nil, err
	}
	out := cloneOffer(o)
	out.Status = models.OfferStatusRejected
	out.UpdatedAt = now
	return out, nil
}

// MarkOfferInReview is a marketer-only action. Idempotent: a second call is a
// no-op rather than an error (callers disable re-invocation in the UI).
func MarkOfferInReview(o *models.Offer, viewerRole string, now time.Time) (*models.Offer, error) {
	if viewerRole != models.RoleMarketer {
		return nil, ErrForbidden
	}
	if o.TerminalStatus() {
		return nil, ErrInvalidTransition
	}
	out := cloneOffer(o)
	if out.Status == models.OfferStatusInReview {
		return out, nil
	}
	out.Status = models.OfferStatusInReview
	out.UpdatedAt = now
	return out, nil
}

// MarkOfferViewed sets the viewer's viewed flag. Only the receiver, the
// party that did not author the latest action, may mark viewed; for the
// sender this is a no-op, not an error.
func MarkOfferViewed(o *models.Offer, viewerRole string, now time.Time) *models.Offer {
	out := cloneOffer(o)
	if viewerRole == senderRole(o) {
		return out
	}
	switch viewerRole {
	case models.RoleCreator:
		out.ViewedByCreator = true
	case models.RoleMarketer:
		out.ViewedByMarketer = true
	default:
		return out
	}
	out.UpdatedAt = now
	return out
}

// guardAct distinguishes acting on a dead offer (invalid transition) from
// acting out of turn (forbidden).
func guardAct(o *models.Offer, viewerRole string) error {
	if o.TerminalStatus() {
		return ErrInvalidTransition
	}
	if !ActionPermissions(o, viewerRole).CanAct {
		return ErrForbidden
	}
	return nil
}

// senderRole is the party that authored the latest action: the latest
// counter's author, or the Marketer for the initial offer.
func senderRole(o *models.Offer) string {
	if c := o.LatestCounter(); c != nil {
		return c.CounterBy
	}
	return models.RoleMarketer
}

// receiverRole is the counterparty of senderRole.
func receiverRole(o *models.Offer) string {
	if senderRole(o) == models.RoleCreator {
		return models.RoleMarketer
	}
	return models.RoleCreator
}

func receiverViewed(o *models.Offer) bool {
	if receiverRole(o) == models.RoleCreator {
		return o.ViewedByCreator
	}
	return o.ViewedByMarketer
}

func cloneOffer(o *models.Offer) *models.Offer {
	out := *o
	out.Counters = make([]models.Counter, len(o.Counters))
	copy(out.Counters, o.Counters)
	out.Deliverables = append([]string(nil), o.Deliverables...)
	out.Attachments = append([]string(nil), o.Attachments...)
	return &out
}

func newDealNumber() string {
	return "DL-" + strings.ToUpper(uuid.New().String()[:8])
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
