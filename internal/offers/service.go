package offers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dealflow/backend/internal/models"
	"github.com/dealflow/backend/internal/notify"
	"github.com/dealflow/backend/internal/services"
)

// OfferStore is the subset of the offer repository the service needs.
type OfferStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, o *models.Offer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	Update(ctx context.Context, o *models.Offer) error
	UpdateTx(ctx context.Context, tx pgx.Tx, o *models.Offer) error
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Offer, error)
}

// DealStore is the subset of the deal repository needed on offer acceptance.
type DealStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, d *models.Deal) error
}

// AccountStore resolves the counterparty for webhook notifications.
type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// CreateOfferParams carries the fields of a new offer.
type CreateOfferParams struct {
	CreatorID         uuid.UUID
	OfferName         string
	Description       string
	ProposedAmount    int64
	Deliverables      []string
	DesiredReviewDate *time.Time
	DesiredPostDate   *time.Time
	Notes             string
	Attachments       []string
	Draft             bool
}

// OfferView is an offer enriched with the viewer-specific derived fields.
type OfferView struct {
	Offer         *models.Offer        `json:"offer"`
	DisplayStatus string               `json:"displayStatus"`
	CurrentTerms  services.Terms       `json:"currentTerms"`
	Permissions   services.Permissions `json:"permissions"`
	ViewerRole    string               `json:"viewerRole"`
}

type Service interface {
	CreateOffer(ctx context.Context, marketerID uuid.UUID, p CreateOfferParams) (*models.Offer, error)
	SendOffer(ctx context.Context, offerID, actorID uuid.UUID) (*models.Offer, error)
	GetOffer(ctx context.Context, offerID, viewerID uuid.UUID) (*OfferView, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*OfferView, error)
	Counter(ctx context.Context, offerID, actorID uuid.UUID, terms services.CounterTerms) (*models.Offer, error)
	Accept(ctx context.Context, offerID, actorID uuid.UUID) (*models.Deal, error)
	Reject(ctx context.Context, offerID, actorID uuid.UUID) (*models.Offer, error)
	MarkInReview(ctx context.Context, offerID, actorID uuid.UUID) (*models.Offer, error)
	MarkViewed(ctx context.Context, offerID, actorID uuid.UUID) (*models.Offer, error)
	Cancel(ctx context.Context, offerID, actorID uuid.UUID) (*models.Offer, error)
	Delete(ctx context.Context, offerID, actorID uuid.UUID) error
}

// InsertWebhookTxFunc enqueues a webhook delivery within the given transaction.
// Provided by main using river.Client.InsertTx.
type InsertWebhookTxFunc func(ctx context.Context, tx pgx.Tx, args notify.WebhookJobArgs) error

type service struct {
	offers        OfferStore
	deals         DealStore
	accounts      AccountStore
	insertWebhook InsertWebhookTxFunc
	now           func() time.Time
}

// NewService creates an offers service. insertWebhook is typically a closure
// over river.Client.InsertTx.
func NewService(offers OfferStore, deals DealStore, accounts AccountStore, insertWebhook InsertWebhookTxFunc) *service {
	return &service{
		offers:        offers,
		deals:         deals,
		accounts:      accounts,
		insertWebhook: insertWebhook,
		now:           time.Now,
	}
}

var _ Service = (*service)(nil)

func (s *service) CreateOffer(ctx context.Context, marketerID uuid.UUID, p CreateOfferParams) (*models.Offer, error) {
	if p.OfferName == "" || p.Description == "" || len(p.Deliverables) == 0 || p.ProposedAmount <= 0 {
		return nil, services.ErrValidation
	}
	status := models.OfferStatusSent
	if p.Draft {
		status = models.OfferStatusDraft
	}
	o := &models.Offer{
		ID:                uuid.New(),
		MarketerID:        marketerID,
		CreatorID:         p.CreatorID,
		OfferName:         p.OfferName,
		Description:       p.Description,
		ProposedAmount:    p.ProposedAmount,
		Deliverables:      p.Deliverables,
		DesiredReviewDate: p.DesiredReviewDate,
		DesiredPostDate:   p.DesiredPostDate,
		Notes:             p.Notes,
		Attachments:       p.Attachments,
		Status:            status,
	}
	if err := s.offers.Create(ctx, o); err != nil {
		return nil, err
	}
	if !p.Draft {
		if err := s.notifyTx(ctx, o, models.RoleCreator, notify.EventOfferReceived, o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (s *service) SendOffer(ctx context.Context, offerID, actorID uuid.UUID) (*models.Offer, error) {
	o, role, err := s.loadFor(ctx, offerID, actorID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleMarketer {
		return nil, services.ErrForbidden
	}
	if o.Status != models.OfferStatusDraft {
		return nil, services.ErrInvalidTransition
	}
	o.Status = models.OfferStatusSent
	o.UpdatedAt = s.now()
	if err := s.offers.Update(ctx, o); err != nil {
		return nil, err
	}
	if err := s.notifyTx(ctx, o, models.RoleCreator, notify.EventOfferReceived, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *service) GetOffer(ctx context.Context, offerID, viewerID uuid.UUID) (*OfferView, error) {
	o, role, err := s.loadFor(ctx, offerID, viewerID)
	if err != nil {
		return nil, err
	}
	return s.view(o, role), nil
}

func (s *service) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*OfferView, error) {
	list, err := s.offers.ListByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	views := make([]*OfferView, 0, len(list))
	for _, o := range list {
		role := models.RoleMarketer
		if o.CreatorID == accountID {
			role = models.RoleCreator
		}
		views = append(views, s.view(o, role))
	}
	return views, nil
}

func (s *service) Counter(ctx context.Context, offerID, actorID uuid.UUID, terms services.CounterTerms) (*models.Offer, error) {
	o, role, err := s.loadFor(ctx, offerID, actorID)
	if err != nil {
		return nil, err
	}
	countered, err := services.CounterOffer(o, role, terms, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.persistAndNotify(ctx, countered, otherRole(role), notify.EventOfferCountered, countered); err != nil {
		return nil, err
	}
	return countered, nil
}

func (s *service) Accept(ctx context.Context, offerID, actorID uuid.UUID) (*models.Deal, error) {
	o, role, err := s.loadFor(ctx, offerID, actorID)
	if err != nil {
		return nil, err
	}
	accepted, deal, err := services.AcceptOffer(o, role, s.now())
	if err != nil {
		return nil, err
	}

	tx, err := s.offers.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.offers.UpdateTx(ctx, tx, accepted); err != nil {
		return nil, err
	}
	if err := s.deals.CreateTx(ctx, tx, deal); err != nil {
		return nil, err
	}
	if err := s.enqueueWebhook(ctx, tx, accepted, otherRole(role), notify.EventOfferAccepted, deal); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return deal, nil
}

func (s *service) Reject(ctx context.Context, offerID, actorID uuid.UUID) (*models.Offer, error) {
	o, role, err := s.loadFor(ctx, offerID, actorID)
	if err != nil {
		return nil, err
	}
	rejected, err := services.RejectOffer(o, role, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.persistAndNotify(ctx, rejected, otherRole(role), notify.EventOfferRejected, rejected); err != nil {
		return nil, err
	}
	return rejected, nil
}

func (s *service) MarkInReview(ctx context.Context, offerID, actorID uuid.UUID) (*models.Offer, error) {
	o, role, err := s.loadFor(ctx, offerID, actorID)
	if err != nil {
		return nil, err
	}
	updated, err := services.MarkOfferInReview(o, role, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.offers.Update(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) MarkViewed(ctx context.Context, offerID, actorID uuid.UUID) (*models.Offer, error) {
	o, role, err := s.loadFor(ctx, offerID, actorID)
	if err != nil {
		return nil, err
	}
	updated := services.MarkOfferViewed(o, role, s.now())
	if err := s.offers.Update(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel withdraws a sent offer. Only the marketer can cancel, and only
// before the offer reaches a terminal status.
func (s *service) Cancel(ctx context.Context, offerID, actorID uuid.UUID) (*models.Offer, error) {
	o, role, err := s.loadFor(ctx, offerID, actorID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleMarketer {
		return nil, services.ErrForbidden
	}
	if o.TerminalStatus() {
		return nil, services.ErrInvalidTransition
	}
	o.Status = models.OfferStatusCancelled
	o.UpdatedAt = s.now()
	if err := s.offers.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Delete soft-deletes a draft. Sent offers must be cancelled instead.
func (s *service) Delete(ctx context.Context, offerID, actorID uuid.UUID) error {
	o, role, err := s.loadFor(ctx, offerID, actorID)
	if err != nil {
		return err
	}
	if role != models.RoleMarketer {
		return services.ErrForbidden
	}
	if o.Status != models.OfferStatusDraft {
		return services.ErrInvalidTransition
	}
	o.Status = models.OfferStatusDeleted
	o.UpdatedAt = s.now()
	return s.offers.Update(ctx, o)
}

// --- helpers ---

func (s *service) loadFor(ctx context.Context, offerID, accountID uuid.UUID) (*models.Offer, string, error) {
	o, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, "", err
	}
	switch accountID {
	case o.MarketerID:
		return o, models.RoleMarketer, nil
	case o.CreatorID:
		return o, models.RoleCreator, nil
	}
	return nil, "", services.ErrForbidden
}

func (s *service) view(o *models.Offer, role string) *OfferView {
	return &OfferView{
		Offer:         o,
		DisplayStatus: services.OfferDisplayStatus(o, role),
		CurrentTerms:  services.CurrentTerms(o),
		Permissions:   services.ActionPermissions(o, role),
		ViewerRole:    role,
	}
}

// persistAndNotify updates the offer and enqueues the webhook atomically.
func (s *service) persistAndNotify(ctx context.Context, o *models.Offer, recipientRole, event string, payload any) error {
	tx, err := s.offers.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := s.offers.UpdateTx(ctx, tx, o); err != nil {
		return err
	}
	if err := s.enqueueWebhook(ctx, tx, o, recipientRole, event, payload); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// notifyTx enqueues a webhook in its own short transaction.
func (s *service) notifyTx(ctx context.Context, o *models.Offer, recipientRole, event string, payload any) error {
	tx, err := s.offers.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := s.enqueueWebhook(ctx, tx, o, recipientRole, event, payload); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *service) enqueueWebhook(ctx context.Context, tx pgx.Tx, o *models.Offer, recipientRole, event string, payload any) error {
	recipientID := o.CreatorID
	if recipientRole == models.RoleMarketer {
		recipientID = o.MarketerID
	}
	acc, err := s.accounts.GetByID(ctx, recipientID)
	if err != nil {
		return err
	}
	if acc.WebhookURL == "" {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.insertWebhook(ctx, tx, notify.WebhookJobArgs{
		Event:      event,
		AccountID:  acc.ID,
		WebhookURL: acc.WebhookURL,
		Payload:    body,
	})
}

func otherRole(role string) string {
	if role == models.RoleMarketer {
		return models.RoleCreator
	}
	return models.RoleMarketer
}
