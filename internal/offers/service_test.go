package offers

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dealflow/backend/internal/models"
	"github.com/dealflow/backend/internal/notify"
	"github.com/dealflow/backend/internal/services"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

type mockOfferStore struct {
	offers map[uuid.UUID]*models.Offer
}

func newMockOfferStore() *mockOfferStore {
	return &mockOfferStore{offers: make(map[uuid.UUID]*models.Offer)}
}

func (m *mockOfferStore) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

func (m *mockOfferStore) Create(_ context.Context, o *models.Offer) error {
	m.offers[o.ID] = o
	return nil
}

func (m *mockOfferStore) GetByID(_ context.Context, id uuid.UUID) (*models.Offer, error) {
	o, ok := m.offers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *o
	return &copied, nil
}

func (m *mockOfferStore) Update(_ context.Context, o *models.Offer) error {
	m.offers[o.ID] = o
	return nil
}

func (m *mockOfferStore) UpdateTx(_ context.Context, _ pgx.Tx, o *models.Offer) error {
	m.offers[o.ID] = o
	return nil
}

func (m *mockOfferStore) ListByAccountID(_ context.Context, accountID uuid.UUID) ([]*models.Offer, error) {
	var out []*models.Offer
	for _, o := range m.offers {
		if o.MarketerID == accountID || o.CreatorID == accountID {
			out = append(out, o)
		}
	}
	return out, nil
}

type mockDealStore struct {
	created []*models.Deal
}

func (m *mockDealStore) CreateTx(_ context.Context, _ pgx.Tx, d *models.Deal) error {
	m.created = append(m.created, d)
	return nil
}

type mockAccountStore struct {
	accounts map[uuid.UUID]*models.Account
}

func (m *mockAccountStore) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	acc, ok := m.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return acc, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestService(t *testing.T) (*service, *mockOfferStore, *mockDealStore, *[]notify.WebhookJobArgs, uuid.UUID, uuid.UUID) {
	t.Helper()
	os := newMockOfferStore()
	ds := &mockDealStore{}
	marketerID := uuid.New()
	creatorID := uuid.New()
	as := &mockAccountStore{accounts: map[uuid.UUID]*models.Account{
		marketerID: {ID: marketerID, Role: models.RoleMarketer, WebhookURL: "https://marketer.example/hook"},
		creatorID:  {ID: creatorID, Role: models.RoleCreator, WebhookURL: "https://creator.example/hook"},
	}}
	var hooks []notify.WebhookJobArgs
	svc := NewService(os, ds, as, func(_ context.Context, _ pgx.Tx, args notify.WebhookJobArgs) error {
		hooks = append(hooks, args)
		return nil
	})
	return svc, os, ds, &hooks, marketerID, creatorID
}

func validParams(creatorID uuid.UUID) CreateOfferParams {
	return CreateOfferParams{
		CreatorID:      creatorID,
		OfferName:      "Spring launch video",
		Description:    "One 60s video plus two stories",
		ProposedAmount: 5000_00,
		Deliverables:   []string{"1 video", "2 stories"},
	}
}

// ===========================================================================
// CreateOffer / SendOffer
// ===========================================================================

func TestCreateOffer_SentNotifiesCreator(t *testing.T) {
	svc, _, _, hooks, marketerID, creatorID := newTestService(t)

	o, err := svc.CreateOffer(context.Background(), marketerID, validParams(creatorID))
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if o.Status != models.OfferStatusSent {
		t.Fatalf("status = %q, want %q", o.Status, models.OfferStatusSent)
	}
	if len(*hooks) != 1 {
		t.Fatalf("webhooks = %d, want 1", len(*hooks))
	}
	h := (*hooks)[0]
	if h.Event != notify.EventOfferReceived {
		t.Errorf("event = %q, want %q", h.Event, notify.EventOfferReceived)
	}
	if h.AccountID != creatorID {
		t.Errorf("webhook went to %s, want creator %s", h.AccountID, creatorID)
	}
}

func TestCreateOffer_Validation(t *testing.T) {
	svc, _, _, _, marketerID, creatorID := newTestService(t)

	p := validParams(creatorID)
	p.Deliverables = nil
	if _, err := svc.CreateOffer(context.Background(), marketerID, p); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	p = validParams(creatorID)
	p.ProposedAmount = 0
	if _, err := svc.CreateOffer(context.Background(), marketerID, p); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestSendOffer_DraftOnly(t *testing.T) {
	svc, _, _, hooks, marketerID, creatorID := newTestService(t)

	p := validParams(creatorID)
	p.Draft = true
	o, err := svc.CreateOffer(context.Background(), marketerID, p)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if o.Status != models.OfferStatusDraft {
		t.Fatalf("status = %q, want draft", o.Status)
	}
	if len(*hooks) != 0 {
		t.Fatalf("draft creation enqueued %d webhooks, want 0", len(*hooks))
	}

	sent, err := svc.SendOffer(context.Background(), o.ID, marketerID)
	if err != nil {
		t.Fatalf("SendOffer: %v", err)
	}
	if sent.Status != models.OfferStatusSent {
		t.Fatalf("status = %q, want sent", sent.Status)
	}
	if len(*hooks) != 1 || (*hooks)[0].Event != notify.EventOfferReceived {
		t.Fatalf("expected one offer.received webhook, got %+v", *hooks)
	}

	// Re-sending an already sent offer is an invalid transition.
	if _, err := svc.SendOffer(context.Background(), o.ID, marketerID); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestSendOffer_CreatorForbidden(t *testing.T) {
	svc, _, _, _, marketerID, creatorID := newTestService(t)

	p := validParams(creatorID)
	p.Draft = true
	o, _ := svc.CreateOffer(context.Background(), marketerID, p)

	if _, err := svc.SendOffer(context.Background(), o.ID, creatorID); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

// ===========================================================================
// Counter / Accept / Reject
// ===========================================================================

func TestCounter_ResetsViewedAndNotifiesMarketer(t *testing.T) {
	svc, os, _, hooks, marketerID, creatorID := newTestService(t)

	o, _ := svc.CreateOffer(context.Background(), marketerID, validParams(creatorID))
	os.offers[o.ID].ViewedByCreator = true
	os.offers[o.ID].ViewedByMarketer = true

	countered, err := svc.Counter(context.Background(), o.ID, creatorID, services.CounterTerms{Amount: 6500_00})
	if err != nil {
		t.Fatalf("Counter: %v", err)
	}
	if countered.Status != models.OfferStatusRejectedCountered {
		t.Errorf("status = %q, want rejected-countered", countered.Status)
	}
	if countered.ViewedByCreator || countered.ViewedByMarketer {
		t.Error("viewed flags should reset when new terms arrive")
	}
	last := (*hooks)[len(*hooks)-1]
	if last.Event != notify.EventOfferCountered || last.AccountID != marketerID {
		t.Errorf("expected offer.countered to marketer, got %+v", last)
	}
}

func TestAccept_CreatesDealFromCurrentTerms(t *testing.T) {
	svc, _, ds, hooks, marketerID, creatorID := newTestService(t)

	o, _ := svc.CreateOffer(context.Background(), marketerID, validParams(creatorID))
	if _, err := svc.Counter(context.Background(), o.ID, creatorID, services.CounterTerms{Amount: 6500_00}); err != nil {
		t.Fatalf("Counter: %v", err)
	}

	// The creator authored the latest counter, so only the marketer may accept.
	if _, err := svc.Accept(context.Background(), o.ID, creatorID); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("out-of-turn accept: err = %v, want ErrForbidden", err)
	}

	deal, err := svc.Accept(context.Background(), o.ID, marketerID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if deal.PaymentInfo.PaymentAmount != 6500_00 {
		t.Errorf("deal amount = %d, want countered 650000", deal.PaymentInfo.PaymentAmount)
	}
	if len(ds.created) != 1 {
		t.Fatalf("deals created = %d, want 1", len(ds.created))
	}

	view, err := svc.GetOffer(context.Background(), o.ID, marketerID)
	if err != nil {
		t.Fatalf("GetOffer: %v", err)
	}
	if view.Offer.Status != models.OfferStatusAccepted {
		t.Errorf("offer status = %q, want accepted", view.Offer.Status)
	}
	last := (*hooks)[len(*hooks)-1]
	if last.Event != notify.EventOfferAccepted || last.AccountID != creatorID {
		t.Errorf("expected offer.accepted to creator, got %+v", last)
	}

	// Terminal offers cannot be acted on again.
	if _, err := svc.Accept(context.Background(), o.ID, marketerID); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("repeat accept: err = %v, want ErrInvalidTransition", err)
	}
}

func TestReject_NotifiesCounterparty(t *testing.T) {
	svc, _, _, hooks, marketerID, creatorID := newTestService(t)

	o, _ := svc.CreateOffer(context.Background(), marketerID, validParams(creatorID))
	rejected, err := svc.Reject(context.Background(), o.ID, creatorID)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != models.OfferStatusRejected {
		t.Errorf("status = %q, want rejected", rejected.Status)
	}
	last := (*hooks)[len(*hooks)-1]
	if last.Event != notify.EventOfferRejected || last.AccountID != marketerID {
		t.Errorf("expected offer.rejected to marketer, got %+v", last)
	}
}

// ===========================================================================
// Cancel / Delete / access
// ===========================================================================

func TestCancel_MarketerOnly(t *testing.T) {
	svc, _, _, _, marketerID, creatorID := newTestService(t)

	o, _ := svc.CreateOffer(context.Background(), marketerID, validParams(creatorID))
	if _, err := svc.Cancel(context.Background(), o.ID, creatorID); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("creator cancel: err = %v, want ErrForbidden", err)
	}

	cancelled, err := svc.Cancel(context.Background(), o.ID, marketerID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != models.OfferStatusCancelled {
		t.Errorf("status = %q, want cancelled", cancelled.Status)
	}
	if _, err := svc.Cancel(context.Background(), o.ID, marketerID); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("repeat cancel: err = %v, want ErrInvalidTransition", err)
	}
}

func TestDelete_DraftOnly(t *testing.T) {
	svc, os, _, _, marketerID, creatorID := newTestService(t)

	p := validParams(creatorID)
	p.Draft = true
	draft, _ := svc.CreateOffer(context.Background(), marketerID, p)
	sent, _ := svc.CreateOffer(context.Background(), marketerID, validParams(creatorID))

	if err := svc.Delete(context.Background(), sent.ID, marketerID); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("delete sent: err = %v, want ErrInvalidTransition", err)
	}
	if err := svc.Delete(context.Background(), draft.ID, marketerID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if os.offers[draft.ID].Status != models.OfferStatusDeleted {
		t.Errorf("status = %q, want deleted", os.offers[draft.ID].Status)
	}
}

func TestGetOffer_OutsiderForbidden(t *testing.T) {
	svc, _, _, _, marketerID, creatorID := newTestService(t)

	o, _ := svc.CreateOffer(context.Background(), marketerID, validParams(creatorID))
	if _, err := svc.GetOffer(context.Background(), o.ID, uuid.New()); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	view, err := svc.GetOffer(context.Background(), o.ID, creatorID)
	if err != nil {
		t.Fatalf("GetOffer: %v", err)
	}
	if view.ViewerRole != models.RoleCreator {
		t.Errorf("viewer role = %q, want Creator", view.ViewerRole)
	}
	if view.DisplayStatus != "Offer Received" {
		t.Errorf("display status = %q, want Offer Received", view.DisplayStatus)
	}
	if !view.Permissions.CanAct {
		t.Error("creator should be able to act on a fresh offer")
	}
}

func TestMarkViewed_ReceiverOnly(t *testing.T) {
	svc, _, _, _, marketerID, creatorID := newTestService(t)

	o, _ := svc.CreateOffer(context.Background(), marketerID, validParams(creatorID))

	// The marketer sent the offer; marking it viewed as the sender is a no-op.
	updated, err := svc.MarkViewed(context.Background(), o.ID, marketerID)
	if err != nil {
		t.Fatalf("MarkViewed: %v", err)
	}
	if updated.ViewedByMarketer {
		t.Error("sender view should not set the viewed flag")
	}

	updated, err = svc.MarkViewed(context.Background(), o.ID, creatorID)
	if err != nil {
		t.Fatalf("MarkViewed: %v", err)
	}
	if !updated.ViewedByCreator {
		t.Error("receiver view should set ViewedByCreator")
	}

	view, _ := svc.GetOffer(context.Background(), o.ID, marketerID)
	if view.DisplayStatus != "Viewed by Creator" {
		t.Errorf("display status = %q, want Viewed by Creator", view.DisplayStatus)
	}
}
