package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dealflow/backend/internal/middleware"
	"github.com/dealflow/backend/internal/models"
	"github.com/dealflow/backend/internal/notify"
	"github.com/dealflow/backend/internal/services"
)

// DealRepoForHandler is the subset of the deal repository needed by the handlers.
type DealRepoForHandler interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Deal, error)
	Update(ctx context.Context, d *models.Deal) error
	UpdateTx(ctx context.Context, tx pgx.Tx, d *models.Deal) error
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Deal, error)
}

// AccountRepoForHandler resolves accounts for webhook delivery.
type AccountRepoForHandler interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// EscrowLedger abstracts the money movements behind deal operations.
type EscrowLedger interface {
	PlaceEscrowHold(ctx context.Context, tx pgx.Tx, dealID uuid.UUID, milestoneID *uuid.UUID, marketerID uuid.UUID, amountCents int64) error
	ReleaseEscrow(ctx context.Context, dealID uuid.UUID, milestoneID *uuid.UUID, creatorID uuid.UUID, amountCents int64) error
	RefundEscrow(ctx context.Context, dealID uuid.UUID) error
}

// InsertWebhookFunc enqueues a webhook delivery. Nil disables notifications.
type InsertWebhookFunc func(ctx context.Context, args notify.WebhookJobArgs) error

// DealHandler serves /v1/deals endpoints.
type DealHandler struct {
	Pool          TxBeginner
	DealRepo      DealRepoForHandler
	AccountRepo   AccountRepoForHandler
	Escrow        EscrowLedger
	Validator     *services.Validator
	InsertWebhook InsertWebhookFunc
	Logger        *slog.Logger
}

// DealResponse wraps the deal document with its derived financial summary.
type DealResponse struct {
	Deal                *models.Deal         `json:"deal"`
	Summary             services.DealSummary `json:"summary"`
	CanReleaseFirstHalf bool                 `json:"canReleaseFirstHalf"`
	CanReleaseFinal     bool                 `json:"canReleaseFinal"`
}

// --- GET /v1/deals ---

func (h *DealHandler) ListDeals(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	deals, err := h.DealRepo.ListByAccountID(r.Context(), acc.ID)
	if err != nil {
		h.Logger.Error("list deals", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	resp := make([]DealResponse, 0, len(deals))
	for _, d := range deals {
		resp = append(resp, dealToResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- GET /v1/deals/{id} ---

func (h *DealHandler) GetDeal(w http.ResponseWriter, r *http.Request) {
	d, _, ok := h.loadDealForParty(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dealToResponse(d))
}

// --- POST /v1/deals/{id}/summary ---

type summaryPreviewRequest struct {
	StatusOverlay map[string]string `json:"statusOverlay"`
}

// PreviewSummary applies a client-side milestone status overlay and returns
// the recomputed summary without persisting anything.
func (h *DealHandler) PreviewSummary(w http.ResponseWriter, r *http.Request) {
	d, _, ok := h.loadDealForParty(w, r)
	if !ok {
		return
	}
	var req summaryPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	overlay := services.StatusOverlay{}
	for k, v := range req.StatusOverlay {
		id, err := uuid.Parse(k)
		if err != nil {
			http.Error(w, `{"error":"invalid milestone id in overlay"}`, http.StatusBadRequest)
			return
		}
		overlay[id] = v
	}
	preview := services.ApplyStatusOverlay(d, overlay)
	writeJSON(w, http.StatusOK, services.Summarize(preview))
}

// --- POST /v1/deals/{id}/fund ---

type fundDealRequest struct {
	Amount int64 `json:"amount"`
}

// FundDeal places deal-level escrow: the marketer commits amount into the
// hold and the deal gains an escrow transaction.
func (h *DealHandler) FundDeal(w http.ResponseWriter, r *http.Request) {
	d, acc, ok := h.loadDealForParty(w, r)
	if !ok {
		return
	}
	if acc.Role != models.RoleMarketer || d.MarketerID != acc.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the deal's marketer can fund escrow"})
		return
	}
	var req fundDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	updated, err := services.FundEscrow(d, req.Amount, time.Now())
	if err != nil {
		h.writeEngineError(w, "fund deal", err)
		return
	}

	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin fund tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	if err := h.Escrow.PlaceEscrowHold(r.Context(), tx, d.ID, nil, acc.ID, req.Amount); err != nil {
		h.writeLedgerError(w, "place escrow hold", err)
		return
	}
	if err := h.DealRepo.UpdateTx(r.Context(), tx, updated); err != nil {
		h.Logger.Error("update deal after fund", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		h.Logger.Error("commit fund tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dealToResponse(updated))
}

// --- POST /v1/deals/{id}/release-half ---

func (h *DealHandler) ReleaseFirstHalf(w http.ResponseWriter, r *http.Request) {
	d, acc, ok := h.loadDealForParty(w, r)
	if !ok {
		return
	}
	if acc.Role != models.RoleMarketer || d.MarketerID != acc.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the deal's marketer can release funds"})
		return
	}
	updated, err := services.ReleaseFirstHalf(d, time.Now())
	if err != nil {
		h.writeEngineError(w, "release first half", err)
		return
	}
	half := updated.PaymentInfo.Transactions[len(updated.PaymentInfo.Transactions)-1]
	if err := h.Escrow.ReleaseEscrow(r.Context(), d.ID, nil, d.CreatorID, half.PaymentAmount); err != nil {
		h.writeLedgerError(w, "release escrow", err)
		return
	}
	if err := h.DealRepo.Update(r.Context(), updated); err != nil {
		h.Logger.Error("update deal after release", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	h.notifyParty(r.Context(), d.CreatorID, notify.EventEscrowReleased, updated)
	writeJSON(w, http.StatusOK, dealToResponse(updated))
}

// --- POST /v1/deals/{id}/release-final ---

func (h *DealHandler) ReleaseFinal(w http.ResponseWriter, r *http.Request) {
	d, acc, ok := h.loadDealForParty(w, r)
	if !ok {
		return
	}
	if acc.Role != models.RoleMarketer || d.MarketerID != acc.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the deal's marketer can release funds"})
		return
	}
	updated, err := services.ReleaseFinal(d, time.Now())
	if err != nil {
		h.writeEngineError(w, "release final", err)
		return
	}
	final := updated.PaymentInfo.Transactions[len(updated.PaymentInfo.Transactions)-1]
	if err := h.Escrow.ReleaseEscrow(r.Context(), d.ID, nil, d.CreatorID, final.PaymentAmount); err != nil {
		h.writeLedgerError(w, "release escrow", err)
		return
	}
	if err := h.DealRepo.Update(r.Context(), updated); err != nil {
		h.Logger.Error("update deal after final release", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	h.notifyParty(r.Context(), d.CreatorID, notify.EventEscrowReleased, updated)
	writeJSON(w, http.StatusOK, dealToResponse(updated))
}

// --- POST /v1/deals/{id}/proofs ---

type submitProofRequest struct {
	Attachments []string `json:"attachments"`
	Final       bool     `json:"final,omitempty"`
}

func (h *DealHandler) SubmitProof(w http.ResponseWriter, r *http.Request) {
	d, acc, ok := h.loadDealForParty(w, r)
	if !ok {
		return
	}
	if acc.Role != models.RoleCreator || d.CreatorID != acc.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the deal's creator can submit proof"})
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
		return
	}
	if err := h.Validator.ValidateDocument(r.Context(), services.DocProof, body); err != nil {
		h.writeEngineError(w, "validate proof", err)
		return
	}
	var req submitProofRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	updated, err := services.SubmitProof(d, req.Attachments, req.Final, time.Now())
	if err != nil {
		h.writeEngineError(w, "submit proof", err)
		return
	}
	if err := h.DealRepo.Update(r.Context(), updated); err != nil {
		h.Logger.Error("update deal after proof", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	h.notifyParty(r.Context(), d.MarketerID, notify.EventProofSubmitted, updated)
	writeJSON(w, http.StatusCreated, dealToResponse(updated))
}

// --- POST /v1/deals/{id}/proofs/{proofId}/review ---

type reviewProofRequest struct {
	Decision string `json:"decision"`
	Feedback string `json:"feedback,omitempty"`
}

func (h *DealHandler) ReviewProof(w http.ResponseWriter, r *http.Request) {
	d, acc, ok := h.loadDealForParty(w, r)
	if !ok {
		return
	}
	if acc.Role != models.RoleMarketer || d.MarketerID != acc.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the deal's marketer can review proof"})
		return
	}
	proofID, ok := pathSegmentUUID(r, 2)
	if !ok {
		http.Error(w, `{"error":"invalid proof id"}`, http.StatusBadRequest)
		return
	}
	var req reviewProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	updated, err := services.ReviewProof(d, proofID, req.Decision, req.Feedback, time.Now())
	if err != nil {
		h.writeEngineError(w, "review proof", err)
		return
	}
	if err := h.DealRepo.Update(r.Context(), updated); err != nil {
		h.Logger.Error("update deal after review", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	h.notifyParty(r.Context(), d.CreatorID, notify.EventProofReviewed, updated)
	writeJSON(w, http.StatusOK, dealToResponse(updated))
}

// --- POST /v1/deals/{id}/posted ---

func (h *DealHandler) MarkPosted(w http.ResponseWriter, r *http.Request) {
	d, acc, ok := h.loadDealForParty(w, r)
	if !ok {
		return
	}
	if acc.Role != models.RoleCreator || d.CreatorID != acc.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the deal's creator can mark content posted"})
		return
	}
	updated, err := services.MarkFinalContentPosted(d, time.Now())
	if err != nil {
		h.writeEngineError(w, "mark posted", err)
		return
	}
	if err := h.DealRepo.Update(r.Context(), updated); err != nil {
		h.Logger.Error("update deal after posted", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dealToResponse(updated))
}

// --- POST /v1/deals/{id}/cancel and /v1/deals/{id}/cancel/confirm ---

func (h *DealHandler) RequestCancellation(w http.ResponseWriter, r *http.Request) {
	d, _, ok := h.loadDealForParty(w, r)
	if !ok {
		return
	}
	updated, err := services.RequestCancellation(d, time.Now())
	if err != nil {
		h.writeEngineError(w, "request cancellation", err)
		return
	}
	if err := h.DealRepo.Update(r.Context(), updated); err != nil {
		h.Logger.Error("update deal after cancel request", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dealToResponse(updated))
}

// ConfirmCancellation finalizes the cancellation and refunds all remaining
// held funds to the marketer.
func (h *DealHandler) ConfirmCancellation(w http.ResponseWriter, r *http.Request) {
	d, _, ok := h.loadDealForParty(w, r)
	if !ok {
		return
	}
	updated, err := services.ConfirmCancellation(d, time.Now())
	if err != nil {
		h.writeEngineError(w, "confirm cancellation", err)
		return
	}
	if err := h.Escrow.RefundEscrow(r.Context(), d.ID); err != nil {
		h.writeLedgerError(w, "refund escrow", err)
		return
	}
	if err := h.DealRepo.Update(r.Context(), updated); err != nil {
		h.Logger.Error("update deal after cancellation", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	h.notifyParty(r.Context(), d.CreatorID, notify.EventDealCancelled, updated)
	h.notifyParty(r.Context(), d.MarketerID, notify.EventDealCancelled, updated)
	writeJSON(w, http.StatusOK, dealToResponse(updated))
}

// --- helpers ---

// loadDealForParty loads the deal from the URL and verifies the authenticated
// account is one of its parties. Writes the error response itself.
func (h *DealHandler) loadDealForParty(w http.ResponseWriter, r *http.Request) (*models.Deal, *models.Account, bool) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return nil, nil, false
	}
	dealID, ok := extractDealID(r)
	if !ok {
		http.Error(w, `{"error":"invalid deal id"}`, http.StatusBadRequest)
		return nil, nil, false
	}
	d, err := h.DealRepo.GetByID(r.Context(), dealID)
	if err != nil {
		http.Error(w, `{"error":"deal not found"}`, http.StatusNotFound)
		return nil, nil, false
	}
	if d.MarketerID != acc.ID && d.CreatorID != acc.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not a party to this deal"})
		return nil, nil, false
	}
	return d, acc, true
}

func (h *DealHandler) writeEngineError(w http.ResponseWriter, op string, err error) {
	writeServiceError(w, h.Logger, op, err)
}

func (h *DealHandler) writeLedgerError(w http.ResponseWriter, op string, err error) {
	writeMoneyError(w, h.Logger, op, err)
}

// notifyParty enqueues a webhook to the given account, best effort.
func (h *DealHandler) notifyParty(ctx context.Context, accountID uuid.UUID, event string, payload any) {
	if h.InsertWebhook == nil {
		return
	}
	acc, err := h.AccountRepo.GetByID(ctx, accountID)
	if err != nil || acc.WebhookURL == "" {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := h.InsertWebhook(ctx, notify.WebhookJobArgs{
		Event:      event,
		AccountID:  acc.ID,
		WebhookURL: acc.WebhookURL,
		Payload:    body,
	}); err != nil {
		h.Logger.Error("enqueue webhook", "event", event, "error", err)
	}
}

func dealToResponse(d *models.Deal) DealResponse {
	return DealResponse{
		Deal:                d,
		Summary:             services.Summarize(d),
		CanReleaseFirstHalf: services.CanReleaseFirstHalf(d),
		CanReleaseFinal:     services.CanReleaseFinal(d),
	}
}

// extractDealID parses the deal UUID from the URL path.
// Supports paths like /v1/deals/{id} and /v1/deals/{id}/release-half.
func extractDealID(r *http.Request) (uuid.UUID, bool) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/deals/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// pathSegmentUUID returns the nth path segment after /v1/deals/ as a UUID.
// Segment 0 is the deal id itself.
func pathSegmentUUID(r *http.Request, n int) (uuid.UUID, bool) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/deals/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) <= n {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(parts[n])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
