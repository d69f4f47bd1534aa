package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dealflow/backend/internal/ledger"
	"github.com/dealflow/backend/internal/middleware"
	"github.com/dealflow/backend/internal/models"
	"github.com/dealflow/backend/internal/notify"
	"github.com/dealflow/backend/internal/services"
)

// MilestoneHandler serves /v1/deals/{id}/milestones endpoints. It shares the
// deal loading and error mapping helpers with DealHandler.
type MilestoneHandler struct {
	Pool          TxBeginner
	DealRepo      DealRepoForHandler
	AccountRepo   AccountRepoForHandler
	Escrow        EscrowLedger
	Validator     *services.Validator
	InsertWebhook InsertWebhookFunc
	Logger        *slog.Logger
}

type createMilestoneRequest struct {
	Name        string     `json:"name"`
	Amount      int64      `json:"amount"`
	Bonus       int64      `json:"bonus,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Description string     `json:"description,omitempty"`
}

// --- POST /v1/deals/{id}/milestones ---

func (h *MilestoneHandler) CreateMilestone(w http.ResponseWriter, r *http.Request) {
	d, acc, ok := h.loadDeal(w, r)
	if !ok {
		return
	}
	if acc.Role != models.RoleMarketer || d.MarketerID != acc.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the deal's marketer can add milestones"})
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
		return
	}
	if err := h.Validator.ValidateDocument(r.Context(), services.DocMilestone, body); err != nil {
		writeServiceError(w, h.Logger, "validate milestone", err)
		return
	}
	var req createMilestoneRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	m, err := services.NewMilestone(req.Name, req.Amount, req.Bonus, req.DueDate, req.Description)
	if err != nil {
		writeServiceError(w, h.Logger, "new milestone", err)
		return
	}
	d.Milestones = append(d.Milestones, *m)
	if err := h.DealRepo.Update(r.Context(), d); err != nil {
		h.Logger.Error("update deal after milestone create", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// --- PATCH /v1/deals/{id}/milestones/{milestoneId} ---

func (h *MilestoneHandler) EditMilestone(w http.ResponseWriter, r *http.Request) {
	d, acc, ok := h.loadDeal(w, r)
	if !ok {
		return
	}
	if acc.Role != models.RoleMarketer || d.MarketerID != acc.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the deal's marketer can edit milestones"})
		return
	}
	m, idx, ok := h.findMilestone(w, r, d)
	if !ok {
		return
	}
	var edit services.MilestoneEdit
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	updated, err := services.EditMilestone(m, edit)
	if err != nil {
		writeServiceError(w, h.Logger, "edit milestone", err)
		return
	}
	d.Milestones[idx] = *updated
	if err := h.DealRepo.Update(r.Context(), d); err != nil {
		h.Logger.Error("update deal after milestone edit", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// --- DELETE /v1/deals/{id}/milestones/{milestoneId} ---

func (h *MilestoneHandler) DeleteMilestone(w http.ResponseWriter, r *http.Request) {
	d, acc, ok := h.loadDeal(w, r)
	if !ok {
		return
	}
	if acc.Role != models.RoleMarketer || d.MarketerID != acc.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the deal's marketer can delete milestones"})
		return
	}
	m, idx, ok := h.findMilestone(w, r, d)
	if !ok {
		return
	}
	if err := services.DeleteMilestone(m); err != nil {
		writeServiceError(w, h.Logger, "delete milestone", err)
		return
	}
	d.Milestones = append(d.Milestones[:idx], d.Milestones[idx+1:]...)
	if err := h.DealRepo.Update(r.Context(), d); err != nil {
		h.Logger.Error("update deal after milestone delete", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- POST /v1/deals/{id}/milestones/{milestoneId}/fund ---

// FundMilestone escrows the milestone total inside one transaction: the
// marketer's balance moves into hold and the deal document is updated.
func (h *MilestoneHandler) FundMilestone(w http.ResponseWriter, r *http.Request) {
	d, acc, ok := h.loadDeal(w, r)
	if !ok {
		return
	}
	if acc.Role != models.RoleMarketer || d.MarketerID != acc.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the deal's marketer can fund milestones"})
		return
	}
	m, _, ok := h.findMilestone(w, r, d)
	if !ok {
		return
	}
	updated, err := services.FundMilestone(d, m.ID, time.Now())
	if err != nil {
		writeServiceError(w, h.Logger, "fund milestone", err)
		return
	}

	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin fund milestone tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	milestoneID := m.ID
	if err := h.Escrow.PlaceEscrowHold(r.Context(), tx, d.ID, &milestoneID, acc.ID, m.Total()); err != nil {
		writeMoneyError(w, h.Logger, "place milestone escrow hold", err)
		return
	}
	if err := h.DealRepo.UpdateTx(r.Context(), tx, updated); err != nil {
		h.Logger.Error("update deal after milestone fund", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		h.Logger.Error("commit fund milestone tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	h.notifyParty(r.Context(), d.CreatorID, notify.EventMilestoneFunded, updated)
	writeJSON(w, http.StatusOK, dealToResponse(updated))
}

// --- POST /v1/deals/{id}/milestones/{milestoneId}/submit ---

type submitWorkRequest struct {
	Files   []string `json:"files,omitempty"`
	Content string   `json:"content,omitempty"`
}

func (h *MilestoneHandler) SubmitWork(w http.ResponseWriter, r *http.Request) {
	d, acc, ok := h.loadDeal(w, r)
	if !ok {
		return
	}
	if acc.Role != models.RoleCreator || d.CreatorID != acc.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the deal's creator can submit milestone work"})
		return
	}
	m, idx, ok := h.findMilestone(w, r, d)
	if !ok {
		return
	}
	var req submitWorkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if len(req.Files) == 0 && req.Content == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "submission needs files or content"})
		return
	}
	updated, err := services.SubmitMilestoneWork(m, models.MilestoneDeliverable{
		Files:       req.Files,
		Content:     req.Content,
		SubmittedBy: models.RoleCreator,
	}, time.Now())
	if err != nil {
		writeServiceError(w, h.Logger, "submit milestone work", err)
		return
	}
	d.Milestones[idx] = *updated
	if err := h.DealRepo.Update(r.Context(), d); err != nil {
		h.Logger.Error("update deal after milestone submit", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// --- POST /v1/deals/{id}/milestones/{milestoneId}/review ---

type reviewMilestoneRequest struct {
	Decision string `json:"decision"`
	Feedback string `json:"feedback,omitempty"`
}

// ReviewMilestone resolves an in_review milestone. Approval pays out the
// milestone's escrow to the creator.
func (h *MilestoneHandler) ReviewMilestone(w http.ResponseWriter, r *http.Request) {
	d, acc, ok := h.loadDeal(w, r)
	if !ok {
		return
	}
	if acc.Role != models.RoleMarketer || d.MarketerID != acc.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the deal's marketer can review milestones"})
		return
	}
	m, idx, ok := h.findMilestone(w, r, d)
	if !ok {
		return
	}
	var req reviewMilestoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	updated, err := services.ReviewMilestone(m, req.Decision, req.Feedback, models.RoleMarketer, time.Now())
	if err != nil {
		writeServiceError(w, h.Logger, "review milestone", err)
		return
	}

	if updated.Status == models.MilestoneStatusCompleted && m.Status != models.MilestoneStatusCompleted {
		milestoneID := m.ID
		if err := h.Escrow.ReleaseEscrow(r.Context(), d.ID, &milestoneID, d.CreatorID, m.Total()); err != nil {
			writeMoneyError(w, h.Logger, "release milestone escrow", err)
			return
		}
	}

	d.Milestones[idx] = *updated
	if err := h.DealRepo.Update(r.Context(), d); err != nil {
		h.Logger.Error("update deal after milestone review", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	h.notifyParty(r.Context(), d.CreatorID, notify.EventProofReviewed, updated)
	writeJSON(w, http.StatusOK, updated)
}

// --- helpers ---

func (h *MilestoneHandler) loadDeal(w http.ResponseWriter, r *http.Request) (*models.Deal, *models.Account, bool) {
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

// findMilestone resolves the milestone segment of the URL against the deal.
func (h *MilestoneHandler) findMilestone(w http.ResponseWriter, r *http.Request, d *models.Deal) (*models.Milestone, int, bool) {
	milestoneID, ok := pathSegmentUUID(r, 2)
	if !ok {
		http.Error(w, `{"error":"invalid milestone id"}`, http.StatusBadRequest)
		return nil, 0, false
	}
	m, idx := d.FindMilestone(milestoneID)
	if m == nil {
		http.Error(w, `{"error":"milestone not found"}`, http.StatusNotFound)
		return nil, 0, false
	}
	return m, idx, true
}

func (h *MilestoneHandler) notifyParty(ctx context.Context, accountID uuid.UUID, event string, payload any) {
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

// writeServiceError maps lifecycle sentinels to HTTP statuses.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not allowed in the current state"})
	case errors.Is(err, services.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "not in a state that allows this action"})
	case errors.Is(err, services.ErrPrerequisiteNotMet):
		writeJSON(w, http.StatusPreconditionFailed, map[string]string{"error": "a required prior step has not happened"})
	default:
		log.Error(op, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

// writeMoneyError maps ledger failures to HTTP statuses.
func writeMoneyError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		http.Error(w, `{"error":"insufficient funds"}`, http.StatusPaymentRequired)
	case errors.Is(err, ledger.ErrNoHeldFunds):
		http.Error(w, `{"error":"no held funds to release"}`, http.StatusPreconditionFailed)
	default:
		log.Error(op, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}
