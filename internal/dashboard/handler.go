package dashboard

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealflow/backend/internal/auth"
	"github.com/dealflow/backend/internal/models"
	"github.com/dealflow/backend/internal/repository"
	"github.com/dealflow/backend/internal/services"
)

type Handler struct {
	authSvc  auth.Service
	pool     *pgxpool.Pool
	accountR *repository.AccountRepo
	paymentR *repository.PaymentRepo
	apiKeyR  *repository.APIKeyRepo
	dealR    *repository.DealRepo
	log      *slog.Logger
}

func NewHandler(
	authSvc auth.Service,
	pool *pgxpool.Pool,
	accountR *repository.AccountRepo,
	paymentR *repository.PaymentRepo,
	apiKeyR *repository.APIKeyRepo,
	dealR *repository.DealRepo,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		authSvc:  authSvc,
		pool:     pool,
		accountR: accountR,
		paymentR: paymentR,
		apiKeyR:  apiKeyR,
		dealR:    dealR,
		log:      log,
	}
}

func (h *Handler) accountIDFromRequest(r *http.Request) (uuid.UUID, error) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return uuid.Nil, fmt.Errorf("missing authorization")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return uuid.Nil, fmt.Errorf("bad authorization format")
	}
	token := strings.TrimSpace(authz[len(prefix):])
	if token == "" {
		return uuid.Nil, fmt.Errorf("empty token")
	}
	id, _, err := h.authSvc.ValidateToken(r.Context(), token)
	return id, err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /api/v1/account/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	acc, err := h.accountR.GetByID(r.Context(), accountID)
	if err != nil {
		h.log.Error("get account failed", "error", err)
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":            acc.ID,
		"email":         acc.Email,
		"display_name":  acc.Name,
		"company":       acc.Company,
		"role":          acc.Role,
		"balance_cents": acc.BalanceCents,
		"hold_cents":    acc.HoldCents,
		"webhook_url":   acc.WebhookURL,
		"created_at":    acc.CreatedAt,
	})
}

// PATCH /api/v1/account/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	acc, err := h.accountR.GetByID(r.Context(), accountID)
	if err != nil {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	var body struct {
		Name       *string `json:"display_name"`
		Company    *string `json:"company"`
		Email      *string `json:"email"`
		WebhookURL *string `json:"webhook_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if body.Name != nil {
		acc.Name = *body.Name
	}
	if body.Company != nil {
		acc.Company = *body.Company
	}
	if body.Email != nil {
		acc.Email = *body.Email
	}
	if body.WebhookURL != nil {
		acc.WebhookURL = *body.WebhookURL
	}
	if err := h.accountR.Update(r.Context(), acc); err != nil {
		h.log.Error("update settings failed", "error", err)
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/v1/account/deposit
// Credits the balance and writes a DEPOSIT ledger entry in one transaction.
// Payment provider integration sits in front of this in production.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var body struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if body.Amount <= 0 {
		http.Error(w, "amount must be positive", http.StatusBadRequest)
		return
	}
	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		h.log.Error("begin deposit tx", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	newBalance, err := h.accountR.AddBalance(r.Context(), tx, accountID, body.Amount)
	if err != nil {
		h.log.Error("deposit add balance", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	entry := &models.PaymentLedger{
		ID:           uuid.New(),
		AccountID:    accountID,
		EntryType:    models.LedgerEntryDeposit,
		Amount:       body.Amount,
		BalanceAfter: newBalance,
	}
	if err := h.paymentR.CreateTx(r.Context(), tx, entry); err != nil {
		h.log.Error("deposit ledger entry", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		h.log.Error("commit deposit tx", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance_cents": newBalance,
		"entry_id":      entry.ID,
	})
}

// GET /api/v1/payment-ledger
func (h *Handler) ListPaymentLedger(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	entries, err := h.paymentR.ListByAccountID(r.Context(), accountID)
	if err != nil {
		h.log.Error("list payment ledger failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.PaymentLedger{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GET /api/v1/earnings
// Aggregates the summaries of every deal the account is a party to.
func (h *Handler) Earnings(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	deals, err := h.dealR.ListByAccountID(r.Context(), accountID)
	if err != nil {
		h.log.Error("list deals for earnings failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	var total services.DealSummary
	for _, d := range deals {
		s := services.Summarize(d)
		total.ProjectPrice += s.ProjectPrice
		total.InEscrow += s.InEscrow
		total.MilestonesPaidCount += s.MilestonesPaidCount
		total.MilestonesPaidAmount += s.MilestonesPaidAmount
		total.MilestonesRemainingCount += s.MilestonesRemainingCount
		total.MilestonesRemainingAmount += s.MilestonesRemainingAmount
		total.TotalEarnings += s.TotalEarnings
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deal_count": len(deals),
		"totals":     total,
	})
}

// GET /api/v1/api-keys
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	keys, err := h.apiKeyR.ListByAccountID(r.Context(), accountID)
	if err != nil {
		h.log.Error("list api keys failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

// POST /api/v1/api-keys
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		http.Error(w, "key generation failed", http.StatusInternalServerError)
		return
	}
	rawKey := "dflw_" + hex.EncodeToString(rawBytes)
	hash := sha256.Sum256([]byte(rawKey))
	keyHash := hex.EncodeToString(hash[:])
	keyPrefix := rawKey[:12]

	k := &models.APIKey{
		ID:        uuid.New(),
		AccountID: accountID,
		KeyHash:   keyHash,
		KeyPrefix: keyPrefix,
		IsActive:  true,
	}
	if err := h.apiKeyR.Create(r.Context(), k); err != nil {
		h.log.Error("create api key failed", "error", err)
		http.Error(w, "create failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         k.ID,
		"key_prefix": k.KeyPrefix,
		"is_active":  k.IsActive,
		"raw_key":    rawKey,
	})
}

// DELETE /api/v1/api-keys/{id}
func (h *Handler) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	_, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	path := r.URL.Path
	parts := strings.Split(strings.TrimRight(path, "/"), "/")
	idStr := parts[len(parts)-1]
	keyID, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid key ID", http.StatusBadRequest)
		return
	}
	if err := h.apiKeyR.Delete(r.Context(), keyID); err != nil {
		h.log.Error("delete api key failed", "error", err)
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
