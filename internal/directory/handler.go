package directory

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dealflow/backend/internal/auth"
	"github.com/dealflow/backend/internal/models"
)

// Request/response structs use snake_case JSON on the dashboard surface.

type CreateProfileRequest struct {
	DisplayName        string          `json:"display_name"`
	Bio                string          `json:"bio"`
	Niches             []string        `json:"niches"`
	Platforms          json.RawMessage `json:"platforms"`
	FollowerCount      int32           `json:"follower_count"`
	MinDealAmountCents int64           `json:"min_deal_amount_cents"`
}

type CreatorProfileResponse struct {
	ID                 string          `json:"id"`
	DisplayName        string          `json:"display_name"`
	Slug               string          `json:"slug"`
	Bio                string          `json:"bio"`
	Niches             []string        `json:"niches"`
	Platforms          json.RawMessage `json:"platforms"`
	FollowerCount      int32           `json:"follower_count"`
	MinDealAmountCents int64           `json:"min_deal_amount_cents"`
	Status             string          `json:"status"`
	CompletedDeals     int32           `json:"completed_deals"`
}

type Handler struct {
	svc     Service
	authSvc auth.Service
	log     *slog.Logger
}

func NewHandler(svc Service, authSvc auth.Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, authSvc: authSvc, log: log}
}

// POST /api/v1/creators
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accountID, role, err := h.identityFromRequest(r)
	if err != nil || accountID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if role != models.RoleCreator {
		http.Error(w, "only creators can publish a profile", http.StatusForbidden)
		return
	}
	var req CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.DisplayName == "" || req.Bio == "" || len(req.Niches) == 0 {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	if req.MinDealAmountCents < 0 || req.FollowerCount < 0 {
		http.Error(w, "amounts must be >= 0", http.StatusBadRequest)
		return
	}
	profile, err := h.svc.CreateProfile(r.Context(), accountID, req.DisplayName, req.Bio, req.Niches, req.Platforms, req.FollowerCount, req.MinDealAmountCents)
	if err != nil {
		h.log.Error("create profile failed", "error", err)
		http.Error(w, "create profile failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(profileToResponse(profile))
}

// GET /api/v1/creators?niche=fitness
func (h *Handler) ListCreators(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	list, err := h.svc.ListCreators(r.Context(), r.URL.Query().Get("niche"))
	if err != nil {
		h.log.Error("list creators failed", "error", err)
		http.Error(w, "list creators failed", http.StatusInternalServerError)
		return
	}
	resp := make([]CreatorProfileResponse, 0, len(list))
	for _, p := range list {
		resp = append(resp, profileToResponse(p))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// GET /api/v1/creators/{slug} and POST /api/v1/creators/{id}/publish
func (h *Handler) Item(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/creators/")
	parts := strings.SplitN(strings.Trim(path, "/"), "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	if len(parts) == 2 && parts[1] == "publish" {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		accountID, _, err := h.identityFromRequest(r)
		if err != nil || accountID == uuid.Nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		profileID, err := uuid.Parse(parts[0])
		if err != nil {
			http.Error(w, "invalid profile id", http.StatusBadRequest)
			return
		}
		if err := h.svc.PublishProfile(r.Context(), accountID, profileID); err != nil {
			h.log.Error("publish profile failed", "error", err)
			http.Error(w, "publish failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	profile, err := h.svc.GetBySlug(r.Context(), parts[0])
	if err != nil {
		http.Error(w, "creator not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(profileToResponse(profile))
}

func (h *Handler) identityFromRequest(r *http.Request) (uuid.UUID, string, error) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return uuid.Nil, "", nil
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return uuid.Nil, "", nil
	}
	token := strings.TrimSpace(authz[len(prefix):])
	if token == "" {
		return uuid.Nil, "", nil
	}
	return h.authSvc.ValidateToken(r.Context(), token)
}

func profileToResponse(p *CreatorProfile) CreatorProfileResponse {
	return CreatorProfileResponse{
		ID:                 p.ID.String(),
		DisplayName:        p.DisplayName,
		Slug:               p.Slug,
		Bio:                p.Bio,
		Niches:             p.Niches,
		Platforms:          p.Platforms,
		FollowerCount:      p.FollowerCount,
		MinDealAmountCents: p.MinDealAmountCents,
		Status:             p.Status,
		CompletedDeals:     p.CompletedDeals,
	}
}
