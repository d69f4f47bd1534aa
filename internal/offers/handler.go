package offers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dealflow/backend/internal/auth"
	"github.com/dealflow/backend/internal/services"
)

// Request payloads use camelCase JSON, matching the offer document format.

type CreateOfferRequest struct {
	CreatorID         string     `json:"creatorId"`
	OfferName         string     `json:"offerName"`
	Description       string     `json:"description"`
	ProposedAmount    int64      `json:"proposedAmount"`
	Deliverables      []string   `json:"deliverables"`
	DesiredReviewDate *time.Time `json:"desiredReviewDate,omitempty"`
	DesiredPostDate   *time.Time `json:"desiredPostDate,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	Attachments       []string   `json:"attachments,omitempty"`
	Draft             bool       `json:"draft,omitempty"`
}

type CounterRequest struct {
	CounterAmount     int64      `json:"counterAmount"`
	CounterReviewDate *time.Time `json:"counterReviewDate,omitempty"`
	CounterPostDate   *time.Time `json:"counterPostDate,omitempty"`
	Description       string     `json:"description,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	Deliverables      []string   `json:"deliverables,omitempty"`
}

type Handler struct {
	svc       Service
	authSvc   auth.Service
	validator *services.Validator
	log       *slog.Logger
}

func NewHandler(svc Service, authSvc auth.Service, validator *services.Validator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, authSvc: authSvc, validator: validator, log: log}
}

// Collection serves the /offers endpoint: POST creates, GET lists.
func (h *Handler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// Item serves /offers/{id} and /offers/{id}/{action}.
func (h *Handler) Item(w http.ResponseWriter, r *http.Request) {
	offerID, action, ok := extractOfferPath(r)
	if !ok {
		http.Error(w, `{"error":"invalid offer id"}`, http.StatusBadRequest)
		return
	}
	accountID, err := h.accountIDFromRequest(r)
	if err != nil || accountID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if action == "" {
		switch r.Method {
		case http.MethodGet:
			view, err := h.svc.GetOffer(r.Context(), offerID, accountID)
			if err != nil {
				h.writeError(w, "get offer", err)
				return
			}
			writeJSON(w, http.StatusOK, view)
		case http.MethodDelete:
			if err := h.svc.Delete(r.Context(), offerID, accountID); err != nil {
				h.writeError(w, "delete offer", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "send":
		o, err := h.svc.SendOffer(r.Context(), offerID, accountID)
		if err != nil {
			h.writeError(w, "send offer", err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	case "counter":
		h.counter(w, r, offerID, accountID)
	case "accept":
		deal, err := h.svc.Accept(r.Context(), offerID, accountID)
		if err != nil {
			h.writeError(w, "accept offer", err)
			return
		}
		writeJSON(w, http.StatusCreated, deal)
	case "reject":
		o, err := h.svc.Reject(r.Context(), offerID, accountID)
		if err != nil {
			h.writeError(w, "reject offer", err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	case "review":
		o, err := h.svc.MarkInReview(r.Context(), offerID, accountID)
		if err != nil {
			h.writeError(w, "mark offer in review", err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	case "viewed":
		o, err := h.svc.MarkViewed(r.Context(), offerID, accountID)
		if err != nil {
			h.writeError(w, "mark offer viewed", err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	case "cancel":
		o, err := h.svc.Cancel(r.Context(), offerID, accountID)
		if err != nil {
			h.writeError(w, "cancel offer", err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	default:
		http.Error(w, `{"error":"unknown action"}`, http.StatusNotFound)
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	marketerID, err := h.accountIDFromRequest(r)
	if err != nil || marketerID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
		return
	}
	if err := h.validator.ValidateDocument(r.Context(), services.DocOffer, body); err != nil {
		h.writeError(w, "validate offer", err)
		return
	}
	var req CreateOfferRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	creatorID, err := uuid.Parse(req.CreatorID)
	if err != nil {
		http.Error(w, `{"error":"invalid creatorId"}`, http.StatusBadRequest)
		return
	}
	o, err := h.svc.CreateOffer(r.Context(), marketerID, CreateOfferParams{
		CreatorID:         creatorID,
		OfferName:         req.OfferName,
		Description:       req.Description,
		ProposedAmount:    req.ProposedAmount,
		Deliverables:      req.Deliverables,
		DesiredReviewDate: req.DesiredReviewDate,
		DesiredPostDate:   req.DesiredPostDate,
		Notes:             req.Notes,
		Attachments:       req.Attachments,
		Draft:             req.Draft,
	})
	if err != nil {
		h.writeError(w, "create offer", err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil || accountID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	views, err := h.svc.ListByAccount(r.Context(), accountID)
	if err != nil {
		h.writeError(w, "list offers", err)
		return
	}
	if views == nil {
		views = []*OfferView{}
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) counter(w http.ResponseWriter, r *http.Request, offerID, accountID uuid.UUID) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
		return
	}
	if err := h.validator.ValidateDocument(r.Context(), services.DocCounter, body); err != nil {
		h.writeError(w, "validate counter", err)
		return
	}
	var req CounterRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	o, err := h.svc.Counter(r.Context(), offerID, accountID, services.CounterTerms{
		Amount:       req.CounterAmount,
		ReviewDate:   req.CounterReviewDate,
		PostDate:     req.CounterPostDate,
		Description:  req.Description,
		Notes:        req.Notes,
		Deliverables: req.Deliverables,
	})
	if err != nil {
		h.writeError(w, "counter offer", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) accountIDFromRequest(r *http.Request) (uuid.UUID, error) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return uuid.Nil, nil
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return uuid.Nil, nil
	}
	token := strings.TrimSpace(authz[len(prefix):])
	if token == "" {
		return uuid.Nil, nil
	}
	id, _, err := h.authSvc.ValidateToken(r.Context(), token)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// writeError maps engine sentinels to HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not allowed for this party"})
	case errors.Is(err, services.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "offer is not in a state that allows this action"})
	case errors.Is(err, services.ErrPrerequisiteNotMet):
		writeJSON(w, http.StatusPreconditionFailed, map[string]string{"error": "a required prior step has not happened"})
	case errors.Is(err, pgx.ErrNoRows):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "offer not found"})
	default:
		h.log.Error(op, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// extractOfferPath parses /api/v1/offers/{id} or /api/v1/offers/{id}/{action}.
func extractOfferPath(r *http.Request) (uuid.UUID, string, bool) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/offers/")
	parts := strings.SplitN(strings.Trim(path, "/"), "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return uuid.Nil, "", false
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, "", false
	}
	if len(parts) == 2 {
		return id, parts[1], true
	}
	return id, "", true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
