package main

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealflow/backend/internal/handlers"
	"github.com/dealflow/backend/internal/ledger"
	"github.com/dealflow/backend/internal/middleware"
	"github.com/dealflow/backend/internal/models"
	"github.com/dealflow/backend/internal/repository"
	"github.com/dealflow/backend/internal/services"
)

// RegisterV1Routes adds the /v1/ deal API endpoints to the given mux.
// Middleware chain: APIKeyAuth -> (AmountCheck on money-committing POSTs) -> handler.
func RegisterV1Routes(
	mux *http.ServeMux,
	pool *pgxpool.Pool,
	apiKeyRepo *repository.APIKeyRepo,
	accountRepo *repository.AccountRepo,
	dealRepo *repository.DealRepo,
	escrow ledger.Service,
	validator *services.Validator,
	insertWebhook handlers.InsertWebhookFunc,
	logger *slog.Logger,
) {
	dh := &handlers.DealHandler{
		Pool:          pool,
		DealRepo:      dealRepo,
		AccountRepo:   accountRepo,
		Escrow:        escrow,
		Validator:     validator,
		InsertWebhook: insertWebhook,
		Logger:        logger,
	}
	mh := &handlers.MilestoneHandler{
		Pool:          pool,
		DealRepo:      dealRepo,
		AccountRepo:   accountRepo,
		Escrow:        escrow,
		Validator:     validator,
		InsertWebhook: insertWebhook,
		Logger:        logger,
	}

	auth := middleware.APIKeyAuth(apiKeyRepo)
	marketerOnly := middleware.RequireRole(models.RoleMarketer)
	amountAuth := middleware.AmountCheck(pool)

	mux.Handle("GET /v1/deals", auth(http.HandlerFunc(dh.ListDeals)))
	mux.Handle("GET /v1/deals/{id}", auth(http.HandlerFunc(dh.GetDeal)))
	mux.Handle("POST /v1/deals/{id}/summary", auth(http.HandlerFunc(dh.PreviewSummary)))

	// Money-committing endpoints carry the amount guard.
	mux.Handle("POST /v1/deals/{id}/fund", auth(marketerOnly(amountAuth(http.HandlerFunc(dh.FundDeal)))))
	mux.Handle("POST /v1/deals/{id}/release-half", auth(marketerOnly(http.HandlerFunc(dh.ReleaseFirstHalf))))
	mux.Handle("POST /v1/deals/{id}/release-final", auth(marketerOnly(http.HandlerFunc(dh.ReleaseFinal))))

	mux.Handle("POST /v1/deals/{id}/proofs", auth(http.HandlerFunc(dh.SubmitProof)))
	mux.Handle("POST /v1/deals/{id}/proofs/{proofId}/review", auth(marketerOnly(http.HandlerFunc(dh.ReviewProof))))
	mux.Handle("POST /v1/deals/{id}/posted", auth(http.HandlerFunc(dh.MarkPosted)))
	mux.Handle("POST /v1/deals/{id}/cancel", auth(http.HandlerFunc(dh.RequestCancellation)))
	mux.Handle("POST /v1/deals/{id}/cancel/confirm", auth(http.HandlerFunc(dh.ConfirmCancellation)))

	mux.Handle("POST /v1/deals/{id}/milestones", auth(marketerOnly(amountAuth(http.HandlerFunc(mh.CreateMilestone)))))
	mux.Handle("PATCH /v1/deals/{id}/milestones/{milestoneId}", auth(marketerOnly(http.HandlerFunc(mh.EditMilestone))))
	mux.Handle("DELETE /v1/deals/{id}/milestones/{milestoneId}", auth(marketerOnly(http.HandlerFunc(mh.DeleteMilestone))))
	mux.Handle("POST /v1/deals/{id}/milestones/{milestoneId}/fund", auth(marketerOnly(http.HandlerFunc(mh.FundMilestone))))
	mux.Handle("POST /v1/deals/{id}/milestones/{milestoneId}/submit", auth(http.HandlerFunc(mh.SubmitWork)))
	mux.Handle("POST /v1/deals/{id}/milestones/{milestoneId}/review", auth(marketerOnly(http.HandlerFunc(mh.ReviewMilestone))))
}
