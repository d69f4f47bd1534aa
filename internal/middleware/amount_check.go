package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealflow/backend/internal/models"
)

const ctxAmountKey contextKey = "parsed_amount"

// parsedAmount is stored in context so the handler can read the amount
// without re-parsing the body.
type parsedAmount struct {
	Amount int64 `json:"amount"`
	Bonus  int64 `json:"bonus"`
}

// AmountFromCtx returns the amount parsed by AmountCheck, or 0 if not set.
func AmountFromCtx(ctx context.Context) int64 {
	if a, ok := ctx.Value(ctxAmountKey).(*parsedAmount); ok {
		return a.Amount
	}
	return 0
}

// AmountCheck guards milestone-funding requests. It enforces the platform
// minimum on "amount" and verifies the marketer's available balance covers
// amount plus bonus. Reads the body to extract the fields, then replaces
// r.Body so downstream handlers can re-read it.
func AmountCheck(pool *pgxpool.Pool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acc := AccountFromCtx(r.Context())
			if acc == nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			bodyBytes, err := io.ReadAll(r.Body)
			r.Body.Close()
			if err != nil {
				http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
				return
			}
			// Restore body for the handler.
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			var peek parsedAmount
			if err := json.Unmarshal(bodyBytes, &peek); err != nil {
				http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
				return
			}
			if peek.Amount <= 0 {
				http.Error(w, `{"error":"amount must be > 0"}`, http.StatusBadRequest)
				return
			}
			if peek.Amount < models.MinMilestoneAmount {
				http.Error(w, fmt.Sprintf(`{"error":"amount %d is below the minimum %d"}`, peek.Amount, models.MinMilestoneAmount), http.StatusUnprocessableEntity)
				return
			}

			available, err := availableBalanceFn(r.Context(), pool, acc.ID)
			if err != nil {
				http.Error(w, `{"error":"failed to check balance"}`, http.StatusInternalServerError)
				return
			}
			if peek.Amount+peek.Bonus > available {
				http.Error(w, fmt.Sprintf(`{"error":"amount %d exceeds available balance %d"}`, peek.Amount+peek.Bonus, available), http.StatusPaymentRequired)
				return
			}

			ctx := context.WithValue(r.Context(), ctxAmountKey, &peek)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// availableBalanceFn is the function used to read the spendable balance.
// Tests can replace this to avoid hitting a real database.
var availableBalanceFn = defaultAvailableBalance

func defaultAvailableBalance(ctx context.Context, pool *pgxpool.Pool, accountID uuid.UUID) (int64, error) {
	var balance int64
	err := pool.QueryRow(ctx, `
		SELECT balance_cents FROM accounts WHERE id = $1
	`, accountID).Scan(&balance)
	return balance, err
}
