package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// Event names delivered to account webhooks.
const (
	EventOfferReceived   = "offer.received"
	EventOfferCountered  = "offer.countered"
	EventOfferAccepted   = "offer.accepted"
	EventOfferRejected   = "offer.rejected"
	EventProofSubmitted  = "deal.proof_submitted"
	EventProofReviewed   = "deal.proof_reviewed"
	EventEscrowReleased  = "deal.escrow_released"
	EventMilestoneFunded = "deal.milestone_funded"
	EventDealCancelled   = "deal.cancelled"
)

type WebhookJobArgs struct {
	Event      string          `json:"event"`
	AccountID  uuid.UUID       `json:"account_id"`
	WebhookURL string          `json:"webhook_url"`
	Payload    json.RawMessage `json:"payload"`
}

func (WebhookJobArgs) Kind() string { return "deliver_webhook" }

type WebhookWorker struct {
	river.WorkerDefaults[WebhookJobArgs]
	httpClient *http.Client
	log        *slog.Logger
}

func NewWebhookWorker(log *slog.Logger) *WebhookWorker {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookWorker{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

func (w *WebhookWorker) Work(ctx context.Context, job *river.Job[WebhookJobArgs]) error {
	args := job.Args
	if args.WebhookURL == "" {
		// Account has no webhook configured; nothing to deliver.
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"event":   args.Event,
		"payload": args.Payload,
	})
	if err != nil {
		return fmt.Errorf("encode webhook body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, args.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Dealflow-Event", args.Event)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error delivering webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Returning an error lets the queue retry with backoff.
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	w.log.Info("webhook delivered", "event", args.Event, "account_id", args.AccountID)
	return nil
}
