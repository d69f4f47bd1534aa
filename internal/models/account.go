package models

import (
	"time"

	"github.com/google/uuid"
)

// SystemEscrowAccountID holds funds committed to deals but not yet released.
var SystemEscrowAccountID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type Account struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Company         string    `json:"company,omitempty"`
	PasswordHash    string    `json:"-"`
	Role            string    `json:"role"` // Creator | Marketer
	BalanceCents    int64     `json:"balance_cents"`
	HoldCents       int64     `json:"hold_cents"`
	WebhookURL      string    `json:"webhook_url,omitempty"`
	IsSystemAccount bool      `json:"is_system_account"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
