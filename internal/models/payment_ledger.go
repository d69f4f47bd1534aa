package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment ledger entry types.
const (
	LedgerEntryEscrowHold    = "ESCROW_HOLD"
	LedgerEntryEscrowRelease = "ESCROW_RELEASE"
	LedgerEntryEscrowRefund  = "ESCROW_REFUND"
	LedgerEntryDeposit       = "DEPOSIT"
)

// PaymentLedger is one account-level balance movement. Amount is signed in
// cents; BalanceAfter snapshots the account balance after the movement.
type PaymentLedger struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    uuid.UUID  `json:"account_id"`
	DealID       *uuid.UUID `json:"deal_id,omitempty"`
	MilestoneID  *uuid.UUID `json:"milestone_id,omitempty"`
	EntryType    string     `json:"entry_type"`
	Amount       int64      `json:"amount"`
	BalanceAfter int64      `json:"balance_after"`
	CreatedAt    time.Time  `json:"created_at"`
}
