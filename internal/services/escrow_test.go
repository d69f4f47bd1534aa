package services

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/dealflow/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func baseDeal(paymentAmount int64) *models.Deal {
	return &models.Deal{
		ID:         uuid.New(),
		DealNumber: "DL-TEST0001",
		MarketerID: uuid.New(),
		CreatorID:  uuid.New(),
		Status:     models.DealStatusAccepted,
		PaymentInfo: models.PaymentInfo{
			PaymentAmount: paymentAmount,
			Transactions:  []models.Transaction{},
		},
	}
}

func tx(txType string, amount int64, milestoneID *uuid.UUID) models.Transaction {
	return models.Transaction{
		TransactionID: uuid.New(),
		Type:          txType,
		PaymentAmount: amount,
		MilestoneID:   milestoneID,
		CreatedAt:     testNow,
	}
}

func milestone(amount, bonus int64, status string) models.Milestone {
	return models.Milestone{
		ID:     uuid.New(),
		Name:   "milestone",
		Amount: amount,
		Bonus:  bonus,
		Status: status,
	}
}

// ---------------------------------------------------------------------------
// Summarize
// ---------------------------------------------------------------------------

// Canonical fixture: base 1000, one completed milestone of 200, no
// transactions. The completed milestone is paid, grows the project price and
// nets escrow to zero.
func TestSummarize_CompletedMilestoneFixture(t *testing.T) {
	d := baseDeal(1000)
	d.Milestones = []models.Milestone{milestone(200, 0, models.MilestoneStatusCompleted)}

	s := Summarize(d)
	if s.MilestonesPaidAmount != 200 {
		t.Errorf("paid amount: got %d, want 200", s.MilestonesPaidAmount)
	}
	if s.MilestonesPaidCount != 1 {
		t.Errorf("paid count: got %d, want 1", s.MilestonesPaidCount)
	}
	if s.ProjectPrice != 1200 {
		t.Errorf("project price: got %d, want 1200", s.ProjectPrice)
	}
	if s.InEscrow != 0 {
		t.Errorf("in escrow: got %d, want 0", s.InEscrow)
	}
	if s.TotalEarnings != 200 {
		t.Errorf("total earnings: got %d, want 200", s.TotalEarnings)
	}
	if s.MilestonesRemainingCount != 0 {
		t.Errorf("remaining count: got %d, want 0", s.MilestonesRemainingCount)
	}
}

func TestSummarize_IsPure(t *testing.T) {
	d := baseDeal(1000)
	d.PaymentInfo.Transactions = []models.Transaction{
		tx(models.TransactionEscrow, 1000, nil),
		tx(models.TransactionReleaseHalf, 500, nil),
	}
	d.Milestones = []models.Milestone{
		milestone(300, 50, models.MilestoneStatusActive),
		milestone(200, 0, models.MilestoneStatusCompleted),
	}
	before := *d
	beforeTxs := append([]models.Transaction(nil), d.PaymentInfo.Transactions...)

	first := Summarize(d)
	second := Summarize(d)
	if first != second {
		t.Errorf("summarize is not deterministic: %+v vs %+v", first, second)
	}
	if !reflect.DeepEqual(before.PaymentInfo.PaymentAmount, d.PaymentInfo.PaymentAmount) ||
		!reflect.DeepEqual(beforeTxs, d.PaymentInfo.Transactions) {
		t.Error("summarize mutated the deal document")
	}
}

func TestSummarize_CancelledZeroesEverything(t *testing.T) {
	d := baseDeal(1000)
	d.Status = models.DealStatusCancelled
	d.PaymentInfo.Transactions = []models.Transaction{tx(models.TransactionEscrow, 1000, nil)}
	d.Milestones = []models.Milestone{milestone(200, 0, models.MilestoneStatusCompleted)}

	s := Summarize(d)
	want := DealSummary{ProjectPrice: 1000}
	if s != want {
		t.Errorf("cancelled deal: got %+v, want %+v", s, want)
	}
}

func TestSummarize_ReleasesOffsetEscrow(t *testing.T) {
	d := baseDeal(1000)
	d.PaymentInfo.Transactions = []models.Transaction{
		tx(models.TransactionEscrow, 1000, nil),
		tx(models.TransactionReleaseHalf, 500, nil),
	}

	s := Summarize(d)
	if s.InEscrow != 500 {
		t.Errorf("in escrow: got %d, want 500", s.InEscrow)
	}
	if s.TotalEarnings != 500 {
		t.Errorf("total earnings: got %d, want 500", s.TotalEarnings)
	}
}

// Milestone-tied escrow transactions are skipped in the ledger pass; the
// milestone's own status drives the accounting.
func TestSummarize_MilestoneTxSkipped(t *testing.T) {
	d := baseDeal(1000)
	m := milestone(300, 0, models.MilestoneStatusActive)
	d.Milestones = []models.Milestone{m}
	d.PaymentInfo.Transactions = []models.Transaction{
		tx(models.TransactionEscrow, 300, &m.ID),
	}

	s := Summarize(d)
	if s.InEscrow != 300 {
		t.Errorf("in escrow: got %d, want 300 (from milestone status, counted once)", s.InEscrow)
	}
}

// An in-flight milestone is both escrowed and remaining: "remaining" means
// not yet paid out, not "not yet escrowed".
func TestSummarize_InFlightMilestoneCountsBoth(t *testing.T) {
	for _, status := range []string{
		models.MilestoneStatusActive,
		models.MilestoneStatusInReview,
		models.MilestoneStatusRevisionRequired,
	} {
		d := baseDeal(1000)
		d.Milestones = []models.Milestone{milestone(300, 50, status)}

		s := Summarize(d)
		if s.InEscrow != 350 {
			t.Errorf("%s: in escrow got %d, want 350", status, s.InEscrow)
		}
		if s.MilestonesRemainingCount != 1 || s.MilestonesRemainingAmount != 350 {
			t.Errorf("%s: remaining got %d/%d, want 1/350", status, s.MilestonesRemainingCount, s.MilestonesRemainingAmount)
		}
		if s.MilestonesPaidCount != 0 {
			t.Errorf("%s: paid count got %d, want 0", status, s.MilestonesPaidCount)
		}
		if s.ProjectPrice != 1350 {
			t.Errorf("%s: project price got %d, want 1350", status, s.ProjectPrice)
		}
	}
}

// A milestone in status paid is added to escrow and immediately paid back
// out: net zero escrow, counted as paid, never as remaining.
func TestSummarize_PaidMilestone(t *testing.T) {
	d := baseDeal(1000)
	d.Milestones = []models.Milestone{milestone(400, 0, models.MilestoneStatusPaid)}

	s := Summarize(d)
	if s.InEscrow != 0 {
		t.Errorf("in escrow: got %d, want 0", s.InEscrow)
	}
	if s.MilestonesPaidCount != 1 || s.MilestonesPaidAmount != 400 {
		t.Errorf("paid: got %d/%d, want 1/400", s.MilestonesPaidCount, s.MilestonesPaidAmount)
	}
	if s.MilestonesRemainingCount != 0 {
		t.Errorf("remaining count: got %d, want 0", s.MilestonesRemainingCount)
	}
	if s.TotalEarnings != 400 {
		t.Errorf("total earnings: got %d, want 400", s.TotalEarnings)
	}
}

func TestSummarize_PendingMilestoneOnlyRemaining(t *testing.T) {
	d := baseDeal(1000)
	d.Milestones = []models.Milestone{milestone(250, 0, models.MilestoneStatusPending)}

	s := Summarize(d)
	if s.InEscrow != 0 {
		t.Errorf("pending milestone must not be in escrow: got %d", s.InEscrow)
	}
	if s.MilestonesRemainingAmount != 250 {
		t.Errorf("remaining amount: got %d, want 250", s.MilestonesRemainingAmount)
	}
}

// ---------------------------------------------------------------------------
// Release gating
// ---------------------------------------------------------------------------

func TestCanReleaseFirstHalf(t *testing.T) {
	d := baseDeal(1000)
	if !CanReleaseFirstHalf(d) {
		t.Error("accepted deal with no release should allow the first half")
	}

	d.Status = models.DealStatusContentSubmitted
	if !CanReleaseFirstHalf(d) {
		t.Error("content-submitted deal should allow the first half")
	}

	d.Status = models.DealStatusInProcess
	if CanReleaseFirstHalf(d) {
		t.Error("in-process deal should not allow the first half")
	}

	d.Status = models.DealStatusAccepted
	d.PaymentInfo.Transactions = []models.Transaction{tx(models.TransactionReleaseHalf, 500, nil)}
	if CanReleaseFirstHalf(d) {
		t.Error("first half is a one-shot action")
	}
}

func TestCanReleaseFinal(t *testing.T) {
	d := baseDeal(1000)
	if CanReleaseFinal(d) {
		t.Error("final release requires an existing release_half")
	}
	d.PaymentInfo.Transactions = []models.Transaction{tx(models.TransactionReleaseHalf, 500, nil)}
	if !CanReleaseFinal(d) {
		t.Error("release_half present: final release should be allowed")
	}
}

func TestReleaseFirstHalf(t *testing.T) {
	d := baseDeal(1000)

	out, err := ReleaseFirstHalf(d, testNow)
	if err != nil {
		t.Fatalf("ReleaseFirstHalf: %v", err)
	}
	if n := len(out.PaymentInfo.Transactions); n != 1 {
		t.Fatalf("transactions: got %d, want 1", n)
	}
	got := out.PaymentInfo.Transactions[0]
	if got.Type != models.TransactionReleaseHalf || got.PaymentAmount != 500 {
		t.Errorf("release tx: got %s/%d, want release_half/500", got.Type, got.PaymentAmount)
	}

	if _, err := ReleaseFirstHalf(out, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("repeated first-half release: expected ErrInvalidTransition, got %v", err)
	}
}

func TestReleaseFinal(t *testing.T) {
	d := baseDeal(1000)

	// Without the first half the final release must fail.
	if _, err := ReleaseFinal(d, testNow); !errors.Is(err, ErrPrerequisiteNotMet) {
		t.Fatalf("expected ErrPrerequisiteNotMet, got %v", err)
	}

	half, err := ReleaseFirstHalf(d, testNow)
	if err != nil {
		t.Fatalf("ReleaseFirstHalf: %v", err)
	}
	out, err := ReleaseFinal(half, testNow)
	if err != nil {
		t.Fatalf("ReleaseFinal: %v", err)
	}
	final := out.PaymentInfo.Transactions[len(out.PaymentInfo.Transactions)-1]
	if final.Type != models.TransactionReleaseFinal {
		t.Errorf("tx type: got %s, want release_final", final.Type)
	}
	// Final release pays the unreleased remainder.
	if final.PaymentAmount != 500 {
		t.Errorf("final amount: got %d, want 500", final.PaymentAmount)
	}
	if out.Status != models.DealStatusCompletionIssued {
		t.Errorf("deal status: got %q, want %q", out.Status, models.DealStatusCompletionIssued)
	}
}

func TestFundEscrow(t *testing.T) {
	d := baseDeal(1000)
	out, err := FundEscrow(d, 1000, testNow)
	if err != nil {
		t.Fatalf("FundEscrow: %v", err)
	}
	if n := len(out.PaymentInfo.Transactions); n != 1 {
		t.Fatalf("transactions: got %d, want 1", n)
	}
	if out.PaymentInfo.Transactions[0].Type != models.TransactionEscrow {
		t.Error("expected an escrow transaction")
	}

	if _, err := FundEscrow(d, 0, testNow); !errors.Is(err, ErrValidation) {
		t.Errorf("zero amount: expected ErrValidation, got %v", err)
	}
	d.Status = models.DealStatusCancelled
	if _, err := FundEscrow(d, 100, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("cancelled deal: expected ErrInvalidTransition, got %v", err)
	}
}
