package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/dealflow/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Proof submissions
// ---------------------------------------------------------------------------

func TestSubmitProof(t *testing.T) {
	d := baseDeal(1000_00)

	out, err := SubmitProof(d, []string{"post-screenshot.png"}, false, testNow)
	if err != nil {
		t.Fatalf("SubmitProof: %v", err)
	}
	if n := len(out.ProofSubmissions); n != 1 {
		t.Fatalf("proofs: got %d, want 1", n)
	}
	proof := out.ProofSubmissions[0]
	if proof.Status != models.ProofStatusPendingReview {
		t.Errorf("proof status: got %q, want pending_review", proof.Status)
	}
	if proof.SubmittedBy != models.RoleCreator {
		t.Errorf("submittedBy: got %q, want Creator", proof.SubmittedBy)
	}
	if out.Status != models.DealStatusContentSubmitted {
		t.Errorf("deal status: got %q, want %q", out.Status, models.DealStatusContentSubmitted)
	}

	if _, err := SubmitProof(d, nil, false, testNow); !errors.Is(err, ErrValidation) {
		t.Errorf("no attachments: expected ErrValidation, got %v", err)
	}

	d.Status = models.DealStatusCancelled
	if _, err := SubmitProof(d, []string{"x"}, false, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("cancelled deal: expected ErrInvalidTransition, got %v", err)
	}
}

func TestReviewProof_Approve(t *testing.T) {
	d := baseDeal(1000_00)
	d, err := SubmitProof(d, []string{"shot.png"}, false, testNow)
	if err != nil {
		t.Fatalf("SubmitProof: %v", err)
	}
	proofID := d.ProofSubmissions[0].ID

	out, err := ReviewProof(d, proofID, models.ProofStatusApproved, "", testNow)
	if err != nil {
		t.Fatalf("ReviewProof: %v", err)
	}
	if out.ProofSubmissions[0].Status != models.ProofStatusApproved {
		t.Errorf("proof status: got %q, want approved", out.ProofSubmissions[0].Status)
	}
	if out.Status != models.DealStatusContentApproved {
		t.Errorf("deal status: got %q, want %q", out.Status, models.DealStatusContentApproved)
	}

	// A resolved proof cannot be reviewed again.
	if _, err := ReviewProof(out, proofID, models.ProofStatusApproved, "", testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("re-review: expected ErrInvalidTransition, got %v", err)
	}
}

// Approving the FINAL proof is gated on the first-half release.
func TestReviewProof_FinalGatedOnFirstHalf(t *testing.T) {
	d := baseDeal(1000_00)
	d, err := SubmitProof(d, []string{"final-post.png"}, true, testNow)
	if err != nil {
		t.Fatalf("SubmitProof: %v", err)
	}
	proofID := d.ProofSubmissions[0].ID

	if _, err := ReviewProof(d, proofID, models.ProofStatusApproved, "", testNow); !errors.Is(err, ErrPrerequisiteNotMet) {
		t.Fatalf("final approval without release_half: expected ErrPrerequisiteNotMet, got %v", err)
	}

	// Revision requests are never gated.
	if _, err := ReviewProof(d, proofID, models.ProofStatusRevisionRequired, "wrong caption", testNow); err != nil {
		t.Fatalf("revision on final proof: %v", err)
	}

	released, err := ReleaseFirstHalf(d, testNow)
	if err != nil {
		t.Fatalf("ReleaseFirstHalf: %v", err)
	}
	out, err := ReviewProof(released, proofID, models.ProofStatusApproved, "", testNow)
	if err != nil {
		t.Fatalf("final approval after release_half: %v", err)
	}
	if out.ProofSubmissions[0].Status != models.ProofStatusApproved {
		t.Errorf("proof status: got %q, want approved", out.ProofSubmissions[0].Status)
	}
}

func TestReviewProof_RevisionRecordsFeedback(t *testing.T) {
	d := baseDeal(1000_00)
	d, _ = SubmitProof(d, []string{"shot.png"}, false, testNow)
	proofID := d.ProofSubmissions[0].ID

	out, err := ReviewProof(d, proofID, models.ProofStatusRevisionRequired, "crop the banner", testNow)
	if err != nil {
		t.Fatalf("ReviewProof: %v", err)
	}
	proof := out.ProofSubmissions[0]
	if proof.Status != models.ProofStatusRevisionRequired {
		t.Errorf("proof status: got %q, want revision_required", proof.Status)
	}
	if len(proof.Feedback) != 1 || proof.Feedback[0] != "crop the banner" {
		t.Errorf("proof feedback: %+v", proof.Feedback)
	}
	if len(out.OfferContent.Feedback) != 1 {
		t.Errorf("deal-level feedback: %+v", out.OfferContent.Feedback)
	}
}

func TestReviewProof_UnknownProof(t *testing.T) {
	d := baseDeal(1000_00)
	if _, err := ReviewProof(d, uuid.New(), models.ProofStatusApproved, "", testNow); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown proof: expected ErrValidation, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Deal status transitions
// ---------------------------------------------------------------------------

func TestMarkFinalContentPosted(t *testing.T) {
	d := baseDeal(1000_00)
	d.Status = models.DealStatusContentApproved

	out, err := MarkFinalContentPosted(d, testNow)
	if err != nil {
		t.Fatalf("MarkFinalContentPosted: %v", err)
	}
	if out.Status != models.DealStatusFinalContentPosted {
		t.Errorf("status: got %q, want %q", out.Status, models.DealStatusFinalContentPosted)
	}

	d.Status = models.DealStatusAccepted
	if _, err := MarkFinalContentPosted(d, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("posting before approval: expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancellationFlow(t *testing.T) {
	d := baseDeal(1000_00)

	pending, err := RequestCancellation(d, testNow)
	if err != nil {
		t.Fatalf("RequestCancellation: %v", err)
	}
	if pending.Status != models.DealStatusCancellation {
		t.Fatalf("status: got %q, want Cancellation", pending.Status)
	}

	done, err := ConfirmCancellation(pending, testNow)
	if err != nil {
		t.Fatalf("ConfirmCancellation: %v", err)
	}
	if done.Status != models.DealStatusCancelled {
		t.Errorf("status: got %q, want Cancelled", done.Status)
	}

	if _, err := RequestCancellation(done, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("cancelling a cancelled deal: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := ConfirmCancellation(d, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("confirming without a request: expected ErrInvalidTransition, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Status overlay
// ---------------------------------------------------------------------------

func TestApplyStatusOverlay(t *testing.T) {
	d := baseDeal(1000_00)
	m := milestone(200_00, 0, models.MilestoneStatusActive)
	d.Milestones = []models.Milestone{m}

	overlaid := ApplyStatusOverlay(d, StatusOverlay{m.ID: models.MilestoneStatusCompleted})
	if overlaid.Milestones[0].Status != models.MilestoneStatusCompleted {
		t.Errorf("overlay not applied: got %q", overlaid.Milestones[0].Status)
	}
	// The authoritative document is never mutated.
	if d.Milestones[0].Status != models.MilestoneStatusActive {
		t.Error("overlay mutated the source deal")
	}

	// Unknown milestone IDs in the overlay are ignored.
	out := ApplyStatusOverlay(d, StatusOverlay{uuid.New(): models.MilestoneStatusPaid})
	if out.Milestones[0].Status != models.MilestoneStatusActive {
		t.Error("unknown overlay key must be ignored")
	}

	// The overlay feeds the summary preview.
	s := Summarize(overlaid)
	if s.MilestonesPaidCount != 1 {
		t.Errorf("overlaid summary paid count: got %d, want 1", s.MilestonesPaidCount)
	}
}
