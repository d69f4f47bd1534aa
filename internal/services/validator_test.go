package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"runtime"
	"testing"
)

func schemasDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot locate test file")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "schemas")
}

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(context.Background(), schemasDir(t))
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

// ---------------------------------------------------------------------------
// Offer payloads
// ---------------------------------------------------------------------------

func TestValidateDocument_Offer(t *testing.T) {
	v := newTestValidator(t)

	valid := json.RawMessage(`{
		"creatorId": "0d4f1b1e-9f4a-4a9e-8d7d-1c6f2a3b4c5d",
		"offerName": "Spring launch reel",
		"description": "One 60s reel on the main channel",
		"proposedAmount": 500000,
		"deliverables": ["1x reel", "3x stories"],
		"draft": false
	}`)
	if err := v.ValidateDocument(context.Background(), DocOffer, valid); err != nil {
		t.Fatalf("valid offer rejected: %v", err)
	}

	missing := json.RawMessage(`{"offerName": "no creator"}`)
	if err := v.ValidateDocument(context.Background(), DocOffer, missing); !errors.Is(err, ErrValidation) {
		t.Errorf("missing fields: expected ErrValidation, got %v", err)
	}

	badType := json.RawMessage(`{
		"creatorId": "0d4f1b1e-9f4a-4a9e-8d7d-1c6f2a3b4c5d",
		"offerName": "bad amount",
		"description": "x",
		"proposedAmount": "five hundred",
		"deliverables": ["1x reel"]
	}`)
	if err := v.ValidateDocument(context.Background(), DocOffer, badType); !errors.Is(err, ErrValidation) {
		t.Errorf("string amount: expected ErrValidation, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Milestone payloads
// ---------------------------------------------------------------------------

func TestValidateDocument_Milestone(t *testing.T) {
	v := newTestValidator(t)

	valid := json.RawMessage(`{"name": "Draft script", "amount": 15000}`)
	if err := v.ValidateDocument(context.Background(), DocMilestone, valid); err != nil {
		t.Fatalf("valid milestone rejected: %v", err)
	}

	// The schema enforces the same floor as the engine.
	belowMin := json.RawMessage(`{"name": "Too cheap", "amount": 9900}`)
	if err := v.ValidateDocument(context.Background(), DocMilestone, belowMin); !errors.Is(err, ErrValidation) {
		t.Errorf("below-minimum amount: expected ErrValidation, got %v", err)
	}
}

func TestValidateDocument_Proof(t *testing.T) {
	v := newTestValidator(t)

	valid := json.RawMessage(`{"attachments": ["post.png"], "final": true}`)
	if err := v.ValidateDocument(context.Background(), DocProof, valid); err != nil {
		t.Fatalf("valid proof rejected: %v", err)
	}

	empty := json.RawMessage(`{"attachments": []}`)
	if err := v.ValidateDocument(context.Background(), DocProof, empty); !errors.Is(err, ErrValidation) {
		t.Errorf("empty attachments: expected ErrValidation, got %v", err)
	}
}

func TestValidateDocument_UnknownTypeAndBadJSON(t *testing.T) {
	v := newTestValidator(t)

	if err := v.ValidateDocument(context.Background(), "invoice", json.RawMessage(`{}`)); err == nil {
		t.Error("unknown document type must error")
	}
	if err := v.ValidateDocument(context.Background(), DocOffer, json.RawMessage(`{not json`)); err == nil {
		t.Error("malformed JSON must error")
	}
}
