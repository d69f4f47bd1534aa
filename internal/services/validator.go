package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Document types with a registered JSON Schema.
const (
	DocOffer     = "offer"
	DocCounter   = "counter"
	DocMilestone = "milestone"
	DocProof     = "proof"
)

// Validator compiles the per-document-type JSON Schemas from schemaDir and
// hard-rejects malformed create payloads before any engine runs.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator loads all *.json schema files from schemaDir. File names are
// "<doctype>.v1.json"; the version suffix is stripped.
func NewValidator(ctx context.Context, schemaDir string) (*Validator, error) {
	_ = ctx
	entries, err := os.ReadDir(schemaDir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir %q: %w", schemaDir, err)
	}
	schemas := make(map[string]*jsonschema.Schema)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		docType := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		docType = strings.TrimSuffix(docType, ".v1")
		path := filepath.Join(schemaDir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", path, err)
		}
		id := "https://dealflow.dev/schemas/" + docType
		schemas[docType], err = jsonschema.CompileString(id, string(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", docType, err)
		}
	}
	return &Validator{schemas: schemas}, nil
}

// ValidateDocument checks the payload against the document type's schema.
// Schema violations wrap ErrValidation so callers can map them to 422.
func (v *Validator) ValidateDocument(ctx context.Context, docType string, payload json.RawMessage) error {
	_ = ctx
	schema, ok := v.schemas[docType]
	if !ok {
		return fmt.Errorf("unknown document type %q", docType)
	}
	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
