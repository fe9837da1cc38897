package llm

import (
	"context"
	"encoding/json"
)

// StubAdapter is an in-process Adapter for tests and local development. It
// returns canned responses instead of calling a real model, so callers can
// exercise the Structured/Text contract without network access.
type StubAdapter struct {
	// TextFn, when set, is called by Text. Otherwise Text returns TextResult.
	TextFn func(ctx context.Context, prompt string) (string, error)
	// StructuredFn, when set, is called by Structured. Otherwise Structured
	// marshals StructuredResult into out via JSON round-trip.
	StructuredFn func(ctx context.Context, prompt string, schema any, schemaName string) (any, error)

	TextResult       string
	StructuredResult any
}

func NewStub() *StubAdapter {
	return &StubAdapter{}
}

func (s *StubAdapter) Text(ctx context.Context, prompt string) (string, error) {
	if s.TextFn != nil {
		return s.TextFn(ctx, prompt)
	}
	return s.TextResult, nil
}

func (s *StubAdapter) Structured(ctx context.Context, prompt string, schema any, schemaName string, out any) error {
	result := s.StructuredResult
	if s.StructuredFn != nil {
		r, err := s.StructuredFn(ctx, prompt, schema, schemaName)
		if err != nil {
			return err
		}
		result = r
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return NewError(ErrorKindValidation, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return NewError(ErrorKindValidation, err)
	}
	return nil
}
