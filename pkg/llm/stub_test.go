package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/omniwaifu/dere-sub005/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decision struct {
	Send       bool    `json:"send"`
	Message    string  `json:"message"`
	Confidence float64 `json:"confidence"`
}

func TestStubAdapterStructuredRoundTrips(t *testing.T) {
	stub := llm.NewStub()
	stub.StructuredResult = decision{Send: true, Message: "ship it", Confidence: 0.8}

	var out decision
	err := stub.Structured(t.Context(), "should I send?", nil, "AmbientMissionDecision", &out)
	require.NoError(t, err)
	assert.True(t, out.Send)
	assert.Equal(t, "ship it", out.Message)
}

func TestRetryingAdapterStopsOnValidationError(t *testing.T) {
	attempts := 0
	stub := &llm.StubAdapter{
		TextFn: func(ctx context.Context, prompt string) (string, error) {
			attempts++
			return "", llm.NewError(llm.ErrorKindValidation, errors.New("bad schema"))
		},
	}
	retrying := llm.NewRetrying(stub, llm.WithMaxRetries(5))

	_, err := retrying.Text(t.Context(), "hi")
	assert.True(t, llm.IsKind(err, llm.ErrorKindValidation))
	assert.Equal(t, 1, attempts, "validation errors must not be retried")
}

func TestRetryingAdapterRetriesTransportError(t *testing.T) {
	attempts := 0
	stub := &llm.StubAdapter{
		TextFn: func(ctx context.Context, prompt string) (string, error) {
			attempts++
			if attempts < 3 {
				return "", llm.NewError(llm.ErrorKindTransport, errors.New("connection reset"))
			}
			return "ok", nil
		},
	}
	retrying := llm.NewRetrying(stub, llm.WithMaxRetries(5))

	out, err := retrying.Text(t.Context(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, attempts)
}
