package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrorTypeValidation, CodeInvalidRequest, "room is required")
	assert.Equal(t, "[INVALID_REQUEST] room is required", err.Error())

	err = err.WithDetails("field: room")
	assert.Equal(t, "[INVALID_REQUEST] room is required: field: room", err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("sdp parse failed")
	err := Wrap(cause, ErrorTypeNegotiation, CodeNegotiationFailed, "engine rejected offer")

	assert.Contains(t, err.Error(), "sdp parse failed")
	assert.Same(t, cause, stderrors.Unwrap(err))
	assert.True(t, stderrors.Is(err, cause))
}

func TestIsMatchesOnTypeAndCode(t *testing.T) {
	err := New(ErrorTypeTimeout, CodeEngineTimeout, "engine did not answer")

	assert.True(t, stderrors.Is(err, New(ErrorTypeTimeout, CodeEngineTimeout, "other message")))
	assert.False(t, stderrors.Is(err, New(ErrorTypeInternal, CodeInternal, "other")))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeValidation,
		TypeOf(New(ErrorTypeValidation, CodeInvalidRequest, "bad")))
	assert.Equal(t, ErrorTypeInternal, TypeOf(stderrors.New("plain")))

	wrapped := fmt.Errorf("request failed: %w",
		New(ErrorTypeNegotiation, CodeNegotiationFailed, "rejected"))
	assert.Equal(t, ErrorTypeNegotiation, TypeOf(wrapped))
}

func TestWrapTimestampSet(t *testing.T) {
	err := Wrap(stderrors.New("x"), ErrorTypeInternal, CodeInternal, "boom")
	require.False(t, err.Timestamp.IsZero())
}
