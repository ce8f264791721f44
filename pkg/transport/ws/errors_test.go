package ws

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/Sagnify/peergo/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorCodeUnwraps(t *testing.T) {
	timeout := errors.New(errors.ErrorTypeTimeout, errors.CodeEngineTimeout, "engine did not answer")

	assert.Equal(t, errors.CodeEngineTimeout, errorCode(timeout))
	assert.Equal(t, errors.CodeEngineTimeout,
		errorCode(fmt.Errorf("request failed: %w", timeout)))
	assert.Equal(t, errors.CodeInternal, errorCode(stderrors.New("plain")))
}
