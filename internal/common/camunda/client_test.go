// internal/common/camunda/client_test.go
package camunda

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"barbearia-twowell/internal/common/errors"
)

func TestIsRetryableZeebeError(t *testing.T) {
	tests := map[string]bool{
		"rpc error: code = Unavailable desc = connection refused": true,
		"context deadline exceeded":                              true,
		"write: broken pipe":                                     true,
		"rpc error: code = InvalidArgument desc = bad name":      false,
		"permission denied":                                      false,
	}
	for msg, want := range tests {
		t.Run(msg, func(t *testing.T) {
			assert.Equal(t, want, isRetryableZeebeError(stderrors.New(msg)))
		})
	}
}

func TestMapZeebeError(t *testing.T) {
	cause := stderrors.New("rpc error: code = Unavailable desc = unavailable")
	err := mapZeebeError(cause, "publish_message")

	assert.True(t, stderrors.Is(err, cause))
	stdErr := errors.Normalize(err)
	assert.Equal(t, errors.ErrCodeNotificationSendFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	assert.Contains(t, stdErr.Details, "publish_message")

	stdErr = errors.Normalize(mapZeebeError(stderrors.New("NOT_FOUND"), "publish_message"))
	assert.False(t, stdErr.Retryable)
}
