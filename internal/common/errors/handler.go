// internal/common/errors/handler.go
package errors

import (
	"barbearia-twowell/internal/common/metrics"
)

// ErrorHandler logs and counts errors caught at the turn boundary.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleTurnError records an error that ended (or degraded) a conversation turn.
// It never returns the error: every failure is absorbed here so the event loop
// keeps running.
func (h *ErrorHandler) HandleTurnError(turnID, senderID string, err error) *StandardError {
	if err == nil {
		return nil
	}
	stdErr := Normalize(err)

	fields := map[string]interface{}{
		"turnId":        turnID,
		"senderId":      senderID,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}

	// user typos are expected traffic, not failures
	if IsParseError(stdErr) {
		h.logger.Warn("Turn input rejected", fields)
	} else {
		h.logger.Error("Turn failed", fields)
	}

	metrics.TurnErrors.WithLabelValues(string(stdErr.Code)).Inc()
	return stdErr
}
