package helpers

import (
	"errors"
	"fmt"
	"testing"

	"quote-relay/src/logger"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestClientMessage(t *testing.T) {
	cause := errors.New("eof")
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{NewConfigurationError("no keys", nil), MsgNotConfigured},
		{NewConnectionError("dial", cause), MsgStreamFailed},
		{fmt.Errorf("wrapped: %w", NewSnapshotFetchError("fetch", cause)), MsgSnapshotFailed},
		{NewValidationError("Symbols required."), "Symbols required."},
		{NewValidationError(""), MsgBadRequest},
		{cause, MsgInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClientMessage(tt.err))
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("rejected")
	err := NewSubscriptionCallError("subscribe", []string{"AAPL", "MSFT"}, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "subscribe AAPL,MSFT failed: rejected", err.Error())

	var subErr *SubscriptionCallError
	assert.True(t, errors.As(err, &subErr))
	assert.Equal(t, "subscribe", subErr.Op)
}

func TestErrorHandlerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := NewErrorHandler(logger.NewWithCore(core, "test"))

	h.Handle(nil, "noop")
	h.Handle(NewMalformedEventError("no price", nil), "ingest")
	h.Handle(NewConnectionError("dial", nil), "stream")

	assert.Equal(t, int64(2), h.ErrorCount())
	entries := logs.All()
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)

	h.ResetErrorCount()
	assert.Equal(t, int64(0), h.ErrorCount())
}
