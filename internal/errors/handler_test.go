package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestHandleReturnsErrUnchangedAndRecordsCount(t *testing.T) {
	h := NewHandler(zaptest.NewLogger(t))

	appErr := NewError(ErrorTypeCapacityOverflow, SeverityFatal, "segment overflow").
		WithContext("segment", 3)

	got := h.Handle(appErr)
	assert.Same(t, appErr, got)
	assert.Equal(t, int64(1), h.Counts()[ErrorTypeCapacityOverflow])

	h.Handle(appErr)
	assert.Equal(t, int64(2), h.Counts()[ErrorTypeCapacityOverflow])
}

func TestHandleWrapsPlainErrorsAsAssertion(t *testing.T) {
	h := NewHandler(zaptest.NewLogger(t))

	got := h.Handle(errors.New("boom"))
	assert.Error(t, got)
	assert.Equal(t, int64(1), h.Counts()[ErrorTypeAssertion])
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	appErr := NewError(ErrorTypeInit, SeverityFatal, "init failed").WithError(cause)

	assert.ErrorIs(t, appErr, cause)
	assert.Contains(t, appErr.Error(), "root cause")
}

func TestSafeRecoverSwallowsPanic(t *testing.T) {
	logger := zaptest.NewLogger(t)

	func() {
		defer SafeRecover(logger, "test operation")
		panic("something went wrong")
	}()
}
