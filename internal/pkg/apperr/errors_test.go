package apperr

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

var errStockShort = New(KindInsufficientResource, "INSUFFICIENT_STOCK")

func TestErrorIsMatchesKindAndCode(t *testing.T) {
	err := errStockShort.Of("insufficient stock: current=%d, requested=%d", 1, 3)

	assert.ErrorIs(t, err, errStockShort)
	assert.ErrorIs(t, err, ErrInsufficientResource)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, New(KindInsufficientResource, "INSUFFICIENT_POINTS"))
	assert.Equal(t, "insufficient stock: current=1, requested=3", err.Error())
}

func TestErrorIsSurvivesWrapping(t *testing.T) {
	base := Newf(KindLockTimeout, "LOCK_TIMEOUT", "row lock not acquired within %s", "3s")
	wrapped := errors.Wrap(fmt.Errorf("decrease stock: %w", base), "create order")

	assert.ErrorIs(t, wrapped, ErrLockTimeout)
	assert.True(t, Retryable(wrapped))
	assert.Equal(t, KindLockTimeout, KindOf(wrapped))
	assert.Equal(t, "LOCK_TIMEOUT", CodeOf(wrapped))
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("boom")))
	assert.False(t, Retryable(fmt.Errorf("boom")))
	assert.Equal(t, "INTERNAL", CodeOf(fmt.Errorf("boom")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("broker unreachable")
	err := Wrap(KindExternalNotify, "EXPORT_FAILED", cause, "order export failed")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrExternalNotify)
	assert.Equal(t, "order export failed: broker unreachable", err.Error())
}
