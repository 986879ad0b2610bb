package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := NotFound("session %q not found", "abc")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, `session "abc" not found`, err.Error())
}

func TestKindOfWrapped(t *testing.T) {
	wrapped := fmt.Errorf("claim: %w", Validation("territoryId is required"))

	assert.Equal(t, KindValidation, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := Wrap(KindValidation, cause, "invalid payload")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "invalid payload: unexpected end of JSON input", err.Error())
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("nil map write")
	err := Internal(cause)
	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal error", err.Message)
}

func TestErrorKeepsCauseWithoutMessage(t *testing.T) {
	err := &Error{Kind: KindNotFound, Cause: errors.New("row 7")}
	assert.Equal(t, "not_found: row 7", err.Error())
	assert.Equal(t, "not_found", (&Error{Kind: KindNotFound}).Error())
}
