package apperror

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstructorsSetKind(t *testing.T) {
	require.Equal(t, KindValidation, KindOf(Validation("bad field %s", "x")))
	require.Equal(t, KindConflict, KindOf(Conflict("already open")))
	require.Equal(t, KindNotFound, KindOf(NotFound("chat %d", 1)))
	require.Equal(t, KindTransient, KindOf(Transient(errors.New("boom"), "retry later")))
	require.Equal(t, KindFatal, KindOf(Fatal(errors.New("boom"), "unrecoverable")))
}

func TestWrapPreservesExistingKind(t *testing.T) {
	original := NotFound("request missing")
	wrapped := Wrap(original, "while updating")
	require.Equal(t, KindNotFound, wrapped.Kind)
}

func TestWrapDefaultsToTransient(t *testing.T) {
	wrapped := Wrap(errors.New("db connection refused"), "querying chats")
	require.Equal(t, KindTransient, wrapped.Kind)
	require.ErrorIs(t, wrapped, wrapped.Cause)
}

func TestWrapNilReturnsNil(t *testing.T) {
	require.Nil(t, Wrap(nil, "unused"))
}

func TestIs(t *testing.T) {
	require.True(t, Is(Conflict("dup"), KindConflict))
	require.False(t, Is(Conflict("dup"), KindFatal))
}

func TestErrorStringIncludesCauseWhenPresent(t *testing.T) {
	err := Transient(errors.New("dial tcp refused"), "connecting to redis")
	require.Contains(t, err.Error(), "connecting to redis")
	require.Contains(t, err.Error(), "dial tcp refused")
}
