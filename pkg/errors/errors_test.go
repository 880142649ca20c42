package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapAndCode(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap("network_error", "load cities", cause)

	require.EqualError(t, err, "load cities: dial tcp: refused")
	require.ErrorIs(t, err, cause)
	require.True(t, IsCode(err, "network_error"))
	require.False(t, IsCode(err, "decode_error"))

	wrapped := fmt.Errorf("session: %w", err)
	require.Equal(t, "network_error", CodeOf(wrapped))
}

func TestCodeOfPlainError(t *testing.T) {
	require.Empty(t, CodeOf(errors.New("boom")))
	require.Empty(t, CodeOf(nil))
	require.False(t, IsCode(nil, ""))
}

func TestNewHasNoCause(t *testing.T) {
	err := New("not_found", "unknown city \"x\"")

	require.EqualError(t, err, "unknown city \"x\"")
	require.Nil(t, errors.Unwrap(err))
	require.True(t, IsCode(err, "not_found"))
}

func TestMessageOf(t *testing.T) {
	err := fmt.Errorf("handler: %w", Wrap("network_error", "load cities", errors.New("dial tcp: refused")))

	require.Equal(t, "load cities", MessageOf(err))
	require.Equal(t, "boom", MessageOf(errors.New("boom")))
	require.Equal(t, "", MessageOf(nil))
}
