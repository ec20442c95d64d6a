package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrConnect,
		ErrExec,
		ErrParse,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	err := New(ErrConfig, "Fleet size must be at least 1", "Set fleet.size in .gpumon.yaml")

	assert.Equal(t, ErrConfig, err.Code)
	assert.Equal(t, "Fleet size must be at least 1", err.Message)
	assert.Equal(t, "Set fleet.size in .gpumon.yaml", err.Suggestion)
	assert.Nil(t, err.Cause)
}

func TestError_Format(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
		excludes []string
	}{
		{
			name:     "message only",
			err:      New(ErrExec, "nvidia-smi exited with status 9", ""),
			contains: []string{"✗ nvidia-smi exited with status 9"},
		},
		{
			name: "message cause and suggestion",
			err: WrapWithCode(fmt.Errorf("dial tcp: i/o timeout"), ErrConnect,
				"Can't reach 'gpu1'", "Host might be offline"),
			contains: []string{"✗ Can't reach 'gpu1'", "dial tcp: i/o timeout", "Host might be offline"},
		},
		{
			name:     "no suggestion section when empty",
			err:      Wrap(fmt.Errorf("boom"), "Connection dropped"),
			contains: []string{"✗ Connection dropped", "boom"},
			excludes: []string{"\n\n  \n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.err.Error()
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestWrap_DefaultsToConnect(t *testing.T) {
	err := Wrap(fmt.Errorf("eof"), "Transport closed")
	assert.Equal(t, ErrConnect, err.Code)
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("handshake failed")
	err := WrapWithCode(cause, ErrConnect, "SSH handshake failed", "")

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestIsCode(t *testing.T) {
	connErr := New(ErrConnect, "unreachable", "")
	wrapped := fmt.Errorf("iteration 3: %w", connErr)

	assert.True(t, IsCode(connErr, ErrConnect))
	assert.True(t, IsCode(wrapped, ErrConnect))
	assert.False(t, IsCode(connErr, ErrExec))
	assert.False(t, IsCode(fmt.Errorf("plain"), ErrConnect))
	assert.False(t, IsCode(nil, ErrConnect))
}

func TestShortAndSummary(t *testing.T) {
	err := WrapWithCode(fmt.Errorf("ssh: unable to authenticate\nmore detail"), ErrConnect,
		"SSH handshake with 'gpu3' didn't go through", "Check your password")

	short := err.Short()
	assert.Equal(t, "SSH handshake with 'gpu3' didn't go through: ssh: unable to authenticate", short)
	assert.False(t, strings.Contains(short, "\n"))

	assert.Equal(t, short, Summary(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, "plain failure", Summary(fmt.Errorf("plain failure\nsecond line")))
	assert.Equal(t, "", Summary(nil))

	require.Equal(t, "no cause", New(ErrExec, "no cause", "x").Short())
}
