package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggerIsSafe(t *testing.T) {
	// Package-level default must never be nil, even before Initialize
	require.NotNil(t, Logger)
	Infow("no-op logging before init", "key", "value")
}

func TestInitialize(t *testing.T) {
	err := Initialize(false)
	require.NoError(t, err)
	assert.False(t, JSONOutput)

	err = Initialize(true)
	require.NoError(t, err)
	assert.True(t, JSONOutput)

	Cleanup()
}

func TestNamed(t *testing.T) {
	require.NoError(t, Initialize(true))
	child := Named("dispatcher")
	require.NotNil(t, child)
	child.Infow("named logger works")
}
