package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	logger, err := New("debug", true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	_, err = New("loud", false)
	assert.Error(t, err)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****4321", Mask("5511987654321"))
	assert.Equal(t, "****", Mask("123"))
	assert.Equal(t, "participant", Participant("5511987654321").Key)
}
