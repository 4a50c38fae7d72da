package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"production", "development", ""} {
		logger, err := NewLogger(env, "scheduling-api")
		require.NoError(t, err, "env %q", env)
		assert.NotNil(t, logger)
		logger.Info("logger ready")
	}
}
