package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	log, err := New("", "")
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestNew_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		log, err := New(level, "json")
		require.NoError(t, err, "level %s", level)
		assert.NotNil(t, log)
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("loud", "console")
	assert.Error(t, err)
}

func TestNew_InvalidFormat(t *testing.T) {
	_, err := New("info", "xml")
	assert.Error(t, err)
}
