package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/reconciler/internal/config"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)

	logger.Info("reconciliation finished", "matched", 3)
	logger.Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "reconciliation finished", line["msg"])
	assert.EqualValues(t, 3, line["matched"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LogConfig{Level: "debug", Format: "logfmt"})
	require.NoError(t, err)

	logger.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNewErrors(t *testing.T) {
	_, err := New(&bytes.Buffer{}, config.LogConfig{Level: "loud"})
	assert.ErrorContains(t, err, "parsing log level")

	_, err = New(&bytes.Buffer{}, config.LogConfig{Format: "xml"})
	assert.ErrorContains(t, err, "unknown log format")
}
