package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerIsCachedPerComponent(t *testing.T) {
	var buf bytes.Buffer
	ConfigureOutput(Config{Level: "debug"}, &buf)
	a := NewLogger("hub")
	assert.Same(t, a, NewLogger("hub"))
	assert.NotSame(t, a, NewLogger("bus"))
}

func TestJSONFormatCarriesComponent(t *testing.T) {
	t.Setenv("HYPOLAB_LOG_LEVEL", "")
	var buf bytes.Buffer
	ConfigureOutput(Config{Level: "info", Format: "json"}, &buf)
	NewLogger("server").Debug("hidden")
	NewLogger("server").WithField("sessions", 2).Info("published")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "server", line["component"])
	assert.Equal(t, "published", line["msg"])
	assert.EqualValues(t, 2, line["sessions"])
}

func TestEnvOverridesLevel(t *testing.T) {
	t.Setenv("HYPOLAB_LOG_LEVEL", "error")
	var buf bytes.Buffer
	ConfigureOutput(Config{Level: "debug"}, &buf)
	NewLogger("x").Warn("dropped")
	assert.Empty(t, buf.String())
}

func TestAutoFormatIsJSONOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, "json", resolveFormat("auto", &buf))
	assert.Equal(t, "text", resolveFormat("TEXT", &buf))
}

func TestSetLevelAppliesToExistingEntries(t *testing.T) {
	t.Setenv("HYPOLAB_LOG_LEVEL", "")
	var buf bytes.Buffer
	ConfigureOutput(Config{Level: "info"}, &buf)
	entry := NewLogger("reload")
	entry.Debug("before")
	assert.Empty(t, buf.String())

	require.NoError(t, SetLevel("debug"))
	entry.Debug("after")
	assert.Contains(t, buf.String(), "after")
	assert.Error(t, SetLevel("loud"))
}
