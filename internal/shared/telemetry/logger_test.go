package telemetry

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoWritesJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("info", "json", &buf)
	t.Cleanup(func() { Init("info", "json") })

	Info("batch.item", map[string]any{"status": "OK", "index": 2})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "batch.item", entry["message"])
	assert.Equal(t, "OK", entry["status"])
	assert.EqualValues(t, 2, entry["index"])
	assert.Contains(t, entry, "time")
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("warn", "json", &buf)
	t.Cleanup(func() { InitWithWriter("info", "json", os.Stdout) })

	Debug("hidden", nil)
	Info("hidden", nil)
	Warn("shown", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "shown")
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("loud", "", &buf)
	t.Cleanup(func() { InitWithWriter("info", "json", os.Stdout) })

	Debug("hidden", nil)
	Info("shown", nil)
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}
