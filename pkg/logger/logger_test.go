package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesComponentAndFieldsAsJSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	WarnCF("store", "backend failed, using local fallback", map[string]interface{}{
		"op": "put",
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "store", entry["component"])
	assert.Equal(t, "put", entry["op"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "backend failed, using local fallback", entry["message"])
}

func TestLogger_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	SetLevel(INFO)
	DebugC("agent", "hidden")
	assert.Zero(t, buf.Len())

	SetLevel(DEBUG)
	defer SetLevel(INFO)
	DebugC("agent", "shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Equal(t, DEBUG, GetLevel())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warn"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}
