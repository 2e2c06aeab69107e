package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerCarriesStreamFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", "json")

	log.WithStream("ad-1", "voice").Info("created version", "version_id", "v3")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "created version", entry["msg"])
	assert.Equal(t, "ad-1", entry["ad_id"])
	assert.Equal(t, "voice", entry["stream"])
	assert.Equal(t, "v3", entry["version_id"])
}

func TestErrorAddsStack(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "json")

	log.Error("store write failed", "key", "ad:1:mixer")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotEmpty(t, entry["stack"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "json")

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestWithContextRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "json")

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-42")
	log.WithContext(ctx).Info("hello")

	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
}
