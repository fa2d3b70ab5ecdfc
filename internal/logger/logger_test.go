package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "json", "info", "bot")
	log.Info().Str("phone", "5511").Msg("hello")
	log.Debug().Msg("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "bot", entry["role"])
	assert.Equal(t, "5511", entry["phone"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_UnknownLevel(t *testing.T) {
	log := New(&bytes.Buffer{}, "console", "loud", "")
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestWhatsApp_RaisesFloor(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "json", "info", "")
	wa := WhatsApp(log, "Client")

	wa.Infof("noise %d", 1)
	assert.Empty(t, buf.String())

	wa.Warnf("careful %d", 2)
	assert.Contains(t, buf.String(), "careful 2")
	assert.Contains(t, buf.String(), `"module":"Client"`)
}
