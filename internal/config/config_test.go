package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GOOGLE_API_KEY", "BOT_NAME", "COMMAND_PREFIX", "ALLOWED_NUMBERS", "ADMIN_NUMBERS",
		"GEMINI_MODEL", "PROMPT_PREAMBLE", "GENERATION_TIMEOUT", "SHOW_TYPING", "STORE_DSN",
		"KEEPALIVE_ADDR", "WEBHOOK_ADDR", "DISPATCH_QUEUE_SIZE", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "  secret ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "WhatsApp AI Bot", cfg.BotName)
	assert.Equal(t, "!", cfg.CommandPrefix)
	assert.Empty(t, cfg.AllowedNumbers)
	assert.Empty(t, cfg.AdminNumbers)
	assert.Equal(t, "gemini-2.0-flash", cfg.Model)
	assert.Zero(t, cfg.GenerationTimeout)
	assert.True(t, cfg.ShowTyping)
	assert.Equal(t, ":3000", cfg.KeepAliveAddr)
	assert.Equal(t, 64, cfg.QueueSize)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "k")
	t.Setenv("ALLOWED_NUMBERS", "+55 11 9999-0000, ,5511888")
	t.Setenv("ADMIN_NUMBERS", "5511999")
	t.Setenv("GENERATION_TIMEOUT", "30s")
	t.Setenv("SHOW_TYPING", "off")
	t.Setenv("DISPATCH_QUEUE_SIZE", "8")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"551199990000", "5511888"}, cfg.AllowedNumbers)
	assert.Equal(t, []string{"5511999"}, cfg.AdminNumbers)
	assert.Equal(t, 30*time.Second, cfg.GenerationTimeout)
	assert.False(t, cfg.ShowTyping)
	assert.Equal(t, 8, cfg.QueueSize)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "k")
	t.Setenv("DISPATCH_QUEUE_SIZE", "0")
	_, err := Load()
	assert.ErrorContains(t, err, "DISPATCH_QUEUE_SIZE")

	t.Setenv("DISPATCH_QUEUE_SIZE", "")
	t.Setenv("LOG_FORMAT", "xml")
	_, err = Load()
	assert.ErrorContains(t, err, "LOG_FORMAT")
}

func TestLoadWithoutKey(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadWithoutKey()
	require.NoError(t, err)
	assert.Empty(t, cfg.APIKey)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "15551234", NormalizePhone("+1 (555) 12-34"))
	assert.Equal(t, "5511999", NormalizePhone("5511999@c.us"))
	assert.Equal(t, "", NormalizePhone("abc"))
}
