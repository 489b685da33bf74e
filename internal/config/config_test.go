package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedKeys = []string{
	"TUFT_BASE_URL", "TUFT_ASSISTANT_ID", "TUFT_PERSONA", "TUFT_JOURNAL_DIR",
	"TUFT_DEBUG", "TUFT_RAW", "TUFT_HTTP_TIMEOUT", "TUFT_RESPONSE_EXTRAS",
	"LOG_LEVEL", "PORT", "STUB_RESPONSE_SHAPE",
	"ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "Model",
	"ARK_TEMPERATURE", "ARK_TOP_P", "ARK_MAX_TOKENS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:2024", cfg.Client.BaseURL)
	assert.Equal(t, "agent", cfg.Client.AssistantID)
	assert.Equal(t, "tuft", cfg.Client.Persona)
	assert.Zero(t, cfg.Client.Timeout)
	assert.Nil(t, cfg.Client.Extras)
	assert.False(t, cfg.Client.Debug)
	assert.False(t, cfg.Client.Raw)
	assert.Equal(t, "debug_logs", cfg.Journal.Dir)
	assert.Equal(t, "warn", cfg.Log.LevelOr("warn"))
	assert.Equal(t, ":2024", cfg.Stub.Addr)
	assert.Equal(t, "metadata", cfg.Stub.Shape)
	assert.False(t, cfg.AI.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TUFT_BASE_URL", "http://agent.local:9000")
	t.Setenv("TUFT_DEBUG", "true")
	t.Setenv("TUFT_RAW", "1")
	t.Setenv("TUFT_HTTP_TIMEOUT", "30")
	t.Setenv("TUFT_RESPONSE_EXTRAS", "version=1.0, timestamp=auto")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PORT", "127.0.0.1:3000")
	t.Setenv("STUB_RESPONSE_SHAPE", "Content_JSON")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://agent.local:9000", cfg.Client.BaseURL)
	assert.True(t, cfg.Client.Debug)
	assert.True(t, cfg.Client.Raw)
	assert.Equal(t, 30*time.Second, cfg.Client.Timeout)
	assert.Equal(t, map[string]any{"version": "1.0", "timestamp": "auto"}, cfg.Client.Extras)
	assert.Equal(t, "debug", cfg.Log.LevelOr("warn"))
	assert.Equal(t, "127.0.0.1:3000", cfg.Stub.Addr)
	assert.Equal(t, "content_json", cfg.Stub.Shape)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"TUFT_DEBUG", "maybe"},
		{"TUFT_HTTP_TIMEOUT", "soon"},
		{"TUFT_HTTP_TIMEOUT", "-1"},
		{"TUFT_RESPONSE_EXTRAS", "novalue"},
		{"PORT", "80 80"},
		{"ARK_TEMPERATURE", "hot"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestAIConfigEnabled(t *testing.T) {
	assert.False(t, AIConfig{APIKey: "k"}.Enabled())
	assert.True(t, AIConfig{APIKey: "k", Model: "m"}.Enabled())
	assert.True(t, AIConfig{AccessKey: "a", SecretKey: "s", Model: "m"}.Enabled())
	assert.False(t, AIConfig{AccessKey: "a", Model: "m"}.Enabled())
}

func TestParseExtras(t *testing.T) {
	extras, err := ParseExtras(" a=1 ,,b = two ")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": "two"}, extras)

	extras, err = ParseExtras(" , ")
	require.NoError(t, err)
	assert.Nil(t, extras)

	_, err = ParseExtras("=x")
	assert.Error(t, err)
}
