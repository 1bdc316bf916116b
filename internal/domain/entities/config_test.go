package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  ServerConfig
		wantErr bool
	}{
		{"valid", ServerConfig{Host: "127.0.0.1", Port: 5000}, false},
		{"zero value", ServerConfig{}, false},
		{"port too large", ServerConfig{Port: 70000}, true},
		{"negative port", ServerConfig{Port: -1}, true},
		{"negative read timeout", ServerConfig{ReadTimeout: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWatcherConfigDefaults(t *testing.T) {
	var cfg WatcherConfig

	assert.Equal(t, 200*time.Millisecond, cfg.GetDebounce())
	assert.Equal(t, 3*time.Second, cfg.GetStopTimeout())
	assert.Equal(t, WatcherModeAuto, cfg.GetMode())
	assert.Contains(t, cfg.GetIgnoreDirs(), ".git")
	assert.Contains(t, cfg.GetIgnoreDirs(), "node_modules")
}

func TestWatcherConfigValidate(t *testing.T) {
	assert.NoError(t, WatcherConfig{Mode: WatcherModeRescan}.Validate())
	assert.Error(t, WatcherConfig{Mode: "polling"}.Validate())
	assert.Error(t, WatcherConfig{DebounceMs: -1}.Validate())
}

func TestGeminiConfigAPIKey(t *testing.T) {
	t.Run("environment wins over file", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "env-key")
		cfg := GeminiConfig{APIKey: "file-key"}
		assert.Equal(t, "env-key", cfg.GetAPIKey())
	})

	t.Run("falls back to file value", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		cfg := GeminiConfig{APIKey: "file-key"}
		assert.Equal(t, "file-key", cfg.GetAPIKey())
	})
}

func TestGeminiConfigModel(t *testing.T) {
	assert.Equal(t, "gemini-2.5-flash", GeminiConfig{}.GetModel())
	assert.Equal(t, "gemini-2.5-pro", GeminiConfig{Model: "gemini-2.5-pro"}.GetModel())
}

func TestLoggingConfigLevel(t *testing.T) {
	assert.Equal(t, LogLevelInfo, LoggingConfig{}.GetLevel())
	assert.Equal(t, LogLevelDebug, LoggingConfig{Level: "debug"}.GetLevel())
	assert.Equal(t, LogLevelWarn, LoggingConfig{Level: "WARNING"}.GetLevel())
	assert.Error(t, LoggingConfig{Level: "chatty"}.Validate())
}

func TestDiscoveryConfigDefaults(t *testing.T) {
	var cfg DiscoveryConfig

	assert.Equal(t, 2, cfg.GetMaxDepth())
	assert.NotEmpty(t, cfg.GetSearchPaths())
}
