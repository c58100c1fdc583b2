package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	contextutils "learnapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewConfig_LoadsFromYAML(t *testing.T) {
	path := createTempConfigFile(t, `
server:
  port: "9090"
  debug: true
  cors_origins:
    - "http://test:3000"
ai:
  provider: openai
  model: gpt-4o-mini
  api_key: sk-test
pipeline:
  batch_size: 4
  batch_delay: 250ms
  generation_max_attempts: 3
providers:
  - name: OpenAI
    code: openai
    url: "http://test:8080/v1"
    supports_json: true
    models:
      - name: mini
        code: gpt-4o-mini
        max_tokens: 1024
open_telemetry:
  service_name: test-service
  sampling_rate: 0.5
`)
	t.Setenv("LEARNAPP_CONFIG_FILE", path)

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, []string{"http://test:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, 4, cfg.Pipeline.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.BatchDelay)
	assert.Equal(t, 3, cfg.Pipeline.GenerationMaxAttempts)
	assert.Equal(t, 1024, cfg.MaxTokensFor("openai", "gpt-4o-mini"))
	assert.Equal(t, 0.5, cfg.OpenTelemetry.SamplingRate)

	// untouched sections keep their defaults
	assert.Equal(t, 20, cfg.Pipeline.MinTextLength)
	assert.Equal(t, 10000, cfg.Pipeline.MaxTextLength)
	assert.Equal(t, 3, cfg.Pipeline.OCRMaxAttempts)
	assert.Equal(t, 36_000_000, cfg.Pipeline.MaxDecodePixels)
	assert.Len(t, cfg.Subjects, 5)
	assert.Len(t, cfg.Difficulties, 4)
}

func TestNewConfig_EnvironmentVariableOverrides(t *testing.T) {
	path := createTempConfigFile(t, `
server:
  port: "8080"
`)
	t.Setenv("LEARNAPP_CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("AI_API_KEY", "from-env")
	t.Setenv("AI_TEMPERATURE", "0.2")
	t.Setenv("PIPELINE_BACKOFF_BASE", "10ms")
	t.Setenv("PIPELINE_MAX_DECODE_PIXELS", "1000000")
	t.Setenv("SERVER_CORS_ORIGINS", "http://a,http://b")
	t.Setenv("OPEN_TELEMETRY_ENABLE_LOGGING", "true")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.AI.APIKey)
	assert.InDelta(t, 0.2, cfg.AI.Temperature, 1e-9)
	assert.Equal(t, 10*time.Millisecond, cfg.Pipeline.BackoffBase)
	assert.Equal(t, 1_000_000, cfg.Pipeline.MaxDecodePixels)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.OpenTelemetry.EnableLogging)
}

func TestNewConfig_LegacyEnvironmentNames(t *testing.T) {
	path := createTempConfigFile(t, "server:\n  port: \"8080\"\n")
	t.Setenv("LEARNAPP_CONFIG_FILE", path)
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("FRONTEND_URL", "https://app.example.com, http://localhost:3000")
	t.Setenv("PORT", "5000")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "gemini-key", cfg.AI.APIKey)
	assert.Equal(t, []string{"https://app.example.com", "http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "5000", cfg.Server.Port)
}

func TestNewConfig_MissingExplicitFile(t *testing.T) {
	t.Setenv("LEARNAPP_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := NewConfig()
	assert.Error(t, err)
}

func TestNewConfig_InvalidYAML(t *testing.T) {
	path := createTempConfigFile(t, "server: [unclosed")
	t.Setenv("LEARNAPP_CONFIG_FILE", path)
	_, err := NewConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Pipeline.MinTextLength = 500
	cfg.Pipeline.MaxTextLength = 100
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Pipeline.BatchSize = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.AI.Provider = "unknown"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.AI.Temperature = 3
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeValidationFailed, contextutils.GetErrorCode(err))

	cfg = Default()
	cfg.Server.Port = "http"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Pipeline.JPEGQuality = 101
	assert.Error(t, cfg.Validate())
}

func TestCatalogLookups(t *testing.T) {
	cfg := Default()

	s, ok := cfg.Subject("science")
	require.True(t, ok)
	assert.Equal(t, "理科", s.Name)
	assert.Contains(t, s.Keywords, "実験")

	d, ok := cfg.Difficulty("challenge")
	require.True(t, ok)
	assert.Equal(t, "20-30%", d.TargetAccuracy)

	_, ok = cfg.Subject("auto")
	assert.False(t, ok)

	assert.Equal(t, 8192, cfg.MaxTokensFor("gemini", "gemini-1.5-flash"))
	assert.Equal(t, cfg.AI.MaxOutputTokens, cfg.MaxTokensFor("nope", "x"))
}

func TestParse_EmptyDocumentKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, Default().Pipeline, cfg.Pipeline)
	assert.Equal(t, "3001", cfg.Server.Port)
}
