// Package config handles application configuration loading from YAML, .env and environment variables.
package config

import (
	"errors"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "learnapp/internal/utils"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ProviderConfig defines the structure for a single AI provider
type ProviderConfig struct {
	Name string `json:"name" yaml:"name"`
	Code string `json:"code" yaml:"code"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
	// SupportsJSON marks providers that honour a forced JSON response mode.
	SupportsJSON bool `json:"supports_json,omitempty" yaml:"supports_json,omitempty"`
	// NoAuth marks local providers that accept requests without an API key.
	NoAuth bool      `json:"no_auth,omitempty" yaml:"no_auth,omitempty"`
	Models []AIModel `json:"models" yaml:"models"`
}

// AIModel represents an AI model configuration
type AIModel struct {
	Name      string `json:"name" yaml:"name"`
	Code      string `json:"code" yaml:"code"`
	MaxTokens int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// AIConfig selects the provider and model used by the AI gateway
type AIConfig struct {
	Provider        string        `json:"provider" yaml:"provider"`
	Model           string        `json:"model" yaml:"model"`
	APIKey          string        `json:"-" yaml:"api_key"`
	Temperature     float64       `json:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens int           `json:"max_output_tokens" yaml:"max_output_tokens"`
	RequestTimeout  time.Duration `json:"request_timeout" yaml:"request_timeout"`
}

// PipelineConfig holds the limits and retry settings of the OCR and question pipelines
type PipelineConfig struct {
	MinTextLength          int           `json:"min_text_length" yaml:"min_text_length"`
	MaxTextLength          int           `json:"max_text_length" yaml:"max_text_length"`
	MaxQuestionCount       int           `json:"max_question_count" yaml:"max_question_count"`
	DefaultQuestionCount   int           `json:"default_question_count" yaml:"default_question_count"`
	OCRMaxAttempts         int           `json:"ocr_max_attempts" yaml:"ocr_max_attempts"`
	GenerationMaxAttempts  int           `json:"generation_max_attempts" yaml:"generation_max_attempts"`
	BackoffBase            time.Duration `json:"backoff_base" yaml:"backoff_base"`
	MaxMultipleImages      int           `json:"max_multiple_images" yaml:"max_multiple_images"`
	MaxBatchImages         int           `json:"max_batch_images" yaml:"max_batch_images"`
	BatchSize              int           `json:"batch_size" yaml:"batch_size"`
	BatchDelay             time.Duration `json:"batch_delay" yaml:"batch_delay"`
	MaxImageDimension      int           `json:"max_image_dimension" yaml:"max_image_dimension" validate:"gt=0"`
	JPEGQuality            int           `json:"jpeg_quality" yaml:"jpeg_quality" validate:"min=1,max=100"`
	MaxDecodePixels        int           `json:"max_decode_pixels" yaml:"max_decode_pixels" validate:"gt=0"`
	MinOCRTextLength       int           `json:"min_ocr_text_length" yaml:"min_ocr_text_length"`
	MinExtractedTextLength int           `json:"min_extracted_text_length" yaml:"min_extracted_text_length"`
}

// SubjectConfig describes one subject of the catalog
type SubjectConfig struct {
	Code     string   `json:"id" yaml:"code"`
	Name     string   `json:"name" yaml:"name"`
	Icon     string   `json:"icon" yaml:"icon"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// DifficultyConfig describes one difficulty of the catalog
type DifficultyConfig struct {
	Code           string `json:"id" yaml:"code"`
	Name           string `json:"name" yaml:"name"`
	Level          string `json:"level" yaml:"level"`
	TargetAccuracy string `json:"targetAccuracy" yaml:"target_accuracy"`
}

// HistoryConfig configures the learnctl local history store
type HistoryConfig struct {
	Store         string `json:"store" yaml:"store"`
	QuotaBytes    int64  `json:"quota_bytes" yaml:"quota_bytes" validate:"gte=0"`
	RetentionDays int    `json:"retention_days" yaml:"retention_days" validate:"gte=0"`
}

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig        `json:"server" yaml:"server"`
	AI            AIConfig            `json:"ai" yaml:"ai"`
	Providers     []ProviderConfig    `json:"providers" yaml:"providers"`
	Pipeline      PipelineConfig      `json:"pipeline" yaml:"pipeline"`
	Subjects      []SubjectConfig     `json:"subjects" yaml:"subjects"`
	Difficulties  []DifficultyConfig  `json:"difficulties" yaml:"difficulties"`
	History       HistoryConfig       `json:"history" yaml:"history"`
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port           string               `json:"port" yaml:"port" validate:"required,numeric"`
	Debug          bool                 `json:"debug" yaml:"debug"`
	LogLevel       string               `json:"log_level" yaml:"log_level"`
	CORSOrigins    []string             `json:"cors_origins" yaml:"cors_origins"`
	MaxUploadBytes int64                `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	Environment    string               `json:"environment" yaml:"environment"`
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
}

// CircuitBreakerConfig controls the breaker that answers 503 after repeated 5xx responses
type CircuitBreakerConfig struct {
	Enabled   bool          `json:"enabled" yaml:"enabled"`
	Threshold int           `json:"threshold" yaml:"threshold" validate:"gte=0"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // "learnapp-server" or "learnctl"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	UseAutoSDK     bool              `json:"use_auto_sdk" yaml:"use_auto_sdk"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate" validate:"gte=0,lte=1"`
}

// Subject returns the catalog entry for code.
func (c *Config) Subject(code string) (SubjectConfig, bool) {
	for _, s := range c.Subjects {
		if s.Code == code {
			return s, true
		}
	}
	return SubjectConfig{}, false
}

// Difficulty returns the catalog entry for code.
func (c *Config) Difficulty(code string) (DifficultyConfig, bool) {
	for _, d := range c.Difficulties {
		if d.Code == code {
			return d, true
		}
	}
	return DifficultyConfig{}, false
}

// Provider returns the provider entry for code.
func (c *Config) Provider(code string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Code == code {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// MaxTokensFor returns the configured max tokens for a provider/model pair,
// falling back to ai.max_output_tokens.
func (c *Config) MaxTokensFor(provider, model string) int {
	if p, ok := c.Provider(provider); ok {
		for _, m := range p.Models {
			if m.Code == model && m.MaxTokens > 0 {
				return m.MaxTokens
			}
		}
	}
	return c.AI.MaxOutputTokens
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.MinTextLength > p.MaxTextLength {
		return contextutils.ErrorWithContextf("pipeline.min_text_length (%d) exceeds max_text_length (%d)", p.MinTextLength, p.MaxTextLength)
	}
	if p.BatchSize <= 0 {
		return contextutils.ErrorWithContextf("pipeline.batch_size must be positive, got %d", p.BatchSize)
	}
	if p.OCRMaxAttempts <= 0 || p.GenerationMaxAttempts <= 0 {
		return contextutils.ErrorWithContextf("pipeline retry attempts must be positive")
	}
	if c.AI.Provider != ProviderGemini {
		if _, ok := c.Provider(c.AI.Provider); !ok {
			return contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "unknown ai.provider %q", c.AI.Provider)
		}
	}
	if len(c.Subjects) == 0 || len(c.Difficulties) == 0 {
		return contextutils.ErrorWithContextf("subject and difficulty catalogs must not be empty")
	}
	return contextutils.ValidateStruct(c)
}

// NewConfig loads configuration from .env, then the YAML file, then environment variables
func NewConfig() (result0 *Config, err error) {
	// .env is optional; a missing file is not an error
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load .env: %w", err)
	}

	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	config.overrideFromEnv()
	config.overrideFromLegacyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnvWithPrefix(c, "")
}

// overrideFromLegacyEnv honours the variable names used by earlier deployments.
func (c *Config) overrideFromLegacyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.AI.APIKey == "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		origins := make([]string, 0)
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.CORSOrigins = origins
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
}

var durationType = reflect.TypeOf(time.Duration(0))

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		envVal := os.Getenv(envKey)

		if field.Type() == durationType {
			if envVal != "" {
				if d, err := time.ParseDuration(envVal); err == nil {
					field.SetInt(int64(d))
				}
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			if envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			// Only string slices (like SERVER_CORS_ORIGINS) are settable from env
			if envVal != "" && field.Type().Elem().Kind() == reflect.String {
				field.Set(reflect.ValueOf(strings.Split(envVal, ",")))
			}
		case reflect.Struct:
			if field.CanAddr() {
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), envKey)
			}
		}
	}
}

// ConfigFileEnv names the environment variable holding the config file path.
const ConfigFileEnv = "LEARNAPP_CONFIG_FILE"

// loadConfigWithOverrides loads the config file named by LEARNAPP_CONFIG_FILE,
// falling back to config.yaml. A missing default file yields the built-in defaults.
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv(ConfigFileEnv); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	config, err := loadConfigFromFile("config.yaml")
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return config, err
}

// loadConfigFromFile loads configuration from a specific file on top of the defaults
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(yamlFile)
}

// Parse decodes YAML on top of Default().
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	config.applyDefaults()
	return config, nil
}
