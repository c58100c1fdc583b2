package config

import "time"

// Provider codes with dedicated gateway implementations
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Default returns a configuration that runs without any YAML file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "3001",
			LogLevel:       "info",
			CORSOrigins:    []string{"http://localhost:3000"},
			MaxUploadBytes: DefaultMaxUploadBytes,
			Environment:    "development",
			CircuitBreaker: CircuitBreakerConfig{
				Threshold: 5,
				Timeout:   30 * time.Second,
			},
		},
		AI: AIConfig{
			Provider:        ProviderGemini,
			Model:           "gemini-1.5-flash",
			Temperature:     0.7,
			MaxOutputTokens: 8192,
			RequestTimeout:  AIRequestTimeout,
		},
		Providers: []ProviderConfig{
			{
				Name:         "Google Gemini",
				Code:         ProviderGemini,
				SupportsJSON: true,
				Models: []AIModel{
					{Name: "Gemini 1.5 Flash", Code: "gemini-1.5-flash", MaxTokens: 8192},
					{Name: "Gemini 2.0 Flash", Code: "gemini-2.0-flash", MaxTokens: 8192},
				},
			},
			{
				Name:         "OpenAI",
				Code:         ProviderOpenAI,
				URL:          "https://api.openai.com/v1",
				SupportsJSON: true,
				Models: []AIModel{
					{Name: "GPT-4o mini", Code: "gpt-4o-mini", MaxTokens: 4096},
				},
			},
			{
				Name:   "Ollama",
				Code:   "ollama",
				URL:    "http://localhost:11434/v1",
				NoAuth: true,
				Models: []AIModel{
					{Name: "Llama 3.2 Vision", Code: "llama3.2-vision", MaxTokens: 4096},
				},
			},
		},
		Pipeline:     DefaultPipeline(),
		Subjects:     DefaultSubjects(),
		Difficulties: DefaultDifficulties(),
		History: HistoryConfig{
			Store:         "memory://",
			QuotaBytes:    5 * 1024 * 1024,
			RetentionDays: 30,
		},
		OpenTelemetry: OpenTelemetryConfig{
			Endpoint:     "localhost:4317",
			Protocol:     "grpc",
			Insecure:     true,
			ServiceName:  "learnapp-server",
			SamplingRate: 1.0,
		},
	}
}

// DefaultPipeline returns the pipeline limits used when none are configured.
func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		MinTextLength:          20,
		MaxTextLength:          10000,
		MaxQuestionCount:       10,
		DefaultQuestionCount:   3,
		OCRMaxAttempts:         3,
		GenerationMaxAttempts:  2,
		BackoffBase:            time.Second,
		MaxMultipleImages:      10,
		MaxBatchImages:         20,
		BatchSize:              5,
		BatchDelay:             time.Second,
		MaxImageDimension:      2048,
		JPEGQuality:            85,
		MaxDecodePixels:        36_000_000,
		MinOCRTextLength:       10,
		MinExtractedTextLength: 20,
	}
}

// DefaultSubjects returns the built-in subject catalog. Order matters for
// auto-detection ties.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Code: "math", Name: "数学", Icon: "🔢", Keywords: []string{"計算", "数式", "図形", "方程式"}},
		{Code: "japanese", Name: "国語", Icon: "📚", Keywords: []string{"文章", "漢字", "語彙", "読解"}},
		{Code: "science", Name: "理科", Icon: "🔬", Keywords: []string{"実験", "化学", "物理", "生物"}},
		{Code: "social", Name: "社会", Icon: "🌍", Keywords: []string{"歴史", "地理", "政治"}},
		{Code: "english", Name: "英語", Icon: "🇺🇸", Keywords: []string{"英語", "English", "文法"}},
	}
}

// DefaultDifficulties returns the built-in difficulty catalog.
func DefaultDifficulties() []DifficultyConfig {
	return []DifficultyConfig{
		{Code: "basic", Name: "基礎", Level: "小学生〜中学1年", TargetAccuracy: "80-90%"},
		{Code: "standard", Name: "標準", Level: "中学生レベル", TargetAccuracy: "60-70%"},
		{Code: "advanced", Name: "応用", Level: "高校生レベル", TargetAccuracy: "40-50%"},
		{Code: "challenge", Name: "発展", Level: "難関校入試レベル", TargetAccuracy: "20-30%"},
	}
}

// applyDefaults fills zero values left by a partial YAML file or env overrides.
func (c *Config) applyDefaults() {
	def := DefaultPipeline()
	p := &c.Pipeline
	setInt(&p.MinTextLength, def.MinTextLength)
	setInt(&p.MaxTextLength, def.MaxTextLength)
	setInt(&p.MaxQuestionCount, def.MaxQuestionCount)
	setInt(&p.DefaultQuestionCount, def.DefaultQuestionCount)
	setInt(&p.OCRMaxAttempts, def.OCRMaxAttempts)
	setInt(&p.GenerationMaxAttempts, def.GenerationMaxAttempts)
	setInt(&p.MaxMultipleImages, def.MaxMultipleImages)
	setInt(&p.MaxBatchImages, def.MaxBatchImages)
	setInt(&p.BatchSize, def.BatchSize)
	setInt(&p.MaxImageDimension, def.MaxImageDimension)
	setInt(&p.JPEGQuality, def.JPEGQuality)
	setInt(&p.MaxDecodePixels, def.MaxDecodePixels)
	setInt(&p.MinOCRTextLength, def.MinOCRTextLength)
	setInt(&p.MinExtractedTextLength, def.MinExtractedTextLength)
	if p.BackoffBase == 0 {
		p.BackoffBase = def.BackoffBase
	}

	if c.Server.Port == "" {
		c.Server.Port = "3001"
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.AI.Provider == "" {
		c.AI.Provider = ProviderGemini
	}
	if c.AI.RequestTimeout <= 0 {
		c.AI.RequestTimeout = AIRequestTimeout
	}
	if len(c.Subjects) == 0 {
		c.Subjects = DefaultSubjects()
	}
	if len(c.Difficulties) == 0 {
		c.Difficulties = DefaultDifficulties()
	}
	if c.History.RetentionDays <= 0 {
		c.History.RetentionDays = 30
	}
	if c.History.Store == "" {
		c.History.Store = "memory://"
	}
}

func setInt(dst *int, def int) {
	if *dst <= 0 {
		*dst = def
	}
}
