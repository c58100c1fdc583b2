package services

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"learnapp/internal/config"
	"learnapp/internal/observability"
	contextutils "learnapp/internal/utils"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"
)

// ImagePart is one inline image sent alongside a prompt.
type ImagePart struct {
	MIMEType string
	Data     []byte
}

// GenerateRequest is a single call to the AI provider.
type GenerateRequest struct {
	Prompt string
	// Images are sent in order, each encoded independently.
	Images []ImagePart
	// JSON asks the provider for a JSON-only reply where supported.
	JSON bool
}

// AIGateway sends one prompt to a generative model. Implementations make a
// single attempt; retries belong to the caller.
type AIGateway interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Name() string
}

// NewAIGateway selects the gateway implementation for cfg.AI.Provider.
func NewAIGateway(ctx context.Context, cfg *config.Config, logger *observability.Logger) (AIGateway, error) {
	provider, ok := cfg.Provider(cfg.AI.Provider)
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "unknown AI provider '%s'", cfg.AI.Provider)
	}
	if cfg.AI.APIKey == "" && !provider.NoAuth {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "API key is required for provider '%s'", provider.Code)
	}
	if provider.Code == config.ProviderGemini {
		gw, err := NewGeminiGateway(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return gw, nil
	}
	gw, err := NewOpenAIGateway(cfg, provider, logger)
	if err != nil {
		return nil, err
	}
	return gw, nil
}

func requestTimeout(cfg *config.Config) time.Duration {
	if cfg.AI.RequestTimeout > 0 {
		return cfg.AI.RequestTimeout
	}
	return config.AIRequestTimeout
}

func transportError(format string, args ...interface{}) error {
	return contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, format, args...)
}

// GeminiGateway calls Google Gemini through the generative-ai-go SDK.
type GeminiGateway struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	timeout     time.Duration
	logger      *observability.Logger
}

// NewGeminiGateway creates a Gemini client with the configured API key.
func NewGeminiGateway(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*GeminiGateway, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.AI.APIKey))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "failed to create gemini client: %w", err)
	}
	return &GeminiGateway{
		client:      client,
		model:       cfg.AI.Model,
		temperature: float32(cfg.AI.Temperature),
		maxTokens:   int32(cfg.MaxTokensFor(config.ProviderGemini, cfg.AI.Model)),
		timeout:     requestTimeout(cfg),
		logger:      logger,
	}, nil
}

// Name returns the provider code.
func (g *GeminiGateway) Name() string { return config.ProviderGemini }

// Close releases the underlying client.
func (g *GeminiGateway) Close() error {
	return g.client.Close()
}

// Generate sends the prompt and any images as inline blobs.
func (g *GeminiGateway) Generate(ctx context.Context, req GenerateRequest) (result string, err error) {
	ctx, span := observability.TraceAIFunction(ctx, "gemini_generate",
		attribute.String("ai.provider", g.Name()),
		attribute.String("ai.model", g.model),
		attribute.Int("prompt.length", len(req.Prompt)),
		observability.AttributeImageCount(len(req.Images)),
		attribute.Bool("ai.json_mode", req.JSON),
	)
	defer observability.FinishSpan(span, &err)
	defer func() { observability.Metrics().RecordAIAttempt(ctx, g.Name(), err != nil) }()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	model := g.client.GenerativeModel(g.model)
	temperature := g.temperature
	maxTokens := g.maxTokens
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     &temperature,
		MaxOutputTokens: &maxTokens,
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	parts := make([]genai.Part, 0, len(req.Images)+1)
	parts = append(parts, genai.Text(req.Prompt))
	for _, img := range req.Images {
		parts = append(parts, genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", transportError("gemini request failed after %v: %s", time.Since(start), err.Error())
	}

	text, truncated, err := geminiText(resp)
	if err != nil {
		return "", err
	}
	if truncated {
		g.logger.Warn(ctx, "Gemini response truncated at max tokens", map[string]interface{}{
			"model":      g.model,
			"max_tokens": g.maxTokens,
		})
	}
	span.SetAttributes(attribute.Int("response.length", len(text)))
	return text, nil
}

// geminiText concatenates the text parts of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) (string, bool, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false, transportError("gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", false, transportError("gemini returned no content parts (finish reason: %v)", candidate.FinishReason)
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", false, transportError("gemini returned empty content (finish reason: %v)", candidate.FinishReason)
	}
	return text, candidate.FinishReason == genai.FinishReasonMaxTokens, nil
}

// OpenAIGateway calls any OpenAI-compatible chat completions endpoint.
type OpenAIGateway struct {
	client      *openai.Client
	provider    config.ProviderConfig
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	logger      *observability.Logger
}

// NewOpenAIGateway creates a client for provider using its base URL.
func NewOpenAIGateway(cfg *config.Config, provider config.ProviderConfig, logger *observability.Logger) (*OpenAIGateway, error) {
	if provider.URL == "" {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "no base URL configured for provider '%s'", provider.Code)
	}
	clientCfg := openai.DefaultConfig(cfg.AI.APIKey)
	clientCfg.BaseURL = strings.TrimSuffix(provider.URL, "/")
	clientCfg.HTTPClient = &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	return &OpenAIGateway{
		client:      openai.NewClientWithConfig(clientCfg),
		provider:    provider,
		model:       cfg.AI.Model,
		temperature: float32(cfg.AI.Temperature),
		maxTokens:   cfg.MaxTokensFor(provider.Code, cfg.AI.Model),
		timeout:     requestTimeout(cfg),
		logger:      logger,
	}, nil
}

// Name returns the provider code.
func (o *OpenAIGateway) Name() string { return o.provider.Code }

// Generate sends a single user message. Images become data URI parts.
func (o *OpenAIGateway) Generate(ctx context.Context, req GenerateRequest) (result string, err error) {
	ctx, span := observability.TraceAIFunction(ctx, "openai_generate",
		attribute.String("ai.provider", o.Name()),
		attribute.String("ai.model", o.model),
		attribute.Int("prompt.length", len(req.Prompt)),
		observability.AttributeImageCount(len(req.Images)),
		attribute.Bool("ai.json_mode", req.JSON && o.provider.SupportsJSON),
	)
	defer observability.FinishSpan(span, &err)
	defer func() { observability.Metrics().RecordAIAttempt(ctx, o.Name(), err != nil) }()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(req.Images) == 0 {
		msg.Content = req.Prompt
	} else {
		msg.MultiContent = make([]openai.ChatMessagePart, 0, len(req.Images)+1)
		msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: req.Prompt,
		})
		for _, img := range req.Images {
			msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURI(img),
					Detail: openai.ImageURLDetailHigh,
				},
			})
		}
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    []openai.ChatCompletionMessage{msg},
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}
	// Providers without JSON mode reject response_format; the prompt alone asks for JSON there.
	if req.JSON && o.provider.SupportsJSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			span.SetAttributes(attribute.Int("http.status_code", apiErr.HTTPStatusCode))
			return "", transportError("%s API error (status %d): %s", o.Name(), apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", transportError("%s request failed after %v: %s", o.Name(), time.Since(start), err.Error())
	}

	if len(resp.Choices) == 0 {
		return "", transportError("%s returned no choices", o.Name())
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", transportError("%s returned empty content", o.Name())
	}
	if resp.Choices[0].FinishReason == openai.FinishReasonLength {
		o.logger.Warn(ctx, "AI response truncated at max tokens", map[string]interface{}{
			"provider":   o.Name(),
			"model":      o.model,
			"max_tokens": o.maxTokens,
		})
	}

	o.logger.Debug(ctx, "AI request completed", map[string]interface{}{
		"provider":       o.Name(),
		"duration":       time.Since(start).String(),
		"content_length": len(content),
	})
	span.SetAttributes(attribute.Int("response.length", len(content)))
	return content, nil
}

func dataURI(img ImagePart) string {
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
