package services

import (
	"context"
	"strings"
	"time"

	"learnapp/internal/config"
	"learnapp/internal/models"
	"learnapp/internal/observability"
	contextutils "learnapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// PreparedImage is an uploaded image after preprocessing.
type PreparedImage struct {
	Filename string
	Image    ProcessedImage
}

// MultiImageRecognizer extracts text from several prepared images in one provider call.
type MultiImageRecognizer interface {
	RecognizeImages(ctx context.Context, images []PreparedImage) (*models.OCRResult, error)
}

// OCRService extracts text from photographed study material.
type OCRService struct {
	gateway       AIGateway
	prompts       *PromptBuilder
	preprocessor  *ImagePreprocessor
	retry         RetryController
	minTextLength int
	logger        *observability.Logger
	now           func() time.Time
}

// NewOCRService creates an OCR service using the pipeline settings from cfg.
func NewOCRService(gateway AIGateway, prompts *PromptBuilder, preprocessor *ImagePreprocessor, cfg *config.Config, logger *observability.Logger) *OCRService {
	return &OCRService{
		gateway:      gateway,
		prompts:      prompts,
		preprocessor: preprocessor,
		retry: RetryController{
			MaxAttempts: cfg.Pipeline.OCRMaxAttempts,
			BaseDelay:   cfg.Pipeline.BackoffBase,
			Logger:      logger,
		},
		minTextLength: cfg.Pipeline.MinOCRTextLength,
		logger:        logger,
		now:           time.Now,
	}
}

// ExtractText runs OCR on a single image. Replies of min_ocr_text_length
// characters or fewer count as failed attempts.
func (s *OCRService) ExtractText(ctx context.Context, img models.UploadedImage) (result *models.OCRResult, err error) {
	ctx, span := observability.TraceOCRFunction(ctx, "extract_text",
		attribute.String("ocr.filename", img.Filename),
		attribute.Int("ocr.original_size", len(img.Data)),
	)
	defer observability.FinishSpan(span, &err)

	processed := s.preprocessor.Preprocess(img.Data)
	prompt, err := s.prompts.BuildOCRPrompt()
	if err != nil {
		return nil, err
	}

	req := GenerateRequest{
		Prompt: prompt,
		Images: []ImagePart{{MIMEType: processed.MIMEType, Data: processed.Data}},
	}
	res := Run(ctx, s.retry, "ocr_extract", func(ctx context.Context, attempt int) (string, error) {
		text, err := s.gateway.Generate(ctx, req)
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if n := contextutils.TextLength(text); n <= s.minTextLength {
			return "", contextutils.WrapErrorf(contextutils.ErrAIResponseInvalid, "OCR結果が短すぎます (%d characters)", n)
		}
		return text, nil
	})
	span.SetAttributes(observability.AttributeAttempt(res.Attempts))
	if !res.OK {
		s.logger.Error(ctx, "OCR failed", res.Err, map[string]interface{}{
			"filename": img.Filename,
			"attempts": res.Attempts,
		})
		return nil, res.AIFailure()
	}

	return &models.OCRResult{
		ExtractedText: res.Value,
		Confidence:    CalculateConfidence(res.Value),
		Metadata: models.OCRMetadata{
			Filename:      img.Filename,
			OriginalSize:  processed.OriginalSize,
			ProcessedSize: processed.ProcessedSize,
			TextLength:    contextutils.TextLength(res.Value),
			ImageCount:    1,
			ProcessedAt:   s.now().UTC().Format(time.RFC3339),
		},
		Attempts: res.Attempts,
	}, nil
}

// ExtractMultiple preprocesses every image and recognizes them together in one call.
func (s *OCRService) ExtractMultiple(ctx context.Context, images []models.UploadedImage) (*models.OCRResult, error) {
	prepared, err := PreprocessAll(ctx, s.preprocessor, images)
	if err != nil {
		return nil, err
	}
	return s.RecognizeImages(ctx, prepared)
}

// RecognizeImages sends all images, in order, with the multi-image prompt and
// normalizes the JSON reply.
func (s *OCRService) RecognizeImages(ctx context.Context, images []PreparedImage) (result *models.OCRResult, err error) {
	ctx, span := observability.TraceOCRFunction(ctx, "recognize_images", observability.AttributeImageCount(len(images)))
	defer observability.FinishSpan(span, &err)

	if len(images) == 0 {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "画像ファイルがアップロードされていません")
	}

	prompt, err := s.prompts.BuildMultiOCRPrompt(len(images))
	if err != nil {
		return nil, err
	}

	req := GenerateRequest{Prompt: prompt, JSON: true, Images: make([]ImagePart, len(images))}
	filenames := make([]string, len(images))
	var originalSize, processedSize int
	for i, img := range images {
		req.Images[i] = ImagePart{MIMEType: img.Image.MIMEType, Data: img.Image.Data}
		filenames[i] = img.Filename
		originalSize += img.Image.OriginalSize
		processedSize += img.Image.ProcessedSize
	}

	res := Run(ctx, s.retry, "ocr_recognize_multiple", func(ctx context.Context, attempt int) (*models.OCRResult, error) {
		raw, err := s.gateway.Generate(ctx, req)
		if err != nil {
			return nil, err
		}
		out := NormalizeOCR(raw, len(images), filenames)
		if n := contextutils.TextLength(out.ExtractedText); n <= s.minTextLength {
			return nil, contextutils.WrapErrorf(contextutils.ErrAIResponseInvalid, "OCR結果が短すぎます (%d characters)", n)
		}
		return out, nil
	})
	span.SetAttributes(observability.AttributeAttempt(res.Attempts))
	if !res.OK {
		s.logger.Error(ctx, "Multi-image OCR failed", res.Err, map[string]interface{}{
			"image_count": len(images),
			"attempts":    res.Attempts,
		})
		return nil, res.AIFailure()
	}

	out := res.Value
	out.Attempts = res.Attempts
	out.Metadata = models.OCRMetadata{
		OriginalSize:  originalSize,
		ProcessedSize: processedSize,
		TextLength:    contextutils.TextLength(out.ExtractedText),
		ImageCount:    len(images),
		ProcessedAt:   s.now().UTC().Format(time.RFC3339),
	}
	return out, nil
}

// PreprocessAll preprocesses images concurrently and keeps their order.
func PreprocessAll(ctx context.Context, p *ImagePreprocessor, images []models.UploadedImage) ([]PreparedImage, error) {
	prepared := make([]PreparedImage, len(images))
	g, gctx := errgroup.WithContext(ctx)
	for i, img := range images {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			prepared[i] = PreparedImage{Filename: img.Filename, Image: p.Preprocess(img.Data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrTimeout, "image preprocessing cancelled: %s", err.Error())
	}
	return prepared, nil
}

// CalculateConfidence scores OCR text between 0 and 1. It starts at 0.5 and
// rewards Japanese script, Japanese punctuation and digits.
func CalculateConfidence(text string) float64 {
	if text == "" {
		return 0
	}

	var total, japanese int
	hasDigit := false
	for _, r := range text {
		total++
		if isJapaneseRune(r) {
			japanese++
		}
		if r >= '0' && r <= '9' {
			hasDigit = true
		}
	}

	score := 0.5 + float64(japanese)/float64(total)*0.3
	if strings.ContainsAny(text, "。、") {
		score += 0.1
	}
	if hasDigit {
		score += 0.1
	}
	return min(max(score, 0), 1)
}

func isJapaneseRune(r rune) bool {
	switch {
	case r >= 0x3040 && r <= 0x309F: // hiragana
		return true
	case r >= 0x30A0 && r <= 0x30FF: // katakana
		return true
	case r >= 0x4E00 && r <= 0x9FAF: // kanji
		return true
	}
	return false
}
