package handlers

import (
	"io"
	"mime/multipart"
	"net/http"

	"learnapp/internal/config"
	"learnapp/internal/models"
	"learnapp/internal/observability"
	"learnapp/internal/services"
	contextutils "learnapp/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// User-facing failure messages.
const (
	msgImageRequired   = "画像ファイルが必要です"
	msgImagesRequired  = "画像ファイルを1枚以上選択してください"
	msgNotAnImage      = "画像ファイルのみアップロード可能です"
	msgFileTooLarge    = "ファイルサイズが大きすぎます"
	msgTooManyImages   = "画像の枚数が上限を超えています"
	msgTextTooShort    = "画像から十分なテキストを抽出できませんでした。より鮮明な画像をお試しください"
	msgOCRFailed       = "ファイル処理中にエラーが発生しました"
	msgBatchFailed     = "すべてのバッチ処理に失敗しました"
	msgTestTextMissing = "テストテキストが提供されていません"
)

// UploadHandler serves the image upload and OCR endpoints.
type UploadHandler struct {
	ocrService services.OCRServiceInterface
	batch      services.BatchOrchestratorInterface
	cfg        *config.Config
	logger     *observability.Logger
}

// NewUploadHandler creates an UploadHandler.
func NewUploadHandler(ocrService services.OCRServiceInterface, batch services.BatchOrchestratorInterface, cfg *config.Config, logger *observability.Logger) *UploadHandler {
	return &UploadHandler{
		ocrService: ocrService,
		batch:      batch,
		cfg:        cfg,
		logger:     logger,
	}
}

func (h *UploadHandler) maxUploadBytes() int64 {
	if h.cfg.Server.MaxUploadBytes > 0 {
		return h.cfg.Server.MaxUploadBytes
	}
	return config.DefaultMaxUploadBytes
}

// readImage loads one multipart file and checks its size and content type.
func (h *UploadHandler) readImage(fh *multipart.FileHeader) (models.UploadedImage, error) {
	limit := h.maxUploadBytes()
	if fh.Size > limit {
		return models.UploadedImage{}, contextutils.WrapErrorf(contextutils.ErrPayloadTooLarge,
			"%s: %s (%d bytes, limit %d)", msgFileTooLarge, fh.Filename, fh.Size, limit)
	}
	f, err := fh.Open()
	if err != nil {
		return models.UploadedImage{}, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to open upload %s: %v", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return models.UploadedImage{}, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to read upload %s: %v", fh.Filename, err)
	}
	if int64(len(data)) > limit {
		return models.UploadedImage{}, contextutils.WrapErrorf(contextutils.ErrPayloadTooLarge, "%s: %s", msgFileTooLarge, fh.Filename)
	}
	if !services.IsImage(data) {
		return models.UploadedImage{}, contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "%s: %s", msgNotAnImage, fh.Filename)
	}
	return models.UploadedImage{
		Filename: fh.Filename,
		MIMEType: services.SniffMIME(data),
		Data:     data,
	}, nil
}

// readImages collects the files posted as "images" or "images[]".
func (h *UploadHandler) readImages(c *gin.Context, maxFiles int) ([]models.UploadedImage, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, msgImagesRequired)
	}
	files := append(append([]*multipart.FileHeader{}, form.File["images"]...), form.File["images[]"]...)
	if len(files) == 0 {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, msgImagesRequired)
	}
	if len(files) > maxFiles {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "%s (最大%d枚, 受信%d枚)", msgTooManyImages, maxFiles, len(files))
	}

	images := make([]models.UploadedImage, 0, len(files))
	for _, fh := range files {
		img, err := h.readImage(fh)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// UploadImage handles POST /api/upload.
func (h *UploadHandler) UploadImage(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "upload_image")
	defer observability.FinishSpan(span, nil)

	fh, err := c.FormFile("image")
	if err != nil {
		HandleAppError(c, contextutils.WrapError(contextutils.ErrMissingRequired, msgImageRequired))
		return
	}
	img, err := h.readImage(fh)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	span.SetAttributes(attribute.String("upload.filename", img.Filename), attribute.Int("upload.size", len(img.Data)))

	result, err := h.ocrService.ExtractText(ctx, img)
	if err != nil {
		h.logger.Error(ctx, "OCR failed", err, map[string]interface{}{"filename": img.Filename})
		HandleFailure(c, err, msgOCRFailed)
		return
	}
	if contextutils.TextLength(result.ExtractedText) < h.cfg.Pipeline.MinExtractedTextLength {
		HandleAppError(c, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "%s (%d文字)", msgTextTooShort, contextutils.TextLength(result.ExtractedText)))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"extractedText": result.ExtractedText,
		"confidence":    result.Confidence,
		"metadata":      result.Metadata,
	})
}

// UploadMultiple handles POST /api/upload/multiple.
func (h *UploadHandler) UploadMultiple(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "upload_multiple")
	defer observability.FinishSpan(span, nil)

	images, err := h.readImages(c, h.cfg.Pipeline.MaxMultipleImages)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeImageCount(len(images)))

	result, err := h.ocrService.ExtractMultiple(ctx, images)
	if err != nil {
		h.logger.Error(ctx, "Multi-image OCR failed", err, map[string]interface{}{"image_count": len(images)})
		HandleFailure(c, err, msgOCRFailed)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"extractedText":    result.ExtractedText,
		"confidence":       result.Confidence,
		"imageDetails":     result.ImageDetails,
		"combinedAnalysis": result.CombinedAnalysis,
		"metadata":         result.Metadata,
	})
}

// UploadBatch handles POST /api/upload/batch. Partial failures still return
// 200; only a batch in which every group failed is an error.
func (h *UploadHandler) UploadBatch(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "upload_batch")
	defer observability.FinishSpan(span, nil)

	images, err := h.readImages(c, h.cfg.Pipeline.MaxBatchImages)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeImageCount(len(images)))

	outcome := h.batch.ProcessBatches(ctx, images)
	if outcome.AllFailed() {
		appErr := contextutils.NewAppError(contextutils.ErrorCodeAIRequestFailed, contextutils.SeverityError,
			msgBatchFailed, lastBatchError(outcome))
		body := appErr.ToJSON()
		body["batchResults"] = outcome.BatchResults
		body["failedBatches"] = outcome.FailedBatches
		body["totalImages"] = outcome.TotalImages
		_ = c.Error(appErr)
		c.JSON(http.StatusInternalServerError, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"extractedText":    outcome.CombinedText,
		"batchResults":     outcome.BatchResults,
		"processedBatches": outcome.ProcessedBatches,
		"failedBatches":    outcome.FailedBatches,
		"totalImages":      outcome.TotalImages,
	})
}

func lastBatchError(outcome models.BatchOutcome) string {
	for i := len(outcome.BatchResults) - 1; i >= 0; i-- {
		if e := outcome.BatchResults[i].Error; e != "" {
			return e
		}
	}
	return ""
}

type testOCRRequest struct {
	Text string `json:"text" binding:"required"`
}

// TestOCR handles POST /api/upload/test-ocr, echoing text as an OCR result
// without calling the provider.
func (h *UploadHandler) TestOCR(c *gin.Context) {
	var req testOCRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.WrapError(contextutils.ErrMissingRequired, msgTestTextMissing))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"extractedText": req.Text,
		"confidence":    1.0,
		"metadata": models.OCRMetadata{
			TextLength: contextutils.TextLength(req.Text),
			TestMode:   true,
		},
	})
}
