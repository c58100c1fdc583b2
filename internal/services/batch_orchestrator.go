package services

import (
	"context"
	"strings"
	"time"

	"learnapp/internal/models"
	"learnapp/internal/observability"
	contextutils "learnapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

const defaultBatchSize = 5

// BatchOrchestrator recognizes large uploads in fixed-size groups, one
// provider call per group, with a pause between groups.
type BatchOrchestrator struct {
	Recognizer   MultiImageRecognizer
	Preprocessor *ImagePreprocessor
	BatchSize    int
	Delay        time.Duration
	Logger       *observability.Logger
	// Sleep waits between groups. It returns early with ctx's error when ctx ends.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewBatchOrchestrator creates an orchestrator with the given group size and delay.
func NewBatchOrchestrator(recognizer MultiImageRecognizer, preprocessor *ImagePreprocessor, batchSize int, delay time.Duration, logger *observability.Logger) *BatchOrchestrator {
	return &BatchOrchestrator{
		Recognizer:   recognizer,
		Preprocessor: preprocessor,
		BatchSize:    batchSize,
		Delay:        delay,
		Logger:       logger,
		Sleep:        sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SplitBatches partitions n items into contiguous groups of at most size.
// It returns the [start, end) bounds of each group.
func SplitBatches(n, size int) [][2]int {
	if size <= 0 {
		size = defaultBatchSize
	}
	groups := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		groups = append(groups, [2]int{start, min(start+size, n)})
	}
	return groups
}

// ProcessBatches runs every group in order. A failed group is recorded and left
// out of the combined text; it does not stop later groups. Once ctx ends, the
// remaining groups are recorded as failed without calling the recognizer.
func (o *BatchOrchestrator) ProcessBatches(ctx context.Context, images []models.UploadedImage) (outcome models.BatchOutcome) {
	ctx, span := observability.TraceOCRFunction(ctx, "process_batches", observability.AttributeImageCount(len(images)))
	defer func() {
		span.SetAttributes(
			attribute.Int("batch.processed", outcome.ProcessedBatches),
			attribute.Int("batch.failed", outcome.FailedBatches),
		)
		span.End()
	}()

	sleep := o.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	groups := SplitBatches(len(images), o.BatchSize)
	outcome = models.BatchOutcome{
		BatchResults:     make([]models.BatchResult, 0, len(groups)),
		ProcessedBatches: len(groups),
		TotalImages:      len(images),
	}

	var texts []string
	for i, g := range groups {
		group := images[g[0]:g[1]]
		result := models.BatchResult{BatchIndex: i, ImageCount: len(group)}

		if err := ctx.Err(); err != nil {
			result.Error = err.Error()
		} else {
			text, err := o.processGroup(ctx, group)
			if err != nil {
				result.Error = err.Error()
				o.Logger.Warn(ctx, "Batch failed", map[string]interface{}{
					"batch_index": i,
					"image_count": len(group),
					"error":       err.Error(),
				})
			} else {
				result.Success = true
				result.ExtractedText = text
				texts = append(texts, text)
			}
		}

		if !result.Success {
			outcome.FailedBatches++
		}
		observability.Metrics().RecordBatch(ctx, result.Success)
		outcome.BatchResults = append(outcome.BatchResults, result)

		if i < len(groups)-1 && ctx.Err() == nil {
			if err := sleep(ctx, o.Delay); err != nil {
				o.Logger.Warn(ctx, "Batch processing interrupted", map[string]interface{}{
					"next_batch": i + 1,
					"error":      err.Error(),
				})
			}
		}
	}

	outcome.CombinedText = strings.Join(texts, "\n\n")
	return outcome
}

func (o *BatchOrchestrator) processGroup(ctx context.Context, group []models.UploadedImage) (string, error) {
	prepared, err := PreprocessAll(ctx, o.Preprocessor, group)
	if err != nil {
		return "", err
	}
	result, err := o.Recognizer.RecognizeImages(ctx, prepared)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", contextutils.WrapError(contextutils.ErrAIResponseInvalid, "recognizer returned no result")
	}
	return result.ExtractedText, nil
}
