package services

import (
	"context"

	"learnapp/internal/models"
)

// OCRServiceInterface is the text extraction surface used by the upload handlers.
type OCRServiceInterface interface {
	ExtractText(ctx context.Context, img models.UploadedImage) (*models.OCRResult, error)
	ExtractMultiple(ctx context.Context, images []models.UploadedImage) (*models.OCRResult, error)
}

// BatchOrchestratorInterface processes large uploads in sequential groups.
type BatchOrchestratorInterface interface {
	ProcessBatches(ctx context.Context, images []models.UploadedImage) models.BatchOutcome
}

// QuestionServiceInterface generates questions and serves the catalogs.
type QuestionServiceInterface interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error)
	Config() models.QuestionConfig
	Sample(subject models.Subject, difficulty models.Difficulty) ([]models.Question, error)
}

var (
	_ OCRServiceInterface        = (*OCRService)(nil)
	_ MultiImageRecognizer       = (*OCRService)(nil)
	_ BatchOrchestratorInterface = (*BatchOrchestrator)(nil)
	_ QuestionServiceInterface   = (*QuestionService)(nil)
)
