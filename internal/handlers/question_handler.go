package handlers

import (
	"net/http"

	"learnapp/internal/config"
	"learnapp/internal/models"
	"learnapp/internal/observability"
	"learnapp/internal/services"
	contextutils "learnapp/internal/utils"

	"github.com/gin-gonic/gin"
)

const msgGenerationFailed = "問題生成中にエラーが発生しました"

// QuestionHandler serves question generation and the catalogs.
type QuestionHandler struct {
	questionService services.QuestionServiceInterface
	cfg             *config.Config
	logger          *observability.Logger
}

// NewQuestionHandler creates a QuestionHandler.
func NewQuestionHandler(questionService services.QuestionServiceInterface, cfg *config.Config, logger *observability.Logger) *QuestionHandler {
	return &QuestionHandler{
		questionService: questionService,
		cfg:             cfg,
		logger:          logger,
	}
}

// GenerateQuestions handles POST /api/questions/generate.
func (h *QuestionHandler) GenerateQuestions(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "generate_questions")
	defer observability.FinishSpan(span, nil)

	var req models.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "リクエスト形式が不正です: %v", err))
		return
	}

	result, err := h.questionService.Generate(ctx, req)
	if err != nil {
		if !contextutils.IsValidation(err) {
			h.logger.Error(ctx, "Question generation failed", err, map[string]interface{}{
				"subject":    req.Subject,
				"difficulty": req.Difficulty,
			})
		}
		HandleFailure(c, err, msgGenerationFailed)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetConfig handles GET /api/questions/config.
func (h *QuestionHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.questionService.Config())
}

// GetSample handles GET /api/questions/sample/:subject?difficulty=.
func (h *QuestionHandler) GetSample(c *gin.Context) {
	subject := models.Subject(c.Param("subject"))
	difficulty := models.Difficulty(c.Query("difficulty"))

	questions, err := h.questionService.Sample(subject, difficulty)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"subject":   subject,
		"questions": questions,
	})
}
