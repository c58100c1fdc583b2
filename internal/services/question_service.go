package services

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"learnapp/internal/config"
	"learnapp/internal/models"
	"learnapp/internal/observability"
	contextutils "learnapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

//go:embed samples/sample_questions.yaml
var sampleQuestionsYAML []byte

type sampleQuestion struct {
	ID            string      `yaml:"id"`
	QuestionText  string      `yaml:"questionText"`
	Type          string      `yaml:"type"`
	Options       []string    `yaml:"options"`
	CorrectAnswer interface{} `yaml:"correctAnswer"`
	Explanation   string      `yaml:"explanation"`
	Keywords      []string    `yaml:"keywords"`
	Category      string      `yaml:"category"`
}

// QuestionService turns source text into quiz questions.
type QuestionService struct {
	gateway AIGateway
	prompts *PromptBuilder
	cfg     *config.Config
	retry   RetryController
	samples map[string][]sampleQuestion
	logger  *observability.Logger
	now     func() time.Time
}

// NewQuestionService creates the generation service. It fails only if the
// embedded sample set cannot be parsed.
func NewQuestionService(gateway AIGateway, prompts *PromptBuilder, cfg *config.Config, logger *observability.Logger) (*QuestionService, error) {
	samples := make(map[string][]sampleQuestion)
	if err := yaml.Unmarshal(sampleQuestionsYAML, &samples); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to parse sample questions: %w", err)
	}
	return &QuestionService{
		gateway: gateway,
		prompts: prompts,
		cfg:     cfg,
		retry: RetryController{
			MaxAttempts: cfg.Pipeline.GenerationMaxAttempts,
			BaseDelay:   cfg.Pipeline.BackoffBase,
			Logger:      logger,
		},
		samples: samples,
		logger:  logger,
		now:     time.Now,
	}, nil
}

func (s *QuestionService) withDefaults(req models.GenerationRequest) models.GenerationRequest {
	if req.Subject == "" {
		req.Subject = models.SubjectAuto
	}
	if req.Difficulty == "" {
		req.Difficulty = models.DifficultyStandard
	}
	if req.QuestionType == "" {
		req.QuestionType = models.MultipleChoice
	}
	if req.QuestionCount == 0 {
		req.QuestionCount = s.cfg.Pipeline.DefaultQuestionCount
	}
	return req
}

// validate checks everything that can be rejected without calling the provider.
func (s *QuestionService) validate(req models.GenerationRequest) (config.SubjectConfig, config.DifficultyConfig, error) {
	var subject config.SubjectConfig
	var difficulty config.DifficultyConfig

	if err := contextutils.ValidateStruct(req); err != nil {
		return subject, difficulty, err
	}
	p := s.cfg.Pipeline
	if err := contextutils.ValidateTextLength(req.Text, p.MinTextLength, p.MaxTextLength); err != nil {
		return subject, difficulty, err
	}

	var ok bool
	if req.Subject != models.SubjectAuto {
		if subject, ok = s.cfg.Subject(string(req.Subject)); !ok {
			return subject, difficulty, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown subject '%s'", req.Subject)
		}
	}
	if difficulty, ok = s.cfg.Difficulty(string(req.Difficulty)); !ok {
		return subject, difficulty, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown difficulty '%s'", req.Difficulty)
	}
	if !req.QuestionType.Valid() {
		return subject, difficulty, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown question type '%s'", req.QuestionType)
	}
	if req.QuestionCount < 1 || req.QuestionCount > p.MaxQuestionCount {
		return subject, difficulty, contextutils.WrapErrorf(contextutils.ErrInvalidInput,
			"questionCount must be between 1 and %d, got %d", p.MaxQuestionCount, req.QuestionCount)
	}
	return subject, difficulty, nil
}

// Generate validates req, builds the prompt and asks the provider for questions,
// retrying both transport and parse failures. Validation errors never reach
// the provider.
func (s *QuestionService) Generate(ctx context.Context, req models.GenerationRequest) (result *models.GenerationResult, err error) {
	req = s.withDefaults(req)
	ctx, span := observability.TraceQuestionFunction(ctx, "generate_questions",
		observability.AttributeSubject(string(req.Subject)),
		observability.AttributeDifficulty(string(req.Difficulty)),
		observability.AttributeQuestionType(req.QuestionType),
		observability.AttributeQuestionCount(req.QuestionCount),
	)
	defer observability.FinishSpan(span, &err)

	subject, difficulty, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	detected := req.Subject
	if detected == models.SubjectAuto {
		detected = DetectSubject(req.Text, s.cfg.Subjects)
		subject, _ = s.cfg.Subject(string(detected))
		span.SetAttributes(attribute.String("question.detected_subject", string(detected)))
	}

	prompt, err := s.prompts.Build(PromptInput{
		SourceText:   req.Text,
		Subject:      NewSubjectDescriptor(subject),
		Difficulty:   NewDifficultyDescriptor(difficulty),
		QuestionType: req.QuestionType,
		Count:        req.QuestionCount,
	})
	if err != nil {
		return nil, err
	}

	defaults := NormalizeDefaults{
		Subject:      detected,
		Difficulty:   req.Difficulty,
		Category:     subject.Name,
		QuestionType: req.QuestionType,
	}
	s.logger.Info(ctx, "Generating questions", map[string]interface{}{
		"subject":       detected,
		"difficulty":    req.Difficulty,
		"question_type": req.QuestionType,
		"count":         req.QuestionCount,
		"text_length":   contextutils.TextLength(req.Text),
	})

	res := Run(ctx, s.retry, "generate_questions", func(ctx context.Context, attempt int) ([]models.Question, error) {
		raw, err := s.gateway.Generate(ctx, GenerateRequest{Prompt: prompt, JSON: true})
		if err != nil {
			return nil, err
		}
		parsed, err := Normalize(raw, defaults)
		if err != nil {
			return nil, err
		}
		if parsed.SchemaDeviations > 0 {
			observability.Metrics().SchemaDeviations.Add(ctx, int64(parsed.SchemaDeviations))
			s.logger.Debug(ctx, "AI response deviated from the expected shape", map[string]interface{}{
				"attempt":    attempt,
				"deviations": parsed.Deviations,
			})
		}
		return parsed.Questions, nil
	})
	span.SetAttributes(observability.AttributeAttempt(res.Attempts))
	if !res.OK {
		s.logger.Error(ctx, "Question generation failed", res.Err, map[string]interface{}{
			"attempts": res.Attempts,
		})
		return nil, res.AIFailure()
	}

	questions := res.Value
	if len(questions) > req.QuestionCount {
		questions = questions[:req.QuestionCount]
	}

	return &models.GenerationResult{
		Success:          true,
		Timestamp:        s.now().UTC(),
		SourceTextLength: contextutils.TextLength(req.Text),
		DetectedSubject:  detected,
		SubjectName:      subject.Name,
		Difficulty:       req.Difficulty,
		QuestionType:     req.QuestionType,
		Questions:        questions,
		Attempts:         res.Attempts,
	}, nil
}

// Config returns the catalogs offered to clients.
func (s *QuestionService) Config() models.QuestionConfig {
	out := models.QuestionConfig{
		Subjects:      make([]models.CatalogEntry, 0, len(s.cfg.Subjects)),
		Difficulties:  make([]models.CatalogEntry, 0, len(s.cfg.Difficulties)),
		QuestionTypes: make([]models.CatalogEntry, 0, len(models.AllQuestionTypes)),
	}
	for _, subj := range s.cfg.Subjects {
		out.Subjects = append(out.Subjects, models.CatalogEntry{ID: subj.Code, Name: subj.Name, Icon: subj.Icon, Keywords: subj.Keywords})
	}
	for _, d := range s.cfg.Difficulties {
		out.Difficulties = append(out.Difficulties, models.CatalogEntry{ID: d.Code, Name: d.Name, Level: d.Level, TargetAccuracy: d.TargetAccuracy})
	}
	for _, t := range models.AllQuestionTypes {
		out.QuestionTypes = append(out.QuestionTypes, models.CatalogEntry{ID: string(t), Name: t.DisplayName()})
	}
	return out
}

// Sample returns the fixed sample questions for subject. An empty difficulty
// labels them standard.
func (s *QuestionService) Sample(subject models.Subject, difficulty models.Difficulty) ([]models.Question, error) {
	entries, ok := s.samples[string(subject)]
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "no sample questions for subject '%s'", subject)
	}
	if difficulty == "" {
		difficulty = models.DifficultyStandard
	}
	if !difficulty.Valid() {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown difficulty '%s'", difficulty)
	}

	questions := make([]models.Question, 0, len(entries))
	for _, e := range entries {
		q := models.Question{
			ID:           e.ID,
			QuestionText: e.QuestionText,
			Explanation:  e.Explanation,
			Subject:      subject,
			Difficulty:   difficulty,
			Category:     e.Category,
			Type:         models.QuestionType(e.Type),
		}
		switch v := e.CorrectAnswer.(type) {
		case int:
			q.Options = e.Options
			q.CorrectAnswer = models.IndexAnswer(v)
		default:
			q.CorrectAnswer = models.TextAnswer(fmt.Sprint(v))
			q.Keywords = e.Keywords
		}
		questions = append(questions, q)
	}
	return questions, nil
}
