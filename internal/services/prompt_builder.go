// Package services provides the OCR and question generation pipeline of the learning support application.
package services

import (
	"embed"
	"strings"
	"text/template"

	"learnapp/internal/config"
	"learnapp/internal/models"
	contextutils "learnapp/internal/utils"
)

//go:embed templates/*.tmpl
var promptTemplatesFS embed.FS

// Template names as constants
const (
	QuestionPromptTemplate      = "question_prompt.tmpl"
	ChoiceExampleTemplate       = "choice_example.tmpl"
	FreeResponseExampleTemplate = "free_response_example.tmpl"
	OCRSinglePromptTemplate     = "ocr_single_prompt.tmpl"
	OCRMultiPromptTemplate      = "ocr_multi_prompt.tmpl"
)

const (
	fallbackSubjectForDetection  = models.SubjectJapanese
	defaultSubjectNameForUnknown = "総合"
)

// SubjectDescriptor is the resolved subject passed to the prompt.
type SubjectDescriptor struct {
	Code     string
	Name     string
	Icon     string
	Keywords []string
}

// DifficultyDescriptor is the resolved difficulty passed to the prompt.
type DifficultyDescriptor struct {
	Code           string
	Name           string
	Level          string
	TargetAccuracy string
}

// PromptInput holds everything the question prompt depends on.
type PromptInput struct {
	SourceText   string
	Subject      SubjectDescriptor
	Difficulty   DifficultyDescriptor
	QuestionType models.QuestionType
	Count        int
}

type promptData struct {
	SourceText       string
	SubjectName      string
	SubjectIcon      string
	Keywords         []string
	DifficultyName   string
	DifficultyLevel  string
	TargetAccuracy   string
	Count            int
	QuestionTypeName string
	IsChoice         bool
	IsCalculation    bool
}

// PromptBuilder renders the embedded prompt templates. It is safe for concurrent use.
type PromptBuilder struct {
	templates *template.Template
}

// NewPromptBuilder parses the embedded templates.
func NewPromptBuilder() (*PromptBuilder, error) {
	templates, err := template.New("").Funcs(template.FuncMap{
		"join": strings.Join,
	}).ParseFS(promptTemplatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to parse prompt templates: %w", err)
	}
	return &PromptBuilder{templates: templates}, nil
}

// Build renders the question generation instruction. The output depends only on in.
func (b *PromptBuilder) Build(in PromptInput) (string, error) {
	subjectName := in.Subject.Name
	if subjectName == "" {
		subjectName = defaultSubjectNameForUnknown
	}
	data := promptData{
		SourceText:       in.SourceText,
		SubjectName:      subjectName,
		SubjectIcon:      in.Subject.Icon,
		Keywords:         in.Subject.Keywords,
		DifficultyName:   in.Difficulty.Name,
		DifficultyLevel:  in.Difficulty.Level,
		TargetAccuracy:   in.Difficulty.TargetAccuracy,
		Count:            in.Count,
		QuestionTypeName: in.QuestionType.DisplayName(),
		IsChoice:         in.QuestionType.IsChoiceType(),
		IsCalculation:    in.QuestionType == models.Calculation,
	}
	return b.render(QuestionPromptTemplate, data)
}

// BuildOCRPrompt renders the single-image OCR instruction.
func (b *PromptBuilder) BuildOCRPrompt() (string, error) {
	return b.render(OCRSinglePromptTemplate, nil)
}

// BuildMultiOCRPrompt renders the multi-image OCR instruction, which asks for a JSON reply.
func (b *PromptBuilder) BuildMultiOCRPrompt(count int) (string, error) {
	return b.render(OCRMultiPromptTemplate, struct{ Count int }{Count: count})
}

func (b *PromptBuilder) render(name string, data interface{}) (string, error) {
	var buf strings.Builder
	if err := b.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to render template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// DetectSubject scores each catalog subject by how many of its keywords occur in
// text. The first subject with the highest score wins; no hits yield japanese.
func DetectSubject(text string, catalog []config.SubjectConfig) models.Subject {
	best := ""
	bestScore := 0
	for _, s := range catalog {
		score := 0
		for _, kw := range s.Keywords {
			if kw != "" && strings.Contains(text, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = s.Code, score
		}
	}
	if bestScore == 0 {
		return fallbackSubjectForDetection
	}
	return models.Subject(best)
}

// NewSubjectDescriptor converts a catalog entry for use in prompts.
func NewSubjectDescriptor(s config.SubjectConfig) SubjectDescriptor {
	return SubjectDescriptor{Code: s.Code, Name: s.Name, Icon: s.Icon, Keywords: s.Keywords}
}

// NewDifficultyDescriptor converts a catalog entry for use in prompts.
func NewDifficultyDescriptor(d config.DifficultyConfig) DifficultyDescriptor {
	return DifficultyDescriptor{Code: d.Code, Name: d.Name, Level: d.Level, TargetAccuracy: d.TargetAccuracy}
}
