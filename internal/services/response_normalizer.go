package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"learnapp/internal/models"
	contextutils "learnapp/internal/utils"

	"github.com/xeipuuv/gojsonschema"
)

// Placeholders substituted for missing or malformed fields
const (
	PlaceholderQuestionText = "問題文がありません"
	PlaceholderExplanation  = "解説はありません"
	PlaceholderModelAnswer  = "解答例はありません"
	PlaceholderContentType  = "テキスト"
)

// rawPreviewLength bounds the raw text quoted in parse errors.
const rawPreviewLength = 500

const choiceCount = 4

// Expected shapes of one AI question object. Used for diagnostics only; the
// coercion below accepts anything.
const (
	ChoiceQuestionSchema = `{
		"type": "object",
		"properties": {
			"id": {"type": ["string", "integer"]},
			"question": {"type": "string", "minLength": 1},
			"questionText": {"type": "string", "minLength": 1},
			"options": {"type": "array", "items": {"type": "string"}, "minItems": 4, "maxItems": 4},
			"correctAnswer": {"type": "integer", "minimum": 0, "maximum": 3},
			"explanation": {"type": "string"},
			"category": {"type": "string"}
		},
		"anyOf": [{"required": ["question"]}, {"required": ["questionText"]}],
		"required": ["options", "correctAnswer", "explanation"]
	}`

	FreeResponseQuestionSchema = `{
		"type": "object",
		"properties": {
			"id": {"type": ["string", "integer"]},
			"question": {"type": "string", "minLength": 1},
			"questionText": {"type": "string", "minLength": 1},
			"correctAnswer": {"type": "string"},
			"explanation": {"type": "string"},
			"keywords": {"type": "array", "items": {"type": "string"}},
			"category": {"type": "string"}
		},
		"anyOf": [{"required": ["question"]}, {"required": ["questionText"]}],
		"required": ["correctAnswer", "explanation"]
	}`
)

var jsonFencePattern = regexp.MustCompile("(?s)```json\\s*(.*?)(?:```|$)")

var (
	schemaOnce         sync.Once
	choiceSchema       *gojsonschema.Schema
	freeResponseSchema *gojsonschema.Schema
)

func loadSchemas() {
	schemaOnce.Do(func() {
		// A compile failure leaves the schema nil and disables diagnostics for that type.
		choiceSchema, _ = gojsonschema.NewSchema(gojsonschema.NewStringLoader(ChoiceQuestionSchema))
		freeResponseSchema, _ = gojsonschema.NewSchema(gojsonschema.NewStringLoader(FreeResponseQuestionSchema))
	})
}

// NormalizeDefaults are the caller-supplied values used when the AI omits a field.
type NormalizeDefaults struct {
	Subject      models.Subject
	Difficulty   models.Difficulty
	Category     string
	QuestionType models.QuestionType
}

// ParsedQuestions is the normalized question list.
type ParsedQuestions struct {
	Questions []models.Question
	// SchemaDeviations counts raw elements that did not match the expected shape
	// before coercion.
	SchemaDeviations int
	// Deviations holds one message per failed schema check.
	Deviations []string
}

// Normalize parses raw AI output and coerces every question to the fixed shape.
// It fails only when the text is not JSON or holds no question list.
func Normalize(raw string, defaults NormalizeDefaults) (*ParsedQuestions, error) {
	if defaults.QuestionType == "" {
		defaults.QuestionType = models.MultipleChoice
	}

	doc, err := parseAIJSON(raw)
	if err != nil {
		return nil, err
	}

	items, err := resolveQuestionList(doc)
	if err != nil {
		return nil, err
	}

	loadSchemas()
	schema := freeResponseSchema
	if defaults.QuestionType.IsChoiceType() {
		schema = choiceSchema
	}

	result := &ParsedQuestions{Questions: make([]models.Question, 0, len(items))}
	for i, item := range items {
		if msg := schemaDeviation(schema, item); msg != "" {
			result.SchemaDeviations++
			result.Deviations = append(result.Deviations, fmt.Sprintf("question %d: %s", i+1, msg))
		}
		result.Questions = append(result.Questions, coerceQuestion(item, i, defaults))
	}
	return result, nil
}

// ExtractJSONText trims raw and returns the content of a ```json fence when present.
func ExtractJSONText(raw string) string {
	text := strings.TrimSpace(raw)
	if m := jsonFencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

func parseAIJSON(raw string) (interface{}, error) {
	text := ExtractJSONText(raw)

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var doc interface{}
	err := dec.Decode(&doc)
	if err == nil {
		// Anything after the first value means the reply was not a single JSON document.
		var extra interface{}
		if tailErr := dec.Decode(&extra); !errors.Is(tailErr, io.EOF) {
			err = fmt.Errorf("unexpected content after JSON value")
		}
	}
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIResponseInvalid,
			"failed to parse AI response as JSON: %s (raw: %s)", err.Error(), truncateRunes(raw, rawPreviewLength))
	}
	return doc, nil
}

func resolveQuestionList(doc interface{}) ([]interface{}, error) {
	var items []interface{}
	switch v := doc.(type) {
	case map[string]interface{}:
		if q, ok := v["questions"]; ok {
			list, isList := q.([]interface{})
			if !isList {
				return nil, contextutils.WrapErrorf(contextutils.ErrAIResponseInvalid, "questions field is not a list (got %T)", q)
			}
			items = list
		} else {
			items = []interface{}{v}
		}
	case []interface{}:
		items = v
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrAIResponseInvalid, "AI response is not a JSON object or array (got %T)", doc)
	}
	if len(items) == 0 {
		return nil, contextutils.WrapError(contextutils.ErrAIResponseInvalid, "AI response contained no questions")
	}
	return items, nil
}

func schemaDeviation(schema *gojsonschema.Schema, item interface{}) string {
	if schema == nil {
		return ""
	}
	res, err := schema.Validate(gojsonschema.NewGoLoader(item))
	if err != nil {
		return err.Error()
	}
	if res.Valid() {
		return ""
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return strings.Join(msgs, "; ")
}

func coerceQuestion(item interface{}, index int, defaults NormalizeDefaults) models.Question {
	obj, _ := item.(map[string]interface{})

	q := models.Question{
		ID:           coerceID(obj["id"], index),
		QuestionText: firstNonEmptyString(obj["question"], obj["questionText"]),
		Explanation:  stringValue(obj["explanation"]),
		Category:     stringValue(obj["category"]),
		Subject:      defaults.Subject,
		Difficulty:   models.Difficulty(stringValue(obj["difficulty"])),
		Type:         defaults.QuestionType,
	}
	if q.QuestionText == "" {
		q.QuestionText = PlaceholderQuestionText
	}
	if q.Explanation == "" {
		q.Explanation = PlaceholderExplanation
	}
	if q.Category == "" {
		q.Category = defaults.Category
	}
	if !q.Difficulty.Valid() {
		q.Difficulty = defaults.Difficulty
	}

	if defaults.QuestionType.IsChoiceType() {
		q.Options = coerceOptions(obj["options"])
		q.CorrectAnswer = models.IndexAnswer(coerceAnswerIndex(obj["correctAnswer"]))
		return q
	}

	answer := scalarString(obj["correctAnswer"])
	if answer == "" {
		answer = PlaceholderModelAnswer
	}
	q.CorrectAnswer = models.TextAnswer(answer)
	q.Keywords = stringList(obj["keywords"])
	return q
}

func coerceID(v interface{}, index int) string {
	if id := scalarString(v); id != "" {
		return id
	}
	return strconv.Itoa(index + 1)
}

func coerceOptions(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok || len(list) != choiceCount {
		return placeholderOptions()
	}
	options := make([]string, choiceCount)
	for i, o := range list {
		options[i] = scalarString(o)
	}
	return options
}

func placeholderOptions() []string {
	options := make([]string, choiceCount)
	for i := range options {
		options[i] = fmt.Sprintf("選択肢%d", i+1)
	}
	return options
}

// coerceAnswerIndex accepts integers and whole floats such as 2.0 in
// [0, choiceCount); anything else is index 0.
func coerceAnswerIndex(v interface{}) int {
	n, ok := v.(json.Number)
	if !ok {
		return 0
	}
	if idx, err := n.Int64(); err == nil {
		if idx < 0 || idx >= choiceCount {
			return 0
		}
		return int(idx)
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < 0 || f >= choiceCount {
		return 0
	}
	return int(f)
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func firstNonEmptyString(values ...interface{}) string {
	for _, v := range values {
		if s := stringValue(v); s != "" {
			return s
		}
	}
	return ""
}

// scalarString renders strings, numbers and booleans; other values yield "".
func scalarString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func stringList(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s := scalarString(item); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// NormalizeOCR coerces a multi-image OCR reply into an OCRResult. Replies that
// are not a JSON object are taken as plain combined text.
func NormalizeOCR(raw string, imageCount int, filenames []string) *models.OCRResult {
	result := &models.OCRResult{}

	doc, err := parseAIJSON(raw)
	obj, isObject := doc.(map[string]interface{})
	if err != nil || !isObject {
		result.ExtractedText = strings.TrimSpace(raw)
		result.Confidence = CalculateConfidence(result.ExtractedText)
		result.ImageDetails = emptyImageDetails(imageCount, filenames)
		return result
	}

	images, _ := obj["images"].([]interface{})
	n := imageCount
	if n <= 0 {
		n = len(images)
	}

	var contents []string
	var confidenceSum float64
	var scored int
	result.ImageDetails = make([]models.ImageDetail, n)
	for i := 0; i < n; i++ {
		detail := models.ImageDetail{
			Filename:    filenameAt(filenames, i),
			ContentType: PlaceholderContentType,
		}
		if i < len(images) {
			img, _ := images[i].(map[string]interface{})
			detail.Content = firstNonEmptyString(img["content"], img["text"])
			if ct := stringValue(img["contentType"]); ct != "" {
				detail.ContentType = ct
			}
		}
		if detail.Content != "" {
			detail.Confidence = CalculateConfidence(detail.Content)
			confidenceSum += detail.Confidence
			scored++
			contents = append(contents, detail.Content)
		}
		result.ImageDetails[i] = detail
	}

	result.ExtractedText = stringValue(obj["combinedText"])
	if result.ExtractedText == "" {
		result.ExtractedText = strings.Join(contents, "\n\n")
	}
	result.CombinedAnalysis = analysisText(obj["analysis"])

	if scored > 0 {
		result.Confidence = confidenceSum / float64(scored)
	} else {
		result.Confidence = CalculateConfidence(result.ExtractedText)
	}
	return result
}

func analysisText(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func emptyImageDetails(n int, filenames []string) []models.ImageDetail {
	details := make([]models.ImageDetail, n)
	for i := range details {
		details[i] = models.ImageDetail{Filename: filenameAt(filenames, i), ContentType: PlaceholderContentType}
	}
	return details
}

func filenameAt(filenames []string, i int) string {
	if i < len(filenames) && filenames[i] != "" {
		return filenames[i]
	}
	return fmt.Sprintf("image_%d", i+1)
}
