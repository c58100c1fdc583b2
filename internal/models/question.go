package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Answer holds either an option index (choice questions) or a model answer text
// (free-response questions). The zero value is index 0.
type Answer struct {
	index  int
	text   string
	isText bool
}

// IndexAnswer returns an answer pointing at option i.
func IndexAnswer(i int) Answer {
	return Answer{index: i}
}

// TextAnswer returns a free-text model answer.
func TextAnswer(s string) Answer {
	return Answer{text: s, isText: true}
}

// Index returns the option index and true when the answer is index-based.
func (a Answer) Index() (int, bool) {
	return a.index, !a.isText
}

// Text returns the model answer and true when the answer is text-based.
func (a Answer) Text() (string, bool) {
	return a.text, a.isText
}

// IsText reports whether the answer is a free-text answer.
func (a Answer) IsText() bool {
	return a.isText
}

func (a Answer) String() string {
	if a.isText {
		return a.text
	}
	return strconv.Itoa(a.index)
}

// MarshalJSON encodes an index answer as a JSON number and a text answer as a JSON string.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.isText {
		return json.Marshal(a.text)
	}
	return json.Marshal(a.index)
}

// UnmarshalJSON accepts a JSON integer or a JSON string.
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = TextAnswer(s)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("correctAnswer must be an integer or a string: %w", err)
	}
	*a = IndexAnswer(n)
	return nil
}

// Question is a single generated quiz item.
type Question struct {
	ID            string       `json:"id"`
	QuestionText  string       `json:"questionText"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer Answer       `json:"correctAnswer"`
	Explanation   string       `json:"explanation"`
	Subject       Subject      `json:"subject"`
	Difficulty    Difficulty   `json:"difficulty"`
	Category      string       `json:"category"`
	Type          QuestionType `json:"type,omitempty"`
	Keywords      []string     `json:"keywords,omitempty"`
}

// IsChoice reports whether the question carries options and an index answer.
func (q *Question) IsChoice() bool {
	_, isIndex := q.CorrectAnswer.Index()
	return len(q.Options) > 0 && isIndex
}

// CorrectAnswerText returns the text of the correct option, or the model answer for free response.
func (q *Question) CorrectAnswerText() string {
	if text, ok := q.CorrectAnswer.Text(); ok {
		return text
	}
	idx, _ := q.CorrectAnswer.Index()
	if idx >= 0 && idx < len(q.Options) {
		return q.Options[idx]
	}
	return ""
}

// GenerationRequest is the body of POST /api/questions/generate. Empty optional
// fields take the defaults auto, standard, multiple_choice and 3.
type GenerationRequest struct {
	Text          string       `json:"text" validate:"required"`
	Subject       Subject      `json:"subject,omitempty"`
	Difficulty    Difficulty   `json:"difficulty,omitempty"`
	QuestionType  QuestionType `json:"questionType,omitempty"`
	QuestionCount int          `json:"questionCount,omitempty" validate:"gte=0"`
}

// GenerationResult is the successful response of a question generation call.
type GenerationResult struct {
	Success          bool         `json:"success"`
	Timestamp        time.Time    `json:"timestamp"`
	SourceTextLength int          `json:"sourceTextLength"`
	DetectedSubject  Subject      `json:"detectedSubject"`
	SubjectName      string       `json:"subjectName"`
	Difficulty       Difficulty   `json:"difficulty"`
	QuestionType     QuestionType `json:"questionType"`
	Questions        []Question   `json:"questions"`
	Attempts         int          `json:"attempts"`
}

// CatalogEntry describes one option of a config enumeration.
type CatalogEntry struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Icon           string   `json:"icon,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
	Level          string   `json:"level,omitempty"`
	TargetAccuracy string   `json:"targetAccuracy,omitempty"`
}

// QuestionConfig is the body of GET /api/questions/config.
type QuestionConfig struct {
	Subjects      []CatalogEntry `json:"subjects"`
	Difficulties  []CatalogEntry `json:"difficulties"`
	QuestionTypes []CatalogEntry `json:"questionTypes"`
}
