// Package models defines data structures used throughout the learning support application.
package models

// Subject identifies a school subject. The built-in set can be extended from config.
type Subject string

// Difficulty identifies a difficulty tier.
type Difficulty string

// QuestionType identifies the answer format of a generated question.
type QuestionType string

// Subjects supported out of the box
const (
	// SubjectAuto asks the service to detect the subject from the source text
	SubjectAuto     Subject = "auto"
	SubjectMath     Subject = "math"
	SubjectJapanese Subject = "japanese"
	SubjectScience  Subject = "science"
	SubjectSocial   Subject = "social"
	SubjectEnglish  Subject = "english"
)

// Difficulty tiers
const (
	DifficultyBasic     Difficulty = "basic"
	DifficultyStandard  Difficulty = "standard"
	DifficultyAdvanced  Difficulty = "advanced"
	DifficultyChallenge Difficulty = "challenge"
)

// Question types supported by the generator
const (
	// MultipleChoice questions carry 4 options and an answer index
	MultipleChoice QuestionType = "multiple_choice"
	// ShortAnswer questions carry a model answer text and keywords
	ShortAnswer QuestionType = "short_answer"
	// Calculation questions are free response with a worked answer
	Calculation QuestionType = "calculation"
)

// AllSubjects lists the built-in subjects in catalog order, excluding auto.
var AllSubjects = []Subject{SubjectMath, SubjectJapanese, SubjectScience, SubjectSocial, SubjectEnglish}

// AllDifficulties lists difficulty tiers from easiest to hardest.
var AllDifficulties = []Difficulty{DifficultyBasic, DifficultyStandard, DifficultyAdvanced, DifficultyChallenge}

// AllQuestionTypes lists the supported question types.
var AllQuestionTypes = []QuestionType{MultipleChoice, ShortAnswer, Calculation}

// Valid reports whether s is auto or one of the built-in subjects.
func (s Subject) Valid() bool {
	if s == SubjectAuto {
		return true
	}
	for _, known := range AllSubjects {
		if s == known {
			return true
		}
	}
	return false
}

// Valid reports whether d is a known difficulty tier.
func (d Difficulty) Valid() bool {
	for _, known := range AllDifficulties {
		if d == known {
			return true
		}
	}
	return false
}

// Valid reports whether t is a supported question type.
func (t QuestionType) Valid() bool {
	for _, known := range AllQuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsChoiceType reports whether questions of this type have 4 options and an index answer.
func (t QuestionType) IsChoiceType() bool {
	return t == MultipleChoice
}

// DisplayName returns the Japanese label used in prompts and the config endpoint.
func (t QuestionType) DisplayName() string {
	switch t {
	case MultipleChoice:
		return "選択肢問題"
	case ShortAnswer:
		return "記述問題"
	case Calculation:
		return "計算問題"
	default:
		return string(t)
	}
}
