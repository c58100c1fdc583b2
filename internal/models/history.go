package models

import "time"

// Session is a saved question generation run.
type Session struct {
	ID            int64        `json:"id"`
	Timestamp     time.Time    `json:"timestamp"`
	ExtractedText string       `json:"extractedText"`
	Subject       Subject      `json:"subject"`
	Difficulty    Difficulty   `json:"difficulty"`
	QuestionType  QuestionType `json:"questionType,omitempty"`
	Questions     []Question   `json:"questions"`
}

// AnswerRecord is one answered question within a quiz run.
type AnswerRecord struct {
	QuestionID string `json:"questionId"`
	UserAnswer string `json:"userAnswer"`
	IsCorrect  bool   `json:"isCorrect"`
}

// QuizResult is the scored outcome of answering a session's questions.
// TimeSpent is in seconds.
type QuizResult struct {
	SessionID      int64          `json:"sessionId"`
	Timestamp      time.Time      `json:"timestamp"`
	Subject        Subject        `json:"subject,omitempty"`
	Difficulty     Difficulty     `json:"difficulty,omitempty"`
	Score          int            `json:"score"`
	TotalQuestions int            `json:"totalQuestions"`
	CorrectAnswers int            `json:"correctAnswers"`
	TimeSpent      int64          `json:"timeSpent"`
	Answers        []AnswerRecord `json:"answers,omitempty"`
	Accuracy       float64        `json:"accuracy"`
}

// SubjectStats accumulates results for one subject.
type SubjectStats struct {
	TotalQuestions int     `json:"totalQuestions"`
	CorrectAnswers int     `json:"correctAnswers"`
	TotalTimeSpent int64   `json:"totalTimeSpent"`
	AverageTime    float64 `json:"averageTime"`
	QuizCount      int     `json:"quizCount"`
}

// DifficultyStats accumulates results for one difficulty tier.
type DifficultyStats struct {
	TotalQuestions int `json:"totalQuestions"`
	CorrectAnswers int `json:"correctAnswers"`
	QuizCount      int `json:"quizCount"`
}

// AggregateLearningData holds running totals across all quiz results.
type AggregateLearningData struct {
	TotalQuizzes    int                        `json:"totalQuizzes"`
	TotalQuestions  int                        `json:"totalQuestions"`
	TotalCorrect    int                        `json:"totalCorrect"`
	TotalTimeSpent  int64                      `json:"totalTimeSpent"`
	SubjectStats    map[string]SubjectStats    `json:"subjectStats"`
	DifficultyStats map[string]DifficultyStats `json:"difficultyStats"`
	CreatedAt       time.Time                  `json:"createdAt"`
	LastUpdated     time.Time                  `json:"lastUpdated"`
}

// StatsOverview is the headline part of LearningStats.
type StatsOverview struct {
	TotalQuizzes           int     `json:"totalQuizzes"`
	TotalQuestions         int     `json:"totalQuestions"`
	Accuracy               float64 `json:"accuracy"`
	AverageTimePerQuestion float64 `json:"averageTimePerQuestion"`
}

// CategoryStats is one row of a per-subject or per-difficulty breakdown.
type CategoryStats struct {
	Subject       string  `json:"subject,omitempty"`
	Difficulty    string  `json:"difficulty,omitempty"`
	Accuracy      float64 `json:"accuracy"`
	QuestionCount int     `json:"questionCount"`
	QuizCount     int     `json:"quizCount"`
}

// Activity is one recent quiz result in LearningStats.
type Activity struct {
	Date           string  `json:"date"`
	Accuracy       float64 `json:"accuracy"`
	QuestionsCount int     `json:"questionsCount"`
}

// LearningStats is derived from the aggregate and the stored results.
type LearningStats struct {
	Overview       StatsOverview   `json:"overview"`
	Subjects       []CategoryStats `json:"subjects"`
	Difficulties   []CategoryStats `json:"difficulties"`
	RecentActivity []Activity      `json:"recentActivity"`
}

// Settings are the learner's saved preferences.
type Settings struct {
	Subject          Subject    `json:"subject"`
	Difficulty       Difficulty `json:"difficulty"`
	Theme            string     `json:"theme"`
	AutoSave         bool       `json:"autoSave"`
	ShowExplanations bool       `json:"showExplanations"`
}

// DefaultSettings returns the settings used when none are stored.
func DefaultSettings() Settings {
	return Settings{
		Subject:          SubjectAuto,
		Difficulty:       DifficultyStandard,
		Theme:            "light",
		AutoSave:         true,
		ShowExplanations: true,
	}
}

// ExportDocument is the full history snapshot produced by export and consumed by import.
// Pointer fields let import skip sections that are absent.
type ExportDocument struct {
	Settings     *Settings              `json:"settings,omitempty"`
	Sessions     []Session              `json:"sessions,omitempty"`
	QuizResults  []QuizResult           `json:"quizResults,omitempty"`
	LearningData *AggregateLearningData `json:"learningData,omitempty"`
	ExportedAt   time.Time              `json:"exportedAt"`
}

// UsageEntry is the size of one stored key.
type UsageEntry struct {
	Size          int    `json:"size"`
	SizeFormatted string `json:"sizeFormatted"`
}

// StorageUsage reports bytes used per key and in total.
type StorageUsage struct {
	Total     UsageEntry            `json:"total"`
	Breakdown map[string]UsageEntry `json:"breakdown"`
}
