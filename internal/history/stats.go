package history

import (
	"sort"
	"time"

	"learnapp/internal/models"
)

// Fallback keys for results saved without a subject or difficulty.
const (
	unknownSubject    = "unknown"
	defaultDifficulty = string(models.DifficultyStandard)
)

func accuracy(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

func perQuestion(spent int64, questions int) float64 {
	if questions <= 0 {
		return 0
	}
	return float64(spent) / float64(questions)
}

// Fold adds one quiz result to data and returns the new aggregate. data is
// not modified; its maps are copied.
func Fold(result models.QuizResult, data models.AggregateLearningData) models.AggregateLearningData {
	out := data
	out.SubjectStats = make(map[string]models.SubjectStats, len(data.SubjectStats)+1)
	for k, v := range data.SubjectStats {
		out.SubjectStats[k] = v
	}
	out.DifficultyStats = make(map[string]models.DifficultyStats, len(data.DifficultyStats)+1)
	for k, v := range data.DifficultyStats {
		out.DifficultyStats[k] = v
	}

	out.TotalQuizzes++
	out.TotalQuestions += result.TotalQuestions
	out.TotalCorrect += result.CorrectAnswers
	out.TotalTimeSpent += result.TimeSpent

	subject := string(result.Subject)
	if subject == "" {
		subject = unknownSubject
	}
	ss := out.SubjectStats[subject]
	ss.TotalQuestions += result.TotalQuestions
	ss.CorrectAnswers += result.CorrectAnswers
	ss.TotalTimeSpent += result.TimeSpent
	ss.QuizCount++
	ss.AverageTime = perQuestion(ss.TotalTimeSpent, ss.TotalQuestions)
	out.SubjectStats[subject] = ss

	difficulty := string(result.Difficulty)
	if difficulty == "" {
		difficulty = defaultDifficulty
	}
	ds := out.DifficultyStats[difficulty]
	ds.TotalQuestions += result.TotalQuestions
	ds.CorrectAnswers += result.CorrectAnswers
	ds.QuizCount++
	out.DifficultyStats[difficulty] = ds

	if out.CreatedAt.IsZero() {
		out.CreatedAt = result.Timestamp
	}
	if result.Timestamp.After(out.LastUpdated) {
		out.LastUpdated = result.Timestamp
	}
	return out
}

// Rebuild folds results into an empty aggregate, oldest first.
func Rebuild(results []models.QuizResult) models.AggregateLearningData {
	ordered := make([]models.QuizResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	data := models.AggregateLearningData{
		SubjectStats:    map[string]models.SubjectStats{},
		DifficultyStats: map[string]models.DifficultyStats{},
	}
	for _, r := range ordered {
		data = Fold(r, data)
	}
	return data
}

// Stats derives LearningStats from an aggregate and results stored newest
// first. Breakdowns are sorted by key.
func Stats(data models.AggregateLearningData, results []models.QuizResult) models.LearningStats {
	stats := models.LearningStats{
		Overview: models.StatsOverview{
			TotalQuizzes:           data.TotalQuizzes,
			TotalQuestions:         data.TotalQuestions,
			Accuracy:               accuracy(data.TotalCorrect, data.TotalQuestions),
			AverageTimePerQuestion: perQuestion(data.TotalTimeSpent, data.TotalQuestions),
		},
		Subjects:       make([]models.CategoryStats, 0, len(data.SubjectStats)),
		Difficulties:   make([]models.CategoryStats, 0, len(data.DifficultyStats)),
		RecentActivity: make([]models.Activity, 0, RecentActivity),
	}

	for _, subject := range sortedKeys(data.SubjectStats) {
		s := data.SubjectStats[subject]
		stats.Subjects = append(stats.Subjects, models.CategoryStats{
			Subject:       subject,
			Accuracy:      accuracy(s.CorrectAnswers, s.TotalQuestions),
			QuestionCount: s.TotalQuestions,
			QuizCount:     s.QuizCount,
		})
	}
	for _, difficulty := range sortedKeys(data.DifficultyStats) {
		d := data.DifficultyStats[difficulty]
		stats.Difficulties = append(stats.Difficulties, models.CategoryStats{
			Difficulty:    difficulty,
			Accuracy:      accuracy(d.CorrectAnswers, d.TotalQuestions),
			QuestionCount: d.TotalQuestions,
			QuizCount:     d.QuizCount,
		})
	}

	for i, r := range results {
		if i == RecentActivity {
			break
		}
		stats.RecentActivity = append(stats.RecentActivity, models.Activity{
			Date:           r.Timestamp.Format(time.DateOnly),
			Accuracy:       accuracy(r.CorrectAnswers, r.TotalQuestions),
			QuestionsCount: r.TotalQuestions,
		})
	}
	return stats
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
