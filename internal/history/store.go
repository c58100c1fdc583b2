package history

import (
	"context"
	"encoding/json"
	"time"

	"learnapp/internal/models"
	"learnapp/internal/observability"
	contextutils "learnapp/internal/utils"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"
)

// Storage keys. Their names match what the web client writes, so exports
// move between the two unchanged.
const (
	KeySettings     = "learning_support_settings"
	KeySessions     = "learning_support_sessions"
	KeyLearningData = "learning_support_learning_data"
	KeyQuizResults  = "learning_support_quiz_results"
)

// Retention caps.
const (
	MaxSessions    = 20
	MaxQuizResults = 50
	RecentActivity = 10
)

// keyNames labels each key in the storage usage breakdown.
var keyNames = []struct {
	Name string
	Key  string
}{
	{"SETTINGS", KeySettings},
	{"SESSIONS", KeySessions},
	{"LEARNING_DATA", KeyLearningData},
	{"QUIZ_RESULTS", KeyQuizResults},
}

// KeyNames returns the storage usage breakdown labels in a stable order.
func KeyNames() []string {
	names := make([]string, len(keyNames))
	for i, k := range keyNames {
		names[i] = k.Name
	}
	return names
}

// Store is the learner's history. Read paths never fail: missing or corrupt
// values read as their defaults. Write paths report success as a bool and
// log the cause.
type Store struct {
	backend       Backend
	logger        *observability.Logger
	retentionDays int
	now           func() time.Time
}

// NewStore wraps backend. retentionDays bounds CleanupOldData and defaults to 30.
func NewStore(backend Backend, retentionDays int, logger *observability.Logger) *Store {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &Store{
		backend:       backend,
		logger:        logger,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// WithClock replaces the store's time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) load(ctx context.Context, key string, v interface{}) bool {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Error(ctx, "Failed to read history key", err, map[string]interface{}{"key": key})
		return false
	}
	if !ok {
		return false
	}
	if !Decode(raw, v) {
		s.logger.Warn(ctx, "Discarding undecodable history value", map[string]interface{}{"key": key})
		return false
	}
	return true
}

func (s *Store) write(ctx context.Context, key string, v interface{}) error {
	encoded, err := Encode(v)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, key, encoded)
}

// save writes v under key. A quota failure triggers one cleanup and one retry.
func (s *Store) save(ctx context.Context, key string, v interface{}) bool {
	err := s.write(ctx, key, v)
	if err == nil {
		return true
	}
	if !contextutils.IsQuota(err) {
		s.logger.Error(ctx, "Failed to save history key", err, map[string]interface{}{"key": key})
		return false
	}

	s.logger.Warn(ctx, "History quota exceeded, cleaning up old data", map[string]interface{}{"key": key})
	s.cleanup(ctx)
	if err := s.write(ctx, key, v); err != nil {
		s.logger.Error(ctx, "Retry after cleanup failed", err, map[string]interface{}{"key": key})
		return false
	}
	return true
}

// GetSettings returns the stored settings or the defaults.
func (s *Store) GetSettings(ctx context.Context) models.Settings {
	settings := models.DefaultSettings()
	if !s.load(ctx, KeySettings, &settings) {
		return models.DefaultSettings()
	}
	return settings
}

func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) bool {
	return s.save(ctx, KeySettings, settings)
}

// GetSessions returns saved sessions, newest first.
func (s *Store) GetSessions(ctx context.Context) []models.Session {
	var sessions []models.Session
	if !s.load(ctx, KeySessions, &sessions) || sessions == nil {
		return []models.Session{}
	}
	return sessions
}

// SaveSession prepends session to the list, assigning an id and timestamp
// when missing, and keeps the newest MaxSessions.
func (s *Store) SaveSession(ctx context.Context, session models.Session) (models.Session, bool) {
	ctx, span := observability.TraceHistoryFunction(ctx, "save_session")
	defer span.End()

	now := s.now()
	if session.ID == 0 {
		session.ID = now.UnixMilli()
	}
	if session.Timestamp.IsZero() {
		session.Timestamp = now.UTC()
	}
	span.SetAttributes(attribute.Int64("history.session_id", session.ID))

	sessions := append([]models.Session{session}, s.GetSessions(ctx)...)
	if len(sessions) > MaxSessions {
		sessions = sessions[:MaxSessions]
	}
	return session, s.save(ctx, KeySessions, sessions)
}

func (s *Store) GetSession(ctx context.Context, id int64) (models.Session, bool) {
	for _, session := range s.GetSessions(ctx) {
		if session.ID == id {
			return session, true
		}
	}
	return models.Session{}, false
}

// DeleteSession removes the session with id. Deleting an unknown id succeeds.
func (s *Store) DeleteSession(ctx context.Context, id int64) bool {
	sessions := s.GetSessions(ctx)
	kept := sessions[:0]
	for _, session := range sessions {
		if session.ID != id {
			kept = append(kept, session)
		}
	}
	return s.save(ctx, KeySessions, kept)
}

// GetQuizResults returns stored results, newest first.
func (s *Store) GetQuizResults(ctx context.Context) []models.QuizResult {
	var results []models.QuizResult
	if !s.load(ctx, KeyQuizResults, &results) || results == nil {
		return []models.QuizResult{}
	}
	return results
}

// SaveQuizResults stamps and scores result, prepends it to the stored results
// (keeping MaxQuizResults) and folds it into the aggregate learning data.
// The aggregate is written first because it also counts results the cap has
// evicted; if the results write then fails the previous aggregate is put back.
// Should that restore fail too, `learnctl history rebuild` recomputes the
// aggregate from the stored results.
func (s *Store) SaveQuizResults(ctx context.Context, result models.QuizResult) bool {
	ctx, span := observability.TraceHistoryFunction(ctx, "save_quiz_results",
		attribute.Int64("history.session_id", result.SessionID),
		observability.AttributeQuestionCount(result.TotalQuestions),
	)
	defer span.End()

	if result.Timestamp.IsZero() {
		result.Timestamp = s.now().UTC()
	}
	result.Accuracy = accuracy(result.CorrectAnswers, result.TotalQuestions)

	results := append([]models.QuizResult{result}, s.GetQuizResults(ctx)...)
	if len(results) > MaxQuizResults {
		results = results[:MaxQuizResults]
	}

	previous := s.GetLearningData(ctx)
	if !s.save(ctx, KeyLearningData, Fold(result, previous)) {
		return false
	}
	if !s.save(ctx, KeyQuizResults, results) {
		if !s.save(ctx, KeyLearningData, previous) {
			s.logger.Error(ctx, "Learning data no longer matches quiz results; run history rebuild", nil,
				map[string]interface{}{"session_id": result.SessionID})
		}
		return false
	}
	return true
}

// GetLearningData returns the stored aggregate or an empty one stamped now.
func (s *Store) GetLearningData(ctx context.Context) models.AggregateLearningData {
	var data models.AggregateLearningData
	if !s.load(ctx, KeyLearningData, &data) {
		now := s.now().UTC()
		data = models.AggregateLearningData{CreatedAt: now, LastUpdated: now}
	}
	if data.SubjectStats == nil {
		data.SubjectStats = map[string]models.SubjectStats{}
	}
	if data.DifficultyStats == nil {
		data.DifficultyStats = map[string]models.DifficultyStats{}
	}
	return data
}

// RebuildLearningData recomputes the aggregate from the stored results and
// saves it. Results evicted by the cap are no longer counted.
func (s *Store) RebuildLearningData(ctx context.Context) (models.AggregateLearningData, bool) {
	data := Rebuild(s.GetQuizResults(ctx))
	if data.CreatedAt.IsZero() {
		now := s.now().UTC()
		data.CreatedAt, data.LastUpdated = now, now
	}
	return data, s.save(ctx, KeyLearningData, data)
}

// GetLearningStats derives the overview and breakdowns from the aggregate and
// the RecentActivity newest results.
func (s *Store) GetLearningStats(ctx context.Context) models.LearningStats {
	return Stats(s.GetLearningData(ctx), s.GetQuizResults(ctx))
}

// ExportAllData returns every section as an indented JSON document.
func (s *Store) ExportAllData(ctx context.Context) (string, error) {
	settings := s.GetSettings(ctx)
	data := s.GetLearningData(ctx)
	doc := exportDocument{
		Settings:     &settings,
		Sessions:     s.GetSessions(ctx),
		QuizResults:  s.GetQuizResults(ctx),
		LearningData: &data,
		ExportedAt:   s.now().UTC(),
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInternalError, "export failed: %v", err)
	}
	return string(out), nil
}

// exportDocument always emits every section, even when empty.
type exportDocument struct {
	Settings     *models.Settings              `json:"settings"`
	Sessions     []models.Session              `json:"sessions"`
	QuizResults  []models.QuizResult           `json:"quizResults"`
	LearningData *models.AggregateLearningData `json:"learningData"`
	ExportedAt   time.Time                     `json:"exportedAt"`
}

// ImportData writes each section present in an exported document. Sections
// that are absent keep their current value.
func (s *Store) ImportData(ctx context.Context, document string) bool {
	var doc models.ExportDocument
	if err := json.Unmarshal([]byte(document), &doc); err != nil {
		s.logger.Warn(ctx, "Import failed: document is not valid JSON", map[string]interface{}{"error": err.Error()})
		return false
	}

	ok := true
	if doc.Settings != nil {
		ok = s.SaveSettings(ctx, *doc.Settings) && ok
	}
	if doc.Sessions != nil {
		ok = s.save(ctx, KeySessions, doc.Sessions) && ok
	}
	if doc.QuizResults != nil {
		ok = s.save(ctx, KeyQuizResults, doc.QuizResults) && ok
	}
	if doc.LearningData != nil {
		ok = s.save(ctx, KeyLearningData, doc.LearningData) && ok
	}
	return ok
}

// ClearAllData deletes every history key.
func (s *Store) ClearAllData(ctx context.Context) bool {
	ok := true
	for _, k := range keyNames {
		if err := s.backend.Delete(ctx, k.Key); err != nil {
			s.logger.Error(ctx, "Failed to delete history key", err, map[string]interface{}{"key": k.Key})
			ok = false
		}
	}
	return ok
}

// CleanupOldData drops sessions and results older than the retention window.
func (s *Store) CleanupOldData(ctx context.Context) bool {
	return s.cleanup(ctx)
}

// cleanup writes directly to the backend so that it never re-enters quota recovery.
func (s *Store) cleanup(ctx context.Context) bool {
	cutoff := s.now().AddDate(0, 0, -s.retentionDays)

	sessions := s.GetSessions(ctx)
	recentSessions := make([]models.Session, 0, len(sessions))
	for _, session := range sessions {
		if session.Timestamp.After(cutoff) {
			recentSessions = append(recentSessions, session)
		}
	}

	results := s.GetQuizResults(ctx)
	recentResults := make([]models.QuizResult, 0, len(results))
	for _, r := range results {
		if r.Timestamp.After(cutoff) {
			recentResults = append(recentResults, r)
		}
	}

	ok := true
	if err := s.write(ctx, KeySessions, recentSessions); err != nil {
		s.logger.Error(ctx, "Cleanup failed to rewrite sessions", err)
		ok = false
	}
	if err := s.write(ctx, KeyQuizResults, recentResults); err != nil {
		s.logger.Error(ctx, "Cleanup failed to rewrite quiz results", err)
		ok = false
	}
	s.logger.Info(ctx, "Old history cleaned up", map[string]interface{}{
		"sessions_removed": len(sessions) - len(recentSessions),
		"results_removed":  len(results) - len(recentResults),
		"retention_days":   s.retentionDays,
	})
	return ok
}

// GetStorageUsage reports the stored bytes for each history key.
func (s *Store) GetStorageUsage(ctx context.Context) (models.StorageUsage, error) {
	usage := models.StorageUsage{Breakdown: make(map[string]models.UsageEntry, len(keyNames))}
	total := 0
	for _, k := range keyNames {
		raw, _, err := s.backend.Get(ctx, k.Key)
		if err != nil {
			return models.StorageUsage{}, err
		}
		usage.Breakdown[k.Name] = usageEntry(len(raw))
		total += len(raw)
	}
	usage.Total = usageEntry(total)
	return usage, nil
}

func usageEntry(size int) models.UsageEntry {
	return models.UsageEntry{Size: size, SizeFormatted: humanize.IBytes(uint64(size))}
}
