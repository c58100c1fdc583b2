package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswer_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(IndexAnswer(2))
	require.NoError(t, err)
	assert.Equal(t, "2", string(b))

	b, err = json.Marshal(TextAnswer("光合成"))
	require.NoError(t, err)
	assert.Equal(t, `"光合成"`, string(b))
}

func TestAnswer_UnmarshalJSON(t *testing.T) {
	var a Answer
	require.NoError(t, json.Unmarshal([]byte("3"), &a))
	idx, ok := a.Index()
	assert.True(t, ok)
	assert.Equal(t, 3, idx)

	require.NoError(t, json.Unmarshal([]byte(`"二酸化炭素"`), &a))
	text, ok := a.Text()
	assert.True(t, ok)
	assert.Equal(t, "二酸化炭素", text)

	assert.Error(t, json.Unmarshal([]byte("1.5"), &a))
	assert.Error(t, json.Unmarshal([]byte("true"), &a))
}

func TestQuestion_ChoiceShape(t *testing.T) {
	q := Question{
		ID:            "1",
		QuestionText:  "植物が光を使って養分を作るはたらきは？",
		Options:       []string{"呼吸", "光合成", "蒸散", "発芽"},
		CorrectAnswer: IndexAnswer(1),
	}
	assert.True(t, q.IsChoice())
	assert.Equal(t, "光合成", q.CorrectAnswerText())

	b, err := json.Marshal(q)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Len(t, raw["options"], 4)
	assert.Equal(t, float64(1), raw["correctAnswer"])
}

func TestQuestion_FreeResponseOmitsOptions(t *testing.T) {
	q := Question{
		ID:            "1",
		QuestionText:  "光合成で作られる気体は何か。",
		CorrectAnswer: TextAnswer("酸素"),
		Keywords:      []string{"酸素"},
	}
	assert.False(t, q.IsChoice())
	assert.Equal(t, "酸素", q.CorrectAnswerText())

	b, err := json.Marshal(q)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.NotContains(t, raw, "options")
	assert.Equal(t, "酸素", raw["correctAnswer"])
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, SubjectAuto.Valid())
	assert.True(t, SubjectSocial.Valid())
	assert.False(t, Subject("music").Valid())

	assert.True(t, DifficultyChallenge.Valid())
	assert.False(t, Difficulty("expert").Valid())

	assert.True(t, Calculation.Valid())
	assert.False(t, QuestionType("essay").Valid())

	assert.True(t, MultipleChoice.IsChoiceType())
	assert.False(t, ShortAnswer.IsChoiceType())
	assert.False(t, Calculation.IsChoiceType())
	assert.Equal(t, "計算問題", Calculation.DisplayName())
}

func TestBatchOutcome_AllFailed(t *testing.T) {
	assert.False(t, BatchOutcome{}.AllFailed())
	assert.False(t, BatchOutcome{ProcessedBatches: 3, FailedBatches: 1}.AllFailed())
	assert.True(t, BatchOutcome{ProcessedBatches: 2, FailedBatches: 2}.AllFailed())
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, SubjectAuto, s.Subject)
	assert.Equal(t, DifficultyStandard, s.Difficulty)
	assert.Equal(t, "light", s.Theme)
	assert.True(t, s.AutoSave)
	assert.True(t, s.ShowExplanations)
}
