package contextutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalizedMessages_Fallbacks(t *testing.T) {
	lm := NewLocalizedMessages()
	lm.AddMessage(ErrorCodeInvalidInput, LocaleJapanese, "入力内容が正しくありません")
	lm.AddMessage(ErrorCodeRecordNotFound, LocaleEnglish, "Record not found")

	assert.Equal(t, "入力内容が正しくありません", lm.GetMessage(ErrorCodeInvalidInput, LocaleJapanese))
	// unknown locale falls back to Japanese first
	assert.Equal(t, "入力内容が正しくありません", lm.GetMessage(ErrorCodeInvalidInput, Locale("fr")))
	// then English
	assert.Equal(t, "Record not found", lm.GetMessage(ErrorCodeRecordNotFound, LocaleJapanese))
	assert.Equal(t, "An error occurred", lm.GetMessage(ErrorCode("UNKNOWN"), LocaleEnglish))
}

func TestParseLocale(t *testing.T) {
	tests := map[string]Locale{
		"":                   LocaleJapanese,
		"ja":                 LocaleJapanese,
		"ja-JP":              LocaleJapanese,
		"en-US,en;q=0.9":     LocaleEnglish,
		"EN":                 LocaleEnglish,
		"en;q=0.8, ja;q=0.5": LocaleEnglish,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLocale(in), in)
	}
}

func TestGlobalMessages(t *testing.T) {
	assert.Equal(t, "AIへのリクエストに失敗しました", GetLocalizedMessage(ErrorCodeAIRequestFailed, LocaleJapanese))
	assert.Equal(t, "AI request failed", GetLocalizedMessage(ErrorCodeAIRequestFailed, LocaleEnglish))
	assert.Equal(t, "保存容量が不足しています", GetLocalizedMessage(ErrorCodeQuotaExceeded, Locale("fr")))
}
