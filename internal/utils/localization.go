package contextutils

import "strings"

// Locale represents a language locale (e.g., "ja", "en")
type Locale string

const (
	// LocaleJapanese is the default locale for learner-facing messages
	LocaleJapanese Locale = "ja"
	// LocaleEnglish represents English language
	LocaleEnglish Locale = "en"
)

// LocalizedMessages contains localized error messages for different locales
type LocalizedMessages struct {
	messages map[ErrorCode]map[Locale]string
}

// NewLocalizedMessages creates a new instance of localized messages
func NewLocalizedMessages() *LocalizedMessages {
	return &LocalizedMessages{
		messages: make(map[ErrorCode]map[Locale]string),
	}
}

// AddMessage adds a localized message for a specific error code and locale
func (lm *LocalizedMessages) AddMessage(code ErrorCode, locale Locale, message string) {
	if lm.messages[code] == nil {
		lm.messages[code] = make(map[Locale]string)
	}
	lm.messages[code][locale] = message
}

// GetMessage returns the localized message for an error code and locale.
// Missing locales fall back to Japanese, then English, then a generic default.
func (lm *LocalizedMessages) GetMessage(code ErrorCode, locale Locale) string {
	if localeMessages, exists := lm.messages[code]; exists {
		if message, exists := localeMessages[locale]; exists {
			return message
		}
		if message, exists := localeMessages[LocaleJapanese]; exists {
			return message
		}
		if message, exists := localeMessages[LocaleEnglish]; exists {
			return message
		}
	}

	return getDefaultMessage(code)
}

// getDefaultMessage returns a default English message for error codes
func getDefaultMessage(code ErrorCode) string {
	switch code {
	case ErrorCodeInvalidInput:
		return "Invalid input"
	case ErrorCodeMissingRequired:
		return "Missing required field"
	case ErrorCodeInvalidFormat:
		return "Invalid format"
	case ErrorCodeValidationFailed:
		return "Validation failed"
	case ErrorCodePayloadTooLarge:
		return "Payload too large"
	case ErrorCodeRecordNotFound:
		return "Record not found"
	case ErrorCodeServiceUnavailable:
		return "Service temporarily unavailable"
	case ErrorCodeTimeout:
		return "Request timeout"
	case ErrorCodeQuotaExceeded:
		return "Storage quota exceeded"
	case ErrorCodeStorageFailure:
		return "Storage operation failed"
	case ErrorCodeInternalError:
		return "Internal server error"
	case ErrorCodeAIRequestFailed:
		return "AI request failed"
	case ErrorCodeAIResponseInvalid:
		return "AI response invalid"
	case ErrorCodeAIConfigInvalid:
		return "AI configuration invalid"
	default:
		return "An error occurred"
	}
}

// ParseLocale parses a locale or Accept-Language value ("ja-JP", "en-US,en;q=0.9")
// and returns the primary language. Empty input yields Japanese.
func ParseLocale(localeStr string) Locale {
	first := strings.TrimSpace(strings.Split(localeStr, ",")[0])
	first = strings.Split(first, ";")[0]
	parts := strings.Split(first, "-")
	if len(parts) > 0 && parts[0] != "" {
		return Locale(strings.ToLower(parts[0]))
	}
	return LocaleJapanese
}

var globalLocalizedMessages = NewLocalizedMessages()

func init() {
	ja := map[ErrorCode]string{
		ErrorCodeInvalidInput:       "入力内容が正しくありません",
		ErrorCodeMissingRequired:    "必須項目が入力されていません",
		ErrorCodeInvalidFormat:      "形式が正しくありません",
		ErrorCodeValidationFailed:   "入力の検証に失敗しました",
		ErrorCodePayloadTooLarge:    "ファイルサイズが大きすぎます",
		ErrorCodeRecordNotFound:     "データが見つかりません",
		ErrorCodeServiceUnavailable: "サービスが一時的に利用できません",
		ErrorCodeTimeout:            "処理がタイムアウトしました",
		ErrorCodeQuotaExceeded:      "保存容量が不足しています",
		ErrorCodeStorageFailure:     "データの保存に失敗しました",
		ErrorCodeInternalError:      "サーバー内部エラーが発生しました",
		ErrorCodeAIRequestFailed:    "AIへのリクエストに失敗しました",
		ErrorCodeAIResponseInvalid:  "AIの応答を解析できませんでした",
		ErrorCodeAIConfigInvalid:    "AIの設定が正しくありません",
	}
	for code, msg := range ja {
		globalLocalizedMessages.AddMessage(code, LocaleJapanese, msg)
		globalLocalizedMessages.AddMessage(code, LocaleEnglish, getDefaultMessage(code))
	}
}

// GetLocalizedMessage returns a localized error message using the global instance
func GetLocalizedMessage(code ErrorCode, locale Locale) string {
	return globalLocalizedMessages.GetMessage(code, locale)
}

