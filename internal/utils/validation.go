package contextutils

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validator returns the shared validator instance so callers can register
// custom rules once at startup.
func Validator() *validator.Validate {
	return validate
}

// ValidateStruct runs struct tag validation and converts failures into an
// ErrValidationFailed AppError naming every offending field.
func ValidateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return WrapError(ErrValidationFailed, err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return NewAppErrorWithCause(ErrorCodeValidationFailed, SeverityWarn,
		"Validation failed", strings.Join(msgs, "; "), err)
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// TextLength returns the length of s in characters, not bytes.
func TextLength(s string) int {
	return utf8.RuneCountInString(s)
}

// ValidateTextLength checks that s holds between minLen and maxLen characters.
func ValidateTextLength(s string, minLen, maxLen int) error {
	n := TextLength(s)
	if n < minLen {
		return NewAppError(ErrorCodeInvalidInput, SeverityWarn,
			"テキストが短すぎます", fmt.Sprintf("text must be at least %d characters, got %d", minLen, n))
	}
	if n > maxLen {
		return NewAppError(ErrorCodeInvalidInput, SeverityWarn,
			"テキストが長すぎます", fmt.Sprintf("text must be at most %d characters, got %d", maxLen, n))
	}
	return nil
}
