package history

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	contextutils "learnapp/internal/utils"
)

// Encode serializes v as base64-wrapped JSON, the format every stored value uses.
func Encode(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "failed to encode value: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode reads a stored value into v. Plain JSON (starting with '{' or '[')
// is accepted as written; anything else is base64-decoded first, falling
// back to plain JSON. It reports false when the value cannot be decoded,
// which callers treat as absent.
func Decode(s string, v interface{}) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal([]byte(trimmed), v) == nil
	}
	if raw, err := base64.StdEncoding.DecodeString(trimmed); err == nil && json.Unmarshal(raw, v) == nil {
		return true
	}
	return json.Unmarshal([]byte(trimmed), v) == nil
}
