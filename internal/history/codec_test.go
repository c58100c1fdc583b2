package history

import (
	"encoding/base64"
	"testing"

	"learnapp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_IsBase64JSON(t *testing.T) {
	encoded, err := Encode(models.DefaultSettings())
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.JSONEq(t, `{"subject":"auto","difficulty":"standard","theme":"light","autoSave":true,"showExplanations":true}`, string(raw))
}

func TestDecode(t *testing.T) {
	t.Run("encoded", func(t *testing.T) {
		encoded, err := Encode([]int{1, 2, 3})
		require.NoError(t, err)
		var out []int
		require.True(t, Decode(encoded, &out))
		assert.Equal(t, []int{1, 2, 3}, out)
	})

	t.Run("plain object", func(t *testing.T) {
		var out models.Settings
		require.True(t, Decode(`{"theme":"dark"}`, &out))
		assert.Equal(t, "dark", out.Theme)
	})

	t.Run("plain array", func(t *testing.T) {
		var out []string
		require.True(t, Decode(` ["a"]`, &out))
		assert.Equal(t, []string{"a"}, out)
	})

	t.Run("plain scalar falls back to JSON", func(t *testing.T) {
		var out int
		require.True(t, Decode(`42`, &out))
		assert.Equal(t, 42, out)
	})

	for _, garbage := range []string{"", "   ", "%%%not-base64%%%", "{broken", base64.StdEncoding.EncodeToString([]byte("not json"))} {
		var out map[string]interface{}
		assert.False(t, Decode(garbage, &out), garbage)
	}
}
