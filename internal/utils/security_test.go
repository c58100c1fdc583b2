package contextutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "[EMPTY]", MaskAPIKey(""))
	assert.Equal(t, "******", MaskAPIKey("abcdef"))
	assert.Equal(t, "AIza****wxyz", MaskAPIKey("AIza1234wxyz"))
	assert.NotContains(t, MaskAPIKey("AIzaSySECRETSECRETabcd"), "SECRET")
}
