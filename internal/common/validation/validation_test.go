package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAccountID(t *testing.T) {
	assert.NoError(t, ValidateAccountID("12345"))
	assert.NoError(t, ValidateAccountID("123456789012"))
	assert.NoError(t, ValidateAccountID("  123456  "))

	assert.Error(t, ValidateAccountID(""))
	assert.Error(t, ValidateAccountID("1234"))
	assert.Error(t, ValidateAccountID("1234567890123"))
	assert.Error(t, ValidateAccountID("12a45"))
	assert.Error(t, ValidateAccountID("-12345"))
}

func TestNormalizeAccountID(t *testing.T) {
	assert.Equal(t, "123456", NormalizeAccountID(" 123456 "))
	assert.Equal(t, "123456", NormalizeAccountID("123456"))
}

func TestValidateDisplayName(t *testing.T) {
	assert.NoError(t, ValidateDisplayName("Trader Joe"))
	assert.Error(t, ValidateDisplayName(""))
	assert.Error(t, ValidateDisplayName("   "))
	assert.Error(t, ValidateDisplayName(strings.Repeat("x", MaxDisplayNameLength+1)))
}
