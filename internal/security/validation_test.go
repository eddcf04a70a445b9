package security

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	jerrors "tradejournal/internal/errors"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("a@b.co"))

	err := ValidateEmail("nobody.example.com")
	assert.True(t, jerrors.Is(err, jerrors.ErrInputValidation))
	assert.Error(t, ValidateEmail("   "))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("123456"))
	assert.Error(t, ValidatePassword("12345"))
	assert.Error(t, ValidatePassword(""))
}

func TestValidatePair(t *testing.T) {
	for _, p := range []string{"EURUSD", "XAU/USD", "US30.cash"} {
		assert.NoError(t, ValidatePair(p), p)
	}
	assert.Error(t, ValidatePair(""))
	assert.Error(t, ValidatePair("EUR USD"))
}

func TestValidateFinite(t *testing.T) {
	assert.NoError(t, ValidateFinite("pips", -12.5))
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.ErrorIs(t, ValidateFinite("pips", v), jerrors.ErrInputValidation)
	}
}

func TestValidateDay(t *testing.T) {
	for _, d := range []string{"1", "15", " 31 ", "04"} {
		assert.NoError(t, ValidateDay(d), d)
	}
	for _, d := range []string{"", "0", "32", "-3", "4th", "2024-03-04"} {
		assert.ErrorIs(t, ValidateDay(d), jerrors.ErrInputValidation, d)
	}
}

func TestValidateText(t *testing.T) {
	assert.NoError(t, ValidateText("notes", "fine", 10))

	err := ValidateText("notes", strings.Repeat("x", 80), 10)
	var ve *jerrors.ValidationError
	assert.True(t, jerrors.As(err, &ve))
	assert.Equal(t, "notes", ve.Field)
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "line1\nline2\tx", SanitizeText("line1\nline2\tx\x00\x07"))
}

func TestMaskCredential(t *testing.T) {
	assert.Equal(t, "", MaskCredential(""))
	assert.Equal(t, "****", MaskCredential("abcd"))
	assert.Equal(t, "ab****", MaskCredential("abcdef"))
	assert.Equal(t, "sk-a***wxyz", MaskCredential("sk-abcdwxyz"))
}

func TestMaskSensitive(t *testing.T) {
	key := "sk-" + strings.Repeat("a", 30)
	masked := MaskSensitive("request failed for key " + key)
	assert.NotContains(t, masked, key)
	assert.True(t, ContainsSensitiveData(key))
	assert.False(t, ContainsSensitiveData("plain words"))
}
