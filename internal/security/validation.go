package security

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	jerrors "tradejournal/internal/errors"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var (
	// API key patterns for detection (not validation)
	apiKeyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret[_-]?key|access[_-]?token|bearer)[=:\s]+["']?([A-Za-z0-9_\-\.]{20,})["']?`),
		regexp.MustCompile(`(?i)(sk-[A-Za-z0-9_\-]{20,})`),   // OpenAI keys
		regexp.MustCompile(`(?i)(AIza[A-Za-z0-9_\-]{20,})`), // Google keys
	}

	resetCodePattern = regexp.MustCompile(`^[0-9]{6}$`)
	pairPattern      = regexp.MustCompile(`^[A-Za-z0-9/._-]{1,20}$`)
)

// ValidateEmail checks that email is non-empty and contains an @.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return jerrors.NewValidationError("email", email, "email cannot be empty")
	}
	if !strings.Contains(email, "@") {
		return jerrors.NewValidationError("email", email, "email must contain @")
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return jerrors.NewValidationError("password", "***", "password must be at least 6 characters")
	}
	return nil
}

// ValidateName rejects blank display names.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return jerrors.NewValidationError("name", name, "name cannot be empty")
	}
	return nil
}

// ValidateResetCode checks the shape of a reset code before it is compared.
func ValidateResetCode(code string) error {
	if !resetCodePattern.MatchString(strings.TrimSpace(code)) {
		return jerrors.NewValidationError("code", code, "reset code must be 6 digits")
	}
	return nil
}

// ValidatePair validates an instrument symbol such as EURUSD or XAU/USD.
func ValidatePair(pair string) error {
	if !pairPattern.MatchString(strings.TrimSpace(pair)) {
		return jerrors.NewValidationError("pair", pair, "invalid instrument symbol")
	}
	return nil
}

// ValidateFinite rejects NaN and infinite numbers, which cannot be stored.
func ValidateFinite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return jerrors.NewValidationError(field, v, "must be a finite number")
	}
	return nil
}

// ValidateDay checks that day is a day of the month, 1 to 31.
func ValidateDay(day string) error {
	n, err := strconv.Atoi(strings.TrimSpace(day))
	if err != nil || n < 1 || n > 31 {
		return jerrors.NewValidationError("date", day, "must be a day of the month (1-31)")
	}
	return nil
}

// ValidateText validates free-form text input.
func ValidateText(field, text string, maxLen int) error {
	if len(text) > maxLen {
		preview := text
		if len(preview) > 50 {
			preview = preview[:50] + "..."
		}
		return jerrors.NewValidationError(field, preview, "text too long")
	}
	return nil
}

// SanitizeText removes control characters other than newlines and tabs.
func SanitizeText(text string) string {
	var result strings.Builder
	for _, r := range text {
		if r == '\n' || r == '\t' || (r >= 32 && r != 127) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// MaskSensitive masks API keys and tokens embedded in a string.
func MaskSensitive(input string) string {
	result := input
	for _, pattern := range apiKeyPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if len(match) > 8 {
				return match[:4] + strings.Repeat("*", len(match)-8) + match[len(match)-4:]
			}
			return strings.Repeat("*", len(match))
		})
	}
	return result
}

// MaskCredential masks a credential value for display.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// ContainsSensitiveData checks if a string contains sensitive data patterns.
func ContainsSensitiveData(input string) bool {
	for _, pattern := range apiKeyPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}
