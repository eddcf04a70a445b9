package models

import "strings"

// User is the identity carried in AppState.
type User struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	AvatarURL    string       `json:"avatarUrl,omitempty"`
	AuthProvider AuthProvider `json:"authProvider"`
	RememberMe   bool         `json:"rememberMe,omitempty"`
}

// Account is a registry entry: a user plus credentials.
type Account struct {
	User
	// Password is only read from registries written before hashing was introduced.
	Password        string `json:"password,omitempty"`
	PasswordHash    string `json:"passwordHash,omitempty"`
	ResetCode       string `json:"resetCode,omitempty"`
	ResetCodeExpiry int64  `json:"resetCodeExpiry,omitempty"` // unix milliseconds
}

// Profile returns the account's user without credentials.
func (a Account) Profile() User {
	return a.User
}

// HasResetCode reports whether a password reset is in progress.
func (a Account) HasResetCode() bool {
	return a.ResetCode != ""
}

// NormalizeEmail returns the registry key form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SameEmail reports whether two addresses identify the same account.
func SameEmail(a, b string) bool {
	return NormalizeEmail(a) == NormalizeEmail(b)
}
