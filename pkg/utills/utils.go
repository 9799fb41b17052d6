package utils

import (
	"net/mail"
	"strings"
	"unicode"
)

const MinPasswordLength = 8

// HasLetter returns true if s contains at least one letter
func HasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}

// HasNumber returns true if s contains at least one ASCII digit (0-9)
func HasNumber(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

// PasswordProblem describes why pw is too weak, or returns "" when it is fine.
func PasswordProblem(pw string) string {
	if len(pw) < MinPasswordLength {
		return "Password must be at least 8 characters"
	}
	if !HasLetter(pw) || !HasNumber(pw) {
		return "Password must contain at least one letter and one number"
	}
	return ""
}

// NormalizeEmail lowercases and trims addr, returning "" when it does not
// parse as a bare address.
func NormalizeEmail(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return ""
	}
	return addr
}
