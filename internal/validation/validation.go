package validation

import (
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrUsernameEmpty is returned when the username is empty or whitespace-only after trim.
	ErrUsernameEmpty = errors.New("username is required")
	// ErrUsernameLength is returned when the username is outside MinUsernameLen..MaxUsernameLen runes.
	ErrUsernameLength = errors.New("username must be between 3 and 32 characters")
	// ErrUsernameInvalidChars is returned when the username contains disallowed characters.
	ErrUsernameInvalidChars = errors.New("username may only contain letters, digits, dot, underscore and hyphen")
	// ErrEmailInvalid is returned for addresses without a local part and a dotted domain.
	ErrEmailInvalid = errors.New("email address is invalid")
	// ErrPasswordTooShort is returned when the password is shorter than MinPasswordLen.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrIDInvalid is returned for identifiers that are empty, too long, or contain characters outside [A-Za-z0-9_-].
	ErrIDInvalid = errors.New("identifier is invalid")
)

const (
	MinUsernameLen = 3
	MaxUsernameLen = 32
	MinPasswordLen = 4
	MaxIDLen       = 128
)

// ValidateUsername trims the input and enforces length and character rules.
// Returns the trimmed username.
func ValidateUsername(input string) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrUsernameEmpty
	}
	if len(r) < MinUsernameLen || len(r) > MaxUsernameLen {
		return "", ErrUsernameLength
	}
	for _, c := range r {
		if !isAllowedUsernameRune(c) {
			return "", ErrUsernameInvalidChars
		}
	}
	return s, nil
}

func isAllowedUsernameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.', '_', '-':
		return true
	}
	return false
}

// ValidateEmail performs a shallow syntax check: one '@', non-empty local part,
// a domain containing a dot, and no whitespace. Returns the trimmed address.
func ValidateEmail(input string) (string, error) {
	s := strings.TrimSpace(input)
	at := strings.Index(s, "@")
	if at <= 0 || at != strings.LastIndex(s, "@") {
		return "", ErrEmailInvalid
	}
	domain := s[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", ErrEmailInvalid
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return "", ErrEmailInvalid
	}
	return s, nil
}

// ValidatePassword enforces the minimum length. Passwords are not trimmed.
func ValidatePassword(input string) error {
	if len([]rune(input)) < MinPasswordLen {
		return ErrPasswordTooShort
	}
	return nil
}

// ValidateID checks identifiers that end up in file names or JSON keys
// (project IDs, template IDs). Only ASCII letters, digits, underscore and hyphen are allowed.
func ValidateID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" || len(s) > MaxIDLen {
		return "", ErrIDInvalid
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return "", ErrIDInvalid
		}
	}
	return s, nil
}
