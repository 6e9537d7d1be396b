package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// EmailRegex validates email format
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// IdentityRegex validates the user ids carried in signaling frames and URLs
	IdentityRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:@-]+$`)

	dataURLRegex = regexp.MustCompile(`^data:[a-zA-Z0-9.+\-]+/[a-zA-Z0-9.+\-]+;base64,`)
)

const (
	MaxIdentityLength    = 128
	MaxMessageTextLength = 4000
)

// ValidateEmail validates email address
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > 254 {
		return fmt.Errorf("email is too long (max 254 characters)")
	}
	if !EmailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidatePassword validates password
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	// bcrypt ignores everything past 72 bytes
	if len(password) > 72 {
		return fmt.Errorf("password is too long (max 72 bytes)")
	}
	return nil
}

// ValidateFullName validates the display name chosen at signup
func ValidateFullName(name string) error {
	if err := ValidateNonEmptyString(name, "full name"); err != nil {
		return err
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("full name contains invalid characters")
	}
	return ValidateStringLength(strings.TrimSpace(name), 1, 100, "full name")
}

// ValidateIdentity validates a user id
func ValidateIdentity(id string) error {
	if id == "" {
		return fmt.Errorf("identity is required")
	}
	if len(id) > MaxIdentityLength {
		return fmt.Errorf("identity is too long (max %d characters)", MaxIdentityLength)
	}
	if !IdentityRegex.MatchString(id) {
		return fmt.Errorf("invalid identity format")
	}
	return nil
}

// ValidateMessageText validates chat message text. Empty text is allowed,
// the caller decides whether an image makes up for it.
func ValidateMessageText(text string) error {
	if utf8.RuneCountInString(text) > MaxMessageTextLength {
		return fmt.Errorf("message is too long (max %d characters)", MaxMessageTextLength)
	}
	return nil
}

// ValidateDataURL checks the data:<mime>;base64, prefix of an upload
func ValidateDataURL(s string) error {
	if s == "" {
		return fmt.Errorf("data URL is required")
	}
	if !dataURLRegex.MatchString(s) {
		return fmt.Errorf("invalid data URL (expected data:<mime>;base64,...)")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
