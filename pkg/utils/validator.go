package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	identifierRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:@\-]{0,127}$`)
	controlRegex    = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// MaxCommentLength bounds approver comments
const MaxCommentLength = 4000

// ValidateIdentifier checks user, role and entity identifiers supplied by callers
func ValidateIdentifier(field, value string) error {
	if !identifierRegex.MatchString(value) {
		return fmt.Errorf("%s has an invalid format: %q", field, value)
	}
	return nil
}

// SanitizeString removes control characters, keeping tabs and newlines, and trims surrounding space
func SanitizeString(s string) string {
	return strings.TrimSpace(controlRegex.ReplaceAllString(s, ""))
}

// SanitizeComment sanitizes s and truncates it to MaxCommentLength runes
func SanitizeComment(s string) string {
	s = SanitizeString(s)
	if r := []rune(s); len(r) > MaxCommentLength {
		s = string(r[:MaxCommentLength])
	}
	return s
}
