package http

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Input validation constants
const (
	MaxPageIDLength   = 64
	MaxGuestIDLength  = 64
	MaxMessageLength  = 4000
	MaxNameLength     = 128
	MaxPhoneLength    = 32
	MaxEmailLength    = 256
	MaxCompanyLength  = 128
	MaxUsernameLength = 64
)

var (
	pageIDPattern  = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	guestIDPattern = regexp.MustCompile(`^guest_[a-f0-9]+$`)
)

// ValidPageID checks if a page id is safe (alphanumeric + underscore + hyphen)
func ValidPageID(s string) bool {
	if s == "" || len(s) > MaxPageIDLength {
		return false
	}
	return pageIDPattern.MatchString(s)
}

// ValidGuestID checks the "guest_<hex>" shape the widget generates.
func ValidGuestID(s string) bool {
	if s == "" || len(s) > MaxGuestIDLength {
		return false
	}
	return guestIDPattern.MatchString(s)
}

// SanitizeString removes null bytes and control characters
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")

	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	return s
}

// TruncateString safely truncates a string to max length
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// ValidateLength checks if string is within bounds
func ValidateLength(s string, min, max int) bool {
	l := len(s)
	return l >= min && l <= max
}
