package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the date format accepted on the command line and in mail searches.
const DateLayout = "2006-01-02"

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	controlRegex = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	unsafeRegex  = regexp.MustCompile(`[/\\:*?"<>|]`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// ValidateDateRange checks that start is not after end.
func ValidateDateRange(start, end time.Time) error {
	if start.After(end) {
		return fmt.Errorf("start date %s is after end date %s",
			start.Format(DateLayout), end.Format(DateLayout))
	}
	return nil
}

// SanitizeFilename makes s safe as a single path component: control
// characters and path separators are removed and spaces become underscores.
func SanitizeFilename(s string) string {
	s = controlRegex.ReplaceAllString(s, "")
	s = unsafeRegex.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), "_")
	return strings.Trim(s, ".")
}
