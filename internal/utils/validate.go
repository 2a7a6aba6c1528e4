package utils

import (
	"regexp"
	"strings"
)

// Bookings and accounts are keyed by email, so every email is normalized
// before it touches the database: lowercased and trimmed. Phone numbers
// are stored in a sanitized digits-only form (optional leading +).

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail lowercases and trims an email address. Two spellings of
// the same address must collide on the unique index, not coexist.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether the address has the basic user@host.tld
// shape. Deliverability is not checked.
func ValidEmail(email string) bool {
	return emailRe.MatchString(NormalizeEmail(email))
}

// SanitizePhone strips spaces, dashes, dots and parentheses from a phone
// number, keeping digits and a single leading "+". Returns the sanitized
// number and whether it is acceptable (7 to 15 digits).
func SanitizePhone(phone string) (string, bool) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
			// separator, drop it
		default:
			return "", false
		}
	}
	s := b.String()
	digits := strings.TrimPrefix(s, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return "", false
	}
	return s, true
}

// ValidName reports whether a display name is usable: non-blank after
// trimming and at most 100 characters.
func ValidName(name string) bool {
	n := strings.TrimSpace(name)
	return n != "" && len(n) <= 100
}
