// Package email derives display names from email addresses for accounts that
// have no profile name on record.
package email

import (
	"strings"
	"unicode"
)

// DeriveNameFromEmail splits the local part of an address on common
// separators and returns capitalized first and last name guesses.
// "amara.okafor@example.org" becomes ("Amara", "Okafor"); addresses with a
// single segment fall back to "User" for the last name.
func DeriveNameFromEmail(email string) (string, string) {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "User", "User"
	}

	first := capitalize(parts[0])
	last := "User"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}
	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
