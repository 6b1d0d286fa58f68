package flows

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether email has the local@domain.tld shape accepted
// at signup and login.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Present reports whether every value is non-blank.
func Present(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}
