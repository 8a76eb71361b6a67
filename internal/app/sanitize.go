package app

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// markupPattern matches HTML-like tags.
	markupPattern = regexp.MustCompile(`<[^>]*>`)

	// octetPattern matches percent-encoded octets.
	octetPattern = regexp.MustCompile(`%[a-fA-F0-9]{2}`)

	emailValidator = validator.New()
)

// SanitizeName reduces a raw name to plain single-line text.
// Invalid UTF-8, markup and percent-encoded octets are removed and runs of
// whitespace (including tabs and line breaks) collapse to a single space.
func SanitizeName(raw string) string {
	s := strings.ToValidUTF8(raw, "")
	s = markupPattern.ReplaceAllString(s, "")
	s = octetPattern.ReplaceAllString(s, "")

	return strings.Join(strings.Fields(s), " ")
}

// NormalizeEmail trims and lower-cases an email so that uniqueness
// comparisons are case-insensitive.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidEmail reports whether email is an RFC 5322 address whose domain has at
// least two labels.
func ValidEmail(email string) bool {
	if err := emailValidator.Var(email, "required,email"); err != nil {
		return false
	}

	at := strings.LastIndexByte(email, '@')
	domainPart := email[at+1:]

	return strings.Contains(domainPart, ".") &&
		!strings.HasPrefix(domainPart, ".") &&
		!strings.HasSuffix(domainPart, ".")
}
