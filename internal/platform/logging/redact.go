package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

var (
	// jwtPattern matches a compact JWS forwarded by the gateway.
	jwtPattern = regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`)

	// authHeaderPattern matches Authorization header values.
	authHeaderPattern = regexp.MustCompile(`(?i)^(bearer|basic)\s+.+$`)

	// dsnPasswordPattern matches connection URLs that carry a password,
	// such as store.postgres.dsn or a redis:// address.
	dsnPasswordPattern = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://[^:/@\s]*:[^@\s]+@`)
)

// redactedFields are attribute names whose values never reach the log.
// Applicant emails are personal data; form tokens and the token secret would
// let a reader forge submissions.
var redactedFields = []string{
	"email",
	"Email",
	"securityToken",
	"security_token",
	"SecurityToken",
	"token",
	"token_secret",
	"TokenSecret",
	"password",
	"Password",
	"dsn",
	"DSN",
	"authorization",
	"cookie",
}

// DefaultRedactOptions returns the masq options applied to every handler.
func DefaultRedactOptions() []masq.Option {
	opts := make([]masq.Option, 0, len(redactedFields)+5)

	for _, name := range redactedFields {
		opts = append(opts, masq.WithFieldName(name))
	}

	return append(opts,
		masq.WithFieldPrefix("secret"),
		masq.WithFieldPrefix("private"),
		masq.WithRegex(jwtPattern),
		masq.WithRegex(authHeaderPattern),
		masq.WithRegex(dsnPasswordPattern),
	)
}

// NewReplaceAttr returns a slog ReplaceAttr that redacts sensitive values.
// Extra options extend DefaultRedactOptions.
func NewReplaceAttr(opts ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(append(DefaultRedactOptions(), opts...)...)
}
