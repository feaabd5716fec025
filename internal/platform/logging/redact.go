package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

// secretValue matches credential-shaped strings: JWTs and Authorization
// header values.
var secretValue = regexp.MustCompile(
	`^(eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*|(?i:bearer|basic)\s+.+)$`,
)

// secretFields are attribute and struct field names whose values are masked.
// The remote client's auth hook and the auth headers are the main sources.
var secretFields = []string{
	"password",
	"token",
	"apiKey", "api_key",
	"accessToken", "access_token",
	"refreshToken", "refresh_token",
	"authorization", "Authorization",
	"credential", "credentials",
	"cookie",
}

// redactOptions lists the masq rules applied by every handler New builds.
func redactOptions() []masq.Option {
	opts := make([]masq.Option, 0, len(secretFields)+3)

	for _, name := range secretFields {
		opts = append(opts, masq.WithFieldName(name))
	}

	return append(opts,
		masq.WithFieldPrefix("secret"),
		masq.WithFieldPrefix("private"),
		masq.WithRegex(secretValue),
	)
}

// NewReplaceAttr returns a slog ReplaceAttr that masks secrets, extended by
// any extra masq rules.
func NewReplaceAttr(extra ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(append(redactOptions(), extra...)...)
}
