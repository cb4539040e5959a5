// ABOUTME: Credential masking for connection strings written to logs
// ABOUTME: Used when the daemon logs its effective NATS, Redis, and GCS settings

package observability

import (
	"net/url"
	"regexp"
	"strings"
)

// RedactionPlaceholder replaces masked values.
const RedactionPlaceholder = "[REDACTED]"

var secretParam = regexp.MustCompile(`(?i)(password|passwd|token|secret|api[_-]?key)=[^\s&]+`)

var sensitiveKeys = []string{"password", "passwd", "token", "secret", "apikey", "api_key", "credential", "private_key"}

// RedactURL masks the password of a URL's userinfo and secret-looking query
// parameters. Values that do not parse as URLs are scrubbed as plain text.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return RedactSensitive(raw)
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}
	out := strings.Replace(u.String(), ":xxxxx@", ":"+RedactionPlaceholder+"@", 1)
	return RedactSensitive(out)
}

// RedactSensitive masks key=value secrets inside free text.
func RedactSensitive(value string) string {
	return secretParam.ReplaceAllString(value, "${1}="+RedactionPlaceholder)
}

// IsSensitiveKey reports whether a config or map key names a secret.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range sensitiveKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
