// Package redact scrubs host details from failure text before it leaves the
// server. Failures raised inside a background context can carry worker
// executable paths, stderr output, stack traces and environment values;
// clients see the failure class and message, not the machine it ran on.
package redact

import "regexp"

// Placeholders substituted for redacted fragments
const (
	PathPlaceholder       = "[REDACTED_PATH]"
	CredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	StackPlaceholder      = "[STACK_TRACE_REDACTED]"
	HostPlaceholder       = "[REDACTED_HOST]"
)

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// rules are applied in order; stack traces go first because they contain paths.
var rules = []rule{
	{regexp.MustCompile(`goroutine \d+ \[[^\]]*\]:[\s\S]*`), StackPlaceholder},
	{regexp.MustCompile(`(?i)\b(password|passwd|secret|token|api[_-]?key)(\s*[=:]\s*)['"]?[^'"\s&]+`), "${1}${2}" + CredentialPlaceholder},
	{regexp.MustCompile(`(/[\w.+-]+){2,}`), PathPlaceholder},
	{regexp.MustCompile(`[A-Za-z]:\\[^\\\s]+(\\[^\\\s]+)+`), PathPlaceholder},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}(?::\d{1,5})?\b`), HostPlaceholder},
}

// String redacts host details from s
func String(s string) string {
	if s == "" {
		return s
	}
	for _, r := range rules {
		s = r.pattern.ReplaceAllString(s, r.placeholder)
	}
	return s
}

// Error redacts host details from an error's message
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
