// Package redact keeps credentials out of log lines and HTTP error bodies.
//
// The LLM client builds errors that may echo request headers or URLs back;
// those errors pass through Error before they are logged.
package redact

import "strings"

const placeholder = "[REDACTED]"

// String replaces every occurrence of each sensitive value in s. Values
// shorter than 4 characters are ignored so that short common substrings are
// not blanked out.
func String(s string, sensitiveValues ...string) string {
	for _, v := range sensitiveValues {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Error wraps err so that its message has the sensitive values removed.
// errors.Is and errors.As still see the original chain.
func Error(err error, sensitiveValues ...string) error {
	if err == nil {
		return nil
	}
	return &redactedError{err: err, msg: String(err.Error(), sensitiveValues...)}
}

type redactedError struct {
	err error
	msg string
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }
