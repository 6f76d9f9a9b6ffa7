// Package environment reads pantheon configuration from environment variables.
//
// Every helper returns either the parsed value or the supplied default. None of
// them exit the process; cmd/pantheon decides what a missing value means.
package environment

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// StringOr returns the value of name, or defaultValue if it is unset or empty.
func StringOr(name, defaultValue string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return defaultValue
}

// FirstOf returns the first non-empty value among the named variables, or
// defaultValue when all of them are unset. Used for settings that accept a
// legacy alias (PANTHEON_LLM_API_KEY, then GROQ_API_KEY).
func FirstOf(defaultValue string, names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return defaultValue
}

// BoolOr parses name with strconv.ParseBool. Unset or unparsable values yield
// defaultValue.
func BoolOr(name string, defaultValue bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

// IntOr parses name as a decimal integer.
func IntOr(name string, defaultValue int) int {
	v := os.Getenv(name)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return defaultValue
	}
	return n
}

// Float64Or parses name as a float, e.g. a sampling temperature of "0.8".
func Float64Or(name string, defaultValue float64) float64 {
	v := os.Getenv(name)
	if v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// DurationOr parses name as a time.Duration ("15s", "30m").
func DurationOr(name string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return defaultValue
	}
	return d
}

// StringSliceOr splits name on commas and trims each element. Empty elements
// are dropped; if nothing is left, defaultValue is returned.
func StringSliceOr(name string, defaultValue []string) []string {
	v := os.Getenv(name)
	if v == "" {
		return defaultValue
	}
	var result []string
	for _, p := range strings.Split(v, ",") {
		if t := strings.TrimSpace(p); t != "" {
			result = append(result, t)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
