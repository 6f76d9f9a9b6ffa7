package cli

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bdobrica/pantheon/common/environment"
	"github.com/bdobrica/pantheon/common/redact"
)

// setupLogging configures the global slog logger from a level and format
// string (e.g. level="info", format="json"). The completion API key never
// reaches the output.
func setupLogging(w io.Writer, level, format string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}

	secrets := secretValues()
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if len(secrets) > 0 && a.Value.Kind() == slog.KindString {
				a.Value = slog.StringValue(redact.String(a.Value.String(), secrets...))
			}
			return a
		},
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func secretValues() []string {
	var out []string
	for _, name := range []string{"PANTHEON_LLM_API_KEY", "GROQ_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envOr(name, def string) string {
	return environment.StringOr(name, def)
}
