package app

import (
	"time"

	"github.com/bdobrica/pantheon/common/environment"
	"github.com/bdobrica/pantheon/internal/pantheon/chat"
	"github.com/bdobrica/pantheon/internal/pantheon/council"
	"github.com/bdobrica/pantheon/internal/pantheon/llm"
	"github.com/bdobrica/pantheon/internal/pantheon/memory"
	"github.com/bdobrica/pantheon/internal/pantheon/voice"
)

// DefaultMaxImportBytes bounds POST /chat/import bodies unless configured.
const DefaultMaxImportBytes = 64 << 20

// Config holds application configuration.
type Config struct {
	DatabasePath string
	// HTTPAddr is the listen address of the API server. When empty the
	// server is disabled and Run only performs startup work.
	HTTPAddr string
	// CatalogPath and RitualCatalogPath replace the embedded catalogs.
	CatalogPath       string
	RitualCatalogPath string

	LLM llm.Config

	MaxSessionsPerPersona int
	MaxMemoryEntries      int
	HistoryLimit          int
	// MaxImportBytes bounds chat import bodies. Zero means
	// DefaultMaxImportBytes.
	MaxImportBytes int64

	Council council.Settings

	// VoiceMinConfidence is the recognizer confidence floor for voice
	// commands.
	VoiceMinConfidence float64
	// Speak logs every delivered line through the log speaker.
	Speak bool
}

// LoadConfig reads the configuration from PANTHEON_* environment variables.
func LoadConfig() Config {
	return Config{
		DatabasePath:      environment.StringOr("PANTHEON_DB", "./pantheon.db"),
		HTTPAddr:          environment.StringOr("PANTHEON_HTTP_ADDR", ":8080"),
		CatalogPath:       environment.StringOr("PANTHEON_CATALOG", ""),
		RitualCatalogPath: environment.StringOr("PANTHEON_RITUALS", ""),
		LLM: llm.Config{
			APIKey:        environment.FirstOf("", "PANTHEON_LLM_API_KEY", "GROQ_API_KEY"),
			BaseURL:       environment.StringOr("PANTHEON_LLM_BASE_URL", llm.DefaultBaseURL),
			Model:         environment.StringOr("PANTHEON_LLM_MODEL", llm.DefaultModel),
			MaxTokens:     environment.IntOr("PANTHEON_LLM_MAX_TOKENS", llm.DefaultMaxTokens),
			Temperature:   float32(environment.Float64Or("PANTHEON_LLM_TEMPERATURE", llm.DefaultTemperature)),
			Timeout:       environment.DurationOr("PANTHEON_LLM_TIMEOUT", 30*time.Second),
			RatePerMinute: environment.IntOr("PANTHEON_LLM_RATE_PER_MIN", 30),
			DailyTokens:   environment.IntOr("PANTHEON_LLM_DAILY_TOKENS", 0),
		},
		MaxSessionsPerPersona: environment.IntOr("PANTHEON_MAX_SESSIONS", chat.DefaultMaxSessionsPerPersona),
		MaxMemoryEntries:      environment.IntOr("PANTHEON_MAX_MEMORIES", memory.DefaultMaxEntries),
		HistoryLimit:          environment.IntOr("PANTHEON_HISTORY_LIMIT", 0),
		MaxImportBytes:        int64(environment.IntOr("PANTHEON_MAX_IMPORT_BYTES", DefaultMaxImportBytes)),
		Council: council.Settings{
			MaxParticipants: environment.IntOr("PANTHEON_COUNCIL_SEATS", council.MaxParticipants),
			SessionDuration: environment.DurationOr("PANTHEON_COUNCIL_DURATION", council.DefaultSessionDuration),
			TurnLength:      environment.DurationOr("PANTHEON_COUNCIL_TURN", council.DefaultTurnLength),
		},
		VoiceMinConfidence: environment.Float64Or("PANTHEON_VOICE_MIN_CONFIDENCE", voice.DefaultMinConfidence),
		Speak:              environment.BoolOr("PANTHEON_SPEAK", false),
	}
}
