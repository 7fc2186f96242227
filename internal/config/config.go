package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Logging
	LogLevel      string
	LogStdout     bool
	LogFilePath   string // directory for the rotated log file; empty = stdout only
	LogFileName   string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Providers. Explanations: "gemini" or "openai". Speech: "gemini" or
	// "elevenlabs".
	ExplainProvider string
	SpeechProvider  string

	// Gemini. A missing key is NOT a startup error — the first remote
	// call surfaces it as a configuration error instead.
	GeminiKey        string
	GeminiTextModel  string
	GeminiTTSModel   string
	GeminiTTSVoice   string
	GeminiImageModel string

	// OpenAI (alternative explanation provider)
	OpenAIKey   string
	OpenAIModel string

	// ElevenLabs (alternative speech provider)
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	// SpeechSpeed slows narration for young listeners; 1.0 is the
	// provider's natural pace.
	SpeechSpeed float64

	// Optional infrastructure. Empty = in-memory defaults.
	DatabaseURL string // Postgres wallet store
	RedisURL    string // cross-instance busy guard

	// Wallet
	WalletStartingBalance int64
	ArtUnitPrice          int64

	// Sessions
	SessionTTLMinutes int

	// Generative call limits
	MaxConcurrentGenerations int
	GenerationsPerSecond     int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8080"),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogStdout:     getEnvBool("LOG_STDOUT", true),
		LogFilePath:   getEnv("LOG_FILE_PATH", ""),
		LogFileName:   getEnv("LOG_FILE_NAME", "guru.log"),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 14),

		ExplainProvider: getEnv("EXPLAIN_PROVIDER", "gemini"),
		SpeechProvider:  getEnv("SPEECH_PROVIDER", "gemini"),

		GeminiKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiTextModel:  getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		GeminiTTSModel:   getEnv("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
		GeminiTTSVoice:   getEnv("GEMINI_TTS_VOICE", "Kore"),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),

		OpenAIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIModel: getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		ElevenLabsKey:     getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID: getEnv("ELEVENLABS_VOICE_ID", ""),

		SpeechSpeed: getEnvFloat("SPEECH_SPEED", 0.9),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		WalletStartingBalance: getEnvInt64("WALLET_STARTING_BALANCE", 50),
		ArtUnitPrice:          getEnvInt64("ART_UNIT_PRICE", 10),

		SessionTTLMinutes: getEnvInt("SESSION_TTL_MINUTES", 60),

		MaxConcurrentGenerations: getEnvInt("MAX_CONCURRENT_GENERATIONS", 4),
		GenerationsPerSecond:     getEnvInt("GENERATIONS_PER_SECOND", 2),
	}

	// Validate what genuinely has to be right at startup.
	if cfg.ArtUnitPrice <= 0 {
		return nil, fmt.Errorf("ART_UNIT_PRICE must be positive, got %d", cfg.ArtUnitPrice)
	}
	if cfg.WalletStartingBalance < 0 {
		return nil, fmt.Errorf("WALLET_STARTING_BALANCE must not be negative, got %d", cfg.WalletStartingBalance)
	}
	if cfg.SessionTTLMinutes <= 0 {
		return nil, fmt.Errorf("SESSION_TTL_MINUTES must be positive, got %d", cfg.SessionTTLMinutes)
	}
	if cfg.SpeechSpeed <= 0 {
		return nil, fmt.Errorf("SPEECH_SPEED must be positive, got %g", cfg.SpeechSpeed)
	}

	switch cfg.ExplainProvider {
	case "gemini":
		// key checked at first call
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("EXPLAIN_PROVIDER=openai requires OPENAI_API_KEY")
		}
	default:
		return nil, fmt.Errorf("unknown EXPLAIN_PROVIDER %q (want gemini or openai)", cfg.ExplainProvider)
	}

	switch cfg.SpeechProvider {
	case "gemini":
	case "elevenlabs":
		if cfg.ElevenLabsKey == "" {
			return nil, fmt.Errorf("SPEECH_PROVIDER=elevenlabs requires ELEVENLABS_API_KEY")
		}
	default:
		return nil, fmt.Errorf("unknown SPEECH_PROVIDER %q (want gemini or elevenlabs)", cfg.SpeechProvider)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}
