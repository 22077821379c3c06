// Package config loads environment-based configuration for podbase.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Provider names accepted for embeddings and generation.
const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	DBURL       string
	DBNamespace string
	DBDatabase  string
	DBUser      string
	DBPass      string
	DBAuthLevel string

	// Embedding provider
	EmbedProvider string
	EmbedModel    string

	// Generation provider
	LLMProvider string
	LLMModel    string

	// Provider credentials
	OpenAIAPIKey    string
	AnthropicAPIKey string
	OllamaHost      string

	// Transcription
	DeepgramAPIKey string
	DeepgramURL    string

	// Podcast metadata and pipeline layout
	PodcastTitle string
	DataDir      string
	CatalogPath  string
	MaxWorkers   int

	// Retrieval
	TopK            int
	MinSimilarity   float64
	MaxContextChars int

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		// SurrealDB
		DBURL:       getEnv("PODBASE_DB_URL", "ws://localhost:8000/rpc"),
		DBNamespace: getEnv("PODBASE_DB_NAMESPACE", "podbase"),
		DBDatabase:  getEnv("PODBASE_DB_DATABASE", "knowledge"),
		DBUser:      getEnv("PODBASE_DB_USER", "root"),
		DBPass:      getEnv("PODBASE_DB_PASS", "root"),
		DBAuthLevel: getEnv("PODBASE_DB_AUTH_LEVEL", "root"),

		// Providers
		EmbedProvider: getEnv("PODBASE_EMBED_PROVIDER", ProviderOpenAI),
		EmbedModel:    getEnv("PODBASE_EMBED_MODEL", "text-embedding-3-small"),
		LLMProvider:   getEnv("PODBASE_LLM_PROVIDER", ProviderOpenAI),
		LLMModel:      getEnv("PODBASE_LLM_MODEL", "gpt-4o-mini"),

		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),

		// Transcription
		DeepgramAPIKey: os.Getenv("DEEPGRAM_API_KEY"),
		DeepgramURL:    getEnv("DEEPGRAM_URL", "https://api.deepgram.com/v1/listen"),

		// Pipeline
		PodcastTitle: getEnv("PODBASE_PODCAST_TITLE", "A Gentleman's Disagreement"),
		DataDir:      getEnv("PODBASE_DATA_DIR", "data"),
		CatalogPath:  getEnv("PODBASE_CATALOG", "episodes.yaml"),
		MaxWorkers:   getEnvInt("PODBASE_MAX_WORKERS", 4),

		// Retrieval
		TopK:            getEnvInt("PODBASE_TOP_K", 5),
		MinSimilarity:   getEnvFloat("PODBASE_MIN_SIMILARITY", 0.4),
		MaxContextChars: getEnvInt("PODBASE_MAX_CONTEXT_CHARS", 6000),

		// Logging
		LogFile:  os.Getenv("PODBASE_LOG_FILE"),
		LogLevel: ParseLevel(getEnv("PODBASE_LOG_LEVEL", "INFO")),
	}
}

// Validate checks provider selections and sizing. Credential presence is
// checked where each provider client is constructed, so commands that never
// touch a provider still run.
func (c Config) Validate() error {
	switch c.EmbedProvider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown embed provider %q (want %s or %s)",
			c.EmbedProvider, ProviderOpenAI, ProviderOllama)
	}

	switch c.LLMProvider {
	case ProviderOpenAI, ProviderOllama, ProviderAnthropic, ProviderBedrock:
	default:
		return fmt.Errorf("unknown llm provider %q (want %s, %s, %s or %s)",
			c.LLMProvider, ProviderOpenAI, ProviderOllama, ProviderAnthropic, ProviderBedrock)
	}

	if c.MaxWorkers < 1 {
		return fmt.Errorf("max workers must be at least 1, got %d", c.MaxWorkers)
	}
	if c.TopK < 1 {
		return fmt.Errorf("top k must be at least 1, got %d", c.TopK)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("min similarity must be in [0, 1], got %g", c.MinSimilarity)
	}
	return nil
}

// AudioDir is where episode audio files live.
func (c Config) AudioDir() string { return filepath.Join(c.DataDir, "audio") }

// RawDir is where raw transcription responses are written.
func (c Config) RawDir() string { return filepath.Join(c.DataDir, "raw") }

// ProcessedDir is where formatted segment snapshots are written.
func (c Config) ProcessedDir() string { return filepath.Join(c.DataDir, "processed") }

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

// ParseLevel maps a level name (debug, info, warn, error, any case) to
// its slog level. Unknown names fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
