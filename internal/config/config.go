package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Host        string
	Port        string
	GinMode     string
	CORSOrigins []string

	// Knowledge base layout
	DataDir  string
	IndexDir string

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Retrieval
	RetrievalTopK int

	// Ollama (local model server)
	OllamaURL string
	ChatModel string

	// Generation
	Temperature  float64
	MaxNewTokens int

	// Embeddings configuration
	EmbeddingsProvider    string // "ollama" (default), "google"
	OllamaEmbeddingsModel string // e.g., "all-minilm"
	GeminiAPIKey          string
	GoogleEmbeddingsModel string // e.g., "text-embedding-004"

	// TTS sidecar
	TTSEnabled    bool
	TTSServiceURL string
	TTSVoice      string
	TTSTimeout    int

	// Prompt template override; empty means the built-in Dextora policy
	SystemPromptTemplate string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Host:        getEnv("HOST", "0.0.0.0"),
		Port:        getEnv("PORT", "8000"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "*"), ","),

		DataDir:  getEnv("DATA_DIR", "./data"),
		IndexDir: getEnv("INDEX_DIR", "./index"),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 500),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 50),

		RetrievalTopK: getEnvInt("RETRIEVAL_TOP_K", 1),

		OllamaURL: getEnv("OLLAMA_URL", "http://localhost:11434"),
		ChatModel: getEnv("CHAT_MODEL", "qwen2.5:0.5b-instruct"),

		Temperature:  getEnvFloat64("TEMPERATURE", 0.7),
		MaxNewTokens: getEnvInt("MAX_NEW_TOKENS", 512),

		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "ollama"),
		OllamaEmbeddingsModel: getEnv("OLLAMA_EMBEDDINGS_MODEL", "all-minilm"),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),

		TTSEnabled:    getEnvBool("TTS_ENABLED", true),
		TTSServiceURL: getEnv("TTS_SERVICE_URL", "http://localhost:8002"),
		TTSVoice:      getEnv("TTS_VOICE", "en-GB-RyanNeural"),
		TTSTimeout:    getEnvInt("TTS_TIMEOUT", 60),

		SystemPromptTemplate: getEnv("SYSTEM_PROMPT_TEMPLATE", ""),
	}

	// Validate required fields
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	if cfg.EmbeddingsProvider == "google" && cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required when EMBEDDINGS_PROVIDER=google - set it in .env file")
	}

	if cfg.MaxNewTokens <= 0 {
		return nil, fmt.Errorf("MAX_NEW_TOKENS must be positive")
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
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
