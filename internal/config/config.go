package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Browser  BrowserConfig
	Pipeline PipelineConfig
	Otel     OtelConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	WsLogFilePath      string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
	StateBackend       string // "memory" | "redis"
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	GoogleGemini string
	HuggingFace  string
}

type AIConfig struct {
	LLMProvider        string // "ollama", "huggingface", "gemini"
	LLMModel           string
	OllamaBaseURL      string
	HuggingFaceBaseURL string
	Timeout            time.Duration
}

type BrowserConfig struct {
	DebuggerURL   string
	Headless      bool
	SearchURL     string // printf template, %s receives the escaped search phrase
	ImageSelector string
	Timeout       time.Duration
}

type PipelineConfig struct {
	ResultCacheBackend    string // "memory" | "redis" | "postgres"
	ResultCacheTTL        time.Duration
	ResultCacheSize       int
	AnnotationConcurrency int
	CandidateCount        int
	RunTopic              string
}

// OtelConfig controls trace export. Tracing stays off unless Enabled.
type OtelConfig struct {
	Enabled     bool
	Endpoint    string // host:port of an OTLP/HTTP collector
	ServiceName string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			WsLogFilePath:      getEnv("WS_LOG_FILE_PATH", "logs/session_ws.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			StateBackend:       getEnv("STATE_BACKEND", "memory"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			HuggingFace:  getEnv("HUGGINGFACE_API_KEY", ""),
		},
		Ai: AIConfig{
			LLMProvider:        getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:           getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			HuggingFaceBaseURL: getEnv("HUGGINGFACE_BASE_URL", ""),
			Timeout:            getEnvAsDuration("LLM_TIMEOUT", 90*time.Second),
		},
		Browser: BrowserConfig{
			DebuggerURL:   getEnv("BROWSER_DEBUGGER_URL", ""),
			Headless:      getEnvAsBool("BROWSER_HEADLESS", true),
			SearchURL:     getEnv("IMAGE_SEARCH_URL", "https://www.bing.com/images/search?q=%s"),
			ImageSelector: getEnv("IMAGE_SEARCH_SELECTOR", "img.mimg"),
			Timeout:       getEnvAsDuration("IMAGE_SEARCH_TIMEOUT", 20*time.Second),
		},
		Pipeline: PipelineConfig{
			ResultCacheBackend:    getEnv("RESULT_CACHE_BACKEND", "memory"),
			ResultCacheTTL:        getEnvAsDuration("RESULT_CACHE_TTL", 30*24*time.Hour),
			ResultCacheSize:       getEnvAsInt("RESULT_CACHE_SIZE", 1024),
			AnnotationConcurrency: getEnvAsInt("ANNOTATION_CONCURRENCY", 3),
			CandidateCount:        getEnvAsInt("CANDIDATE_COUNT", 5),
			RunTopic:              getEnv("PIPELINE_RUN_TOPIC", "PIPELINE_RUN"),
		},
		Otel: OtelConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "art-curator-backend"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("90s", "720h").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil && value > 0 {
		return value
	}
	return fallback
}
