package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultSecretKey   = "change-me"
	defaultCORSOrigins = "http://127.0.0.1:3000,http://localhost:5173"
)

// Config holds application configuration.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	CORSAllowOrigin      []string
	CORSAllowCredentials bool

	DatabaseURL string
	RedisURL    string

	SecretKey        string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	RecoveryTokenTTL time.Duration
	FrontURL         string

	LLMProvider    string
	LLMModel       string
	LLMAPIKey      string
	EvaluationURL  string
	EvaluationMode string

	EvaluationTimeout time.Duration
	EvaluationWorkers int

	QueueBackend     string
	QueueName        string
	SQSQueueURL      string
	QueueMaxAttempts int

	WorkerConcurrency int
	ShutdownTimeout   time.Duration

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")
	secret := getEnv("SECRET_KEY", defaultSecretKey)

	if env == "production" {
		if dbURL == "" {
			log.Printf("DATABASE_URL is required in production")
		}
		if secret == defaultSecretKey {
			log.Printf("SECRET_KEY must be set in production")
		}
	}

	return Config{
		Port:     getEnv("PORT", "8080"),
		Env:      env,
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CORSAllowOrigin:      splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", defaultCORSOrigins)),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", true),

		DatabaseURL: dbURL,
		RedisURL:    getEnv("REDIS_URL", ""),

		SecretKey:        secret,
		AccessTokenTTL:   getSeconds("ACCESS_TOKEN_EXPIRE", 180),
		RefreshTokenTTL:  getSeconds("REFRESH_TOKEN_EXPIRE", 604800),
		RecoveryTokenTTL: getSeconds("RECOVERY_TOKEN_EXPIRE", 86400),
		FrontURL:         getEnv("FRONT_URL", "http://localhost:5173"),

		LLMProvider:    normalizeProvider(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:       getEnv("LLM_MODEL", ""),
		LLMAPIKey:      getEnv("LLM_API_KEY", os.Getenv("OPENAI_API_KEY")),
		EvaluationURL:  getEnv("EVALUATION_URL", ""),
		EvaluationMode: normalizeEvaluationMode(getEnv("EVALUATION_MODE", "inline")),

		EvaluationTimeout: getSeconds("EVALUATION_TIMEOUT", 90),
		EvaluationWorkers: getInt("EVALUATION_WORKERS", 4),

		QueueBackend:     normalizeQueueBackend(getEnv("QUEUE_BACKEND", "redis")),
		QueueName:        getEnv("QUEUE_NAME", "interview:evaluations"),
		SQSQueueURL:      getEnv("SQS_QUEUE_URL", ""),
		QueueMaxAttempts: getInt("QUEUE_MAX_ATTEMPTS", 3),

		WorkerConcurrency: getInt("WORKER_CONCURRENCY", 4),
		ShutdownTimeout:   getSeconds("SHUTDOWN_TIMEOUT", 30),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		UIRedirectURL:      getEnv("UI_REDIRECT_URL", ""),
	}
}

// IsDevLike reports whether env allows in-memory fallbacks.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getSeconds(key string, def int) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return time.Duration(def) * time.Second
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid seconds %q, using %d", key, raw, def)
		return time.Duration(def) * time.Second
	}
	return time.Duration(val) * time.Second
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid integer %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config %s invalid bool %q, using %t", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	case "gemini", "google":
		return "gemini"
	default:
		return "none"
	}
}

func normalizeEvaluationMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "async":
		return "async"
	case "queue":
		return "queue"
	default:
		return "inline"
	}
}

func normalizeQueueBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqs":
		return "sqs"
	default:
		return "redis"
	}
}
