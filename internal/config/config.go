package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config carries every tunable the service reads from the environment. Fields
// are validated once at startup; commands that don't need a dependency (the
// offline CLI run has no redis) check the relevant field themselves.
type Config struct {
	AppEnv   string `validate:"oneof=development staging production"`
	HTTPAddr string `validate:"required"`
	DataDir  string `validate:"required"`

	RedisAddr     string
	RedisPassword string

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	LLMProvider  string `validate:"required"`
	GeminiAPIKey string
	LLMModel     string `validate:"required"`
	LLMBaseURL   string

	// Batch pipeline knobs.
	BatchConcurrency int `validate:"min=1,max=32"`
	FetchMaxRetries  int `validate:"min=0,max=10"`
	MaxURLsPerBatch  int `validate:"min=1"`
	FetchTimeout     time.Duration
	ExtractTimeout   time.Duration
	CacheTTL         time.Duration
	ItemDelay        time.Duration
	RenderFallback   bool

	// Analysis defaults.
	BaselineProvider string

	// Optional YAML schema document; the built-in product schema is used when empty.
	SchemaFile string

	TaskMaxRetries int `validate:"min=0"`
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func Load() (Config, error) {
	cfg := Config{
		AppEnv:   getenv("APP_ENV", "development"),
		HTTPAddr: getenv("HTTP_ADDR", ":8081"),
		DataDir:  getenv("DATA_DIR", "./data"),

		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:     getenv("SUPABASE_STORAGE_BUCKET", "exports"),

		LLMProvider:  getenv("LLM_PROVIDER", "gemini"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		LLMModel:     getenv("LLM_MODEL", "gemini-1.5-flash"),
		LLMBaseURL:   os.Getenv("LLM_BASE_URL"),

		BatchConcurrency: getenvInt("BATCH_CONCURRENCY", 3),
		FetchMaxRetries:  getenvInt("FETCH_MAX_RETRIES", 2),
		MaxURLsPerBatch:  getenvInt("MAX_URLS_PER_BATCH", 50),
		FetchTimeout:     time.Duration(getenvInt("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		ExtractTimeout:   time.Duration(getenvInt("EXTRACT_TIMEOUT_SECONDS", 30)) * time.Second,
		CacheTTL:         time.Duration(getenvInt("CACHE_TTL_SECONDS", 3600)) * time.Second,
		ItemDelay:        time.Duration(getenvInt("ITEM_DELAY_SECONDS", 0)) * time.Second,
		RenderFallback:   getenvBool("RENDER_FALLBACK", false),

		BaselineProvider: getenv("BASELINE_PROVIDER", "British Gas"),
		SchemaFile:       os.Getenv("SCHEMA_FILE"),

		TaskMaxRetries: getenvInt("TASK_MAX_RETRIES", 3),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// RequireRedis guards commands that cannot run without the job store.
func (c Config) RequireRedis() error {
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	return nil
}

// RequireLLM guards commands that call the extraction model.
func (c Config) RequireLLM() error {
	if c.LLMProvider == "gemini" && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required for provider gemini")
	}
	return nil
}
