package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"propel-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL"`

	// Build scheduling
	RebuildDebounce   time.Duration `envconfig:"REBUILD_DEBOUNCE" default:"2s"`
	BuildTimeout      time.Duration `envconfig:"BUILD_TIMEOUT" default:"5m"`
	JobPollInterval   time.Duration `envconfig:"JOB_POLL_INTERVAL" default:"10s"`
	DefaultModelClass string        `envconfig:"DEFAULT_MODEL_CLASS" default:"medium"`

	SentryDSN         string  `envconfig:"SENTRY_DSN"`
	SentryEnvironment string  `envconfig:"SENTRY_ENVIRONMENT"`
	SentrySampleRate  float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE" default:"1.0"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("PROPEL", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != "" || c.OpenAIBaseURL != ""
}
