package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	WhisperModel string `env:"WHISPER_MODEL" envDefault:"base.en" validate:"required"`
	ModelsDir    string `env:"WHISPER_MODELS_DIR" envDefault:"/app/models" validate:"required"`
	Engine       string `env:"WHISPER_ENGINE" envDefault:"whispercpp" validate:"oneof=whispercpp remote openai"`

	// whisper.cpp engine
	WhisperCPPBin string `env:"WHISPER_CPP_BIN" envDefault:"whisper-cli"`
	Threads       int    `env:"WHISPER_THREADS" envDefault:"0" validate:"gte=0"`
	FFmpegPath    string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFprobePath   string `env:"FFPROBE_PATH" envDefault:"ffprobe"`

	// remote engine
	RemoteURL       string `env:"WHISPER_REMOTE_URL" validate:"required_if=Engine remote,omitempty,url"`
	RemoteHealthURL string `env:"WHISPER_REMOTE_HEALTH_URL" validate:"omitempty,url"`
	RemoteToken     string `env:"WHISPER_REMOTE_TOKEN"`

	// openai engine
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" validate:"required_if=Engine openai,omitempty,url"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`

	ModelBaseURL      string `env:"MODEL_BASE_URL" envDefault:"https://huggingface.co" validate:"url"`
	ModelAutoDownload bool   `env:"MODEL_AUTO_DOWNLOAD" envDefault:"true"`
	ModelS3           S3Config

	HTTPAddr          string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:9000"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	// WriteTimeout stays 0 by default: transcriptions have no deadline.
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"0s"`

	TempDir     string   `env:"TEMP_DIR"`
	AuthToken   string   `env:"AUTH_TOKEN"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
}

// S3Config points the model store at an S3-compatible mirror instead of
// the public model origin.
type S3Config struct {
	Bucket    string `env:"MODEL_S3_BUCKET"`
	Prefix    string `env:"MODEL_S3_PREFIX"`
	Endpoint  string `env:"MODEL_S3_ENDPOINT" validate:"omitempty,url"`
	Region    string `env:"MODEL_S3_REGION" envDefault:"us-east-1"`
	AccessKey string `env:"MODEL_S3_ACCESS_KEY"`
	SecretKey string `env:"MODEL_S3_SECRET_KEY"`
}

// Enabled reports whether a mirror bucket is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile      string
	HTTPAddr     string
	LogLevel     string
	WhisperModel string
	ModelsDir    string
	Engine       string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.WhisperModel != "" {
		cfg.WhisperModel = overrides.WhisperModel
	}
	if overrides.ModelsDir != "" {
		cfg.ModelsDir = overrides.ModelsDir
	}
	if overrides.Engine != "" {
		cfg.Engine = overrides.Engine
	}

	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report env var names so errors point at what the operator sets.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("env"), ",", 2)[0]
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}()

// Validate checks field constraints declared in struct tags.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		if e.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", e.Field(), e.Tag(), e.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", e.Field(), e.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
