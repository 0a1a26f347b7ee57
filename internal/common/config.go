package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration
type Config struct {
	LLM       LLMConfig
	OCR       OCRConfig
	Redaction RedactionConfig
	Pipeline  PipelineConfig
	Ledger    LedgerConfig
	Server    ServerConfig
	Log       LogConfig
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider          string `validate:"oneof=openai gemini"`
	OpenAIKey         string
	OpenAIModel       string
	OpenAIBaseURL     string
	GeminiKey         string
	GeminiModel       string
	Temperature       float32       `validate:"gte=0,lte=2"`
	Timeout           time.Duration `validate:"gt=0"`
	ServiceRetries    int           `validate:"gte=0,lte=5"`
	MaxInputTokens    int           `validate:"gte=0"`
	ForwardIncomplete bool
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine        string `validate:"oneof=exec gosseract"`
	Tesseract     string
	Pdftoppm      string
	TessdataDir   string
	Lang          string
	DPI           int           `validate:"gte=72,lte=1200"`
	Timeout       time.Duration `validate:"gt=0"`
	LowConfidence float32       `validate:"gte=0,lte=1"`
}

// RedactionConfig holds detector and matcher thresholds
type RedactionConfig struct {
	EnableNER       bool
	PresidioURL     string
	DetectorTimeout time.Duration `validate:"gt=0"`
	MinConfidence   float32       `validate:"gte=0,lte=1"`
	LogoThreshold   float32       `validate:"gt=0,lte=1"`
}

// PipelineConfig holds batch worker configuration
type PipelineConfig struct {
	Workers         int           `validate:"gte=1,lte=256"`
	DocumentTimeout time.Duration `validate:"gt=0"`
}

// LedgerConfig holds session ledger configuration
type LedgerConfig struct {
	DSN string
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string
	MetricsAddr string
}

// LogConfig selects the slog handler
type LogConfig struct {
	Format string `validate:"oneof=json text"`
	Level  string `validate:"oneof=debug info warn error"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:          strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
			OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
			GeminiKey:         getEnv("GEMINI_API_KEY", ""),
			GeminiModel:       getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			Temperature:       getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:           getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
			ServiceRetries:    getEnvAsInt("LLM_SERVICE_RETRIES", 1),
			MaxInputTokens:    getEnvAsInt("LLM_MAX_INPUT_TOKENS", 12000),
			ForwardIncomplete: getEnvAsBool("LLM_FORWARD_INCOMPLETE", false),
		},
		OCR: OCRConfig{
			Engine:        strings.ToLower(getEnv("OCR_ENGINE", "exec")),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			Lang:          getEnv("OCR_LANG", "eng"),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			Timeout:       getEnvAsDuration("OCR_TIMEOUT", 60*time.Second),
			LowConfidence: getEnvAsFloat32("OCR_LOW_CONFIDENCE", 0.6),
		},
		Redaction: RedactionConfig{
			EnableNER:       getEnvAsBool("REDACT_ENABLE_NER", true),
			PresidioURL:     getEnv("PRESIDIO_URL", ""),
			DetectorTimeout: getEnvAsDuration("REDACT_DETECTOR_TIMEOUT", 10*time.Second),
			MinConfidence:   getEnvAsFloat32("REDACT_MIN_CONFIDENCE", 0.35),
			LogoThreshold:   getEnvAsFloat32("LOGO_SIMILARITY_THRESHOLD", 0.8),
		},
		Pipeline: PipelineConfig{
			Workers:         getEnvAsInt("PIPELINE_WORKERS", 4),
			DocumentTimeout: getEnvAsDuration("PIPELINE_DOCUMENT_TIMEOUT", 5*time.Minute),
		},
		Ledger: LedgerConfig{
			DSN: getEnv("LEDGER_DSN", ""),
		},
		Server: ServerConfig{
			GRPCAddr:    getEnv("GRPC_ADDR", ":8080"),
			MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		},
		Log: LogConfig{
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

var configValidator = validator.New()

// Validate checks struct constraints, then the cross-field rules.
// requireLLM is false for commands that never call the model (redact).
func (c *Config) Validate(requireLLM bool) error {
	if err := configValidator.Struct(c); err != nil {
		return NewAppError(CodeConfig, "invalid configuration", err)
	}
	if requireLLM {
		switch c.LLM.Provider {
		case "openai":
			if c.LLM.OpenAIKey == "" {
				return NewAppError(CodeConfig, "OPENAI_API_KEY is required", ErrInvalidInput)
			}
		case "gemini":
			if c.LLM.GeminiKey == "" {
				return NewAppError(CodeConfig, "GEMINI_API_KEY is required", ErrInvalidInput)
			}
		}
	}
	return nil
}
