package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("PIPELINE_WORKERS", "")

	cfg := LoadConfig()
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 1, cfg.LLM.ServiceRetries)
	assert.InDelta(t, 0.8, cfg.Redaction.LogoThreshold, 1e-6)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)

	require.NoError(t, cfg.Validate(false))
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Gemini")
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("OCR_TIMEOUT", "5s")
	t.Setenv("LLM_FORWARD_INCOMPLETE", "true")
	t.Setenv("PIPELINE_WORKERS", "not-a-number")

	cfg := LoadConfig()
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 5*time.Second, cfg.OCR.Timeout)
	assert.True(t, cfg.LLM.ForwardIncomplete)
	assert.Equal(t, 4, cfg.Pipeline.Workers, "unparseable values fall back to the default")
	require.NoError(t, cfg.Validate(true))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		requireLLM bool
		wantErr    bool
	}{
		{name: "missing openai key", mutate: func(c *Config) { c.LLM.OpenAIKey = "" }, requireLLM: true, wantErr: true},
		{name: "missing key tolerated without llm", mutate: func(c *Config) { c.LLM.OpenAIKey = "" }, requireLLM: false},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "bard" }, wantErr: true},
		{name: "logo threshold out of range", mutate: func(c *Config) { c.Redaction.LogoThreshold = 1.5 }, wantErr: true},
		{name: "zero workers", mutate: func(c *Config) { c.Pipeline.Workers = 0 }, wantErr: true},
		{name: "unknown ocr engine", mutate: func(c *Config) { c.OCR.Engine = "easyocr" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "sk-test")
			cfg := LoadConfig()
			cfg.LLM.Provider = "openai"
			tt.mutate(cfg)
			err := cfg.Validate(tt.requireLLM)
			if tt.wantErr {
				require.Error(t, err)
				var app *AppError
				require.ErrorAs(t, err, &app)
				assert.Equal(t, CodeConfig, app.Code)
				return
			}
			require.NoError(t, err)
		})
	}
}
