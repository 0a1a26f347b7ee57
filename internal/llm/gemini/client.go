package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/doc-cleanser/internal/llm"
)

// Config for the Gemini client.
type Config struct {
	APIKey      string
	Model       string // e.g., "gemini-1.5-flash"
	Temperature float32
}

// Client implements llm.Provider on the Gemini API in JSON response mode.
type Client struct {
	cfg    Config
	client *genai.Client
	logger *slog.Logger
}

// NewClient dials the Gemini API. Close releases the underlying connection.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{cfg: cfg, client: client, logger: logger}, nil
}

func (c *Client) Name() string { return "gemini" }

// Close releases resources held by the client
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *Client) Extract(ctx context.Context, cleansedText string, fieldSchema map[string]any) ([]byte, error) {
	start := time.Now()
	strict := llm.IsStrict(ctx)

	model := c.client.GenerativeModel(c.cfg.Model)
	model.SetTemperature(c.cfg.Temperature)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = genai.NewUserContent(genai.Text(llm.BuildSystemPrompt(strict) + "\n\n" + llm.SchemaMessage(fieldSchema)))

	resp, err := model.GenerateContent(ctx, genai.Text(llm.BuildUserPrompt(cleansedText)))
	if err != nil {
		c.logger.Error("llm.gemini.error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, &llm.ProviderError{Provider: c.Name(), Status: statusOf(err), Err: err}
	}
	text := textOf(resp)
	c.logger.Debug("llm.gemini.response", "bytes", len(text), "strict", strict, "elapsed_ms", time.Since(start).Milliseconds())
	return []byte(text), nil
}

// textOf concatenates the text parts of the first candidate. Empty output is left to validation.
func textOf(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return ""
	}
	var parts []string
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			parts = append(parts, string(t))
		}
	}
	return strings.TrimSpace(strings.Join(parts, ""))
}

// statusOf maps API failures onto HTTP status semantics so the extractor can decide on retries.
func statusOf(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			return http.StatusTooManyRequests
		case codes.Unavailable, codes.Internal, codes.Unknown:
			return http.StatusServiceUnavailable
		case codes.DeadlineExceeded:
			return http.StatusGatewayTimeout
		case codes.InvalidArgument, codes.FailedPrecondition:
			return http.StatusBadRequest
		case codes.PermissionDenied, codes.Unauthenticated:
			return http.StatusForbidden
		case codes.NotFound:
			return http.StatusNotFound
		}
	}
	return 0
}

var _ llm.Provider = (*Client)(nil)
