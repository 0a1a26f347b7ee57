// Package presidio calls a Presidio analyzer sidecar over HTTP and maps its results to redaction spans.
// Unlike a best-effort classifier, transport and status errors are returned so the caller can flag
// the block as incompletely redacted.
package presidio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

// Client calls the analyzer's /analyze endpoint.
type Client struct {
	url       string
	language  string
	threshold float32
	http      *http.Client
	logger    *slog.Logger
}

// New creates a Client pointing at the given base URL (e.g. "http://presidio-analyzer:3000").
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:       strings.TrimRight(baseURL, "/") + "/analyze",
		language:  "en",
		threshold: 0.35,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type analyzeRequest struct {
	Text           string  `json:"text"`
	Language       string  `json:"language"`
	ScoreThreshold float32 `json:"score_threshold,omitempty"`
}

type analyzerResult struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float32 `json:"score"`
}

// skipped entity types carry the security payload or are too noisy to mask.
var skipped = map[string]struct{}{
	"IP_ADDRESS": {},
	"URL":        {},
	"DATE_TIME":  {},
}

func (c *Client) Name() string { return "presidio" }

// Detect is safe for concurrent use.
func (c *Client) Detect(ctx context.Context, text string) ([]entity.RedactionSpan, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	body, err := json.Marshal(analyzeRequest{Text: text, Language: c.language, ScoreThreshold: c.threshold})
	if err != nil {
		return nil, fmt.Errorf("presidio: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("presidio: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("presidio: analyzer unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("presidio: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var results []analyzerResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("presidio: decode: %w", err)
	}

	offsets := runeOffsets(text)
	spans := make([]entity.RedactionSpan, 0, len(results))
	for _, r := range results {
		if _, skip := skipped[r.EntityType]; skip {
			continue
		}
		if r.Start < 0 || r.End > len(offsets)-1 || r.Start >= r.End {
			c.logger.Debug("presidio.span.out_of_range", "entity", r.EntityType, "start", r.Start, "end", r.End)
			continue
		}
		cat, _ := constants.Canonicalize(r.EntityType)
		spans = append(spans, entity.RedactionSpan{
			Start:      offsets[r.Start],
			End:        offsets[r.End],
			Category:   cat,
			Confidence: r.Score,
			Source:     c.Name(),
		})
	}
	return spans, nil
}

// runeOffsets maps code point index -> byte offset, with one trailing entry for len(text).
// The analyzer reports positions in code points.
func runeOffsets(text string) []int {
	out := make([]int, 0, len(text)+1)
	for i := range text {
		out = append(out, i)
	}
	return append(out, len(text))
}
