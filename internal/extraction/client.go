// Package extraction is the client for the external structured-extraction
// service: one request/response call turning free text into the eleven-key
// Result object.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/raphaelfeliz/chat-nov9/internal/common/logger"
)

var (
	ErrExtractionFailed  = errors.New("EXTRACTION_FAILED")
	ErrExtractionTimeout = errors.New("EXTRACTION_TIMEOUT")
)

// Extractor is the interface the orchestrator consumes; tests substitute a
// fake.
type Extractor interface {
	Extract(ctx context.Context, text string) (*Result, error)
}

// Config holds the collaborator endpoint settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Client calls the extraction service over HTTP.
type Client struct {
	config Config
	client *http.Client
	schema *gojsonschema.Schema
	logger logger.Logger
}

// responseSchema enforces the collaborator contract: all eleven keys always
// present, values string-or-null (boolean-or-null for wantsHuman).
const responseSchema = `{
	"type": "object",
	"required": [
		"category", "system", "blind", "blindMotorization", "material",
		"panelCount", "knowledgeBaseAnswer", "userName", "userEmail",
		"userPhone", "wantsHuman"
	],
	"properties": {
		"category":            {"type": ["string", "null"]},
		"system":              {"type": ["string", "null"]},
		"blind":               {"type": ["string", "null"]},
		"blindMotorization":   {"type": ["string", "null"]},
		"material":            {"type": ["string", "null"]},
		"panelCount":          {"type": ["string", "null"]},
		"knowledgeBaseAnswer": {"type": ["string", "null"]},
		"userName":            {"type": ["string", "null"]},
		"userEmail":           {"type": ["string", "null"]},
		"userPhone":           {"type": ["string", "null"]},
		"wantsHuman":          {"type": ["boolean", "null"]}
	}
}`

// NewClient builds the extraction client. The schema is compiled once.
func NewClient(cfg Config, log logger.Logger) (*Client, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(responseSchema))
	if err != nil {
		return nil, fmt.Errorf("compile extraction response schema: %w", err)
	}
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		schema: compiled,
		logger: log.With(map[string]interface{}{"component": "extraction"}),
	}, nil
}

// Extract sends the utterance and decodes the eleven-key response. An
// HTTP-level failure is a single error path; there are no partial results.
func (c *Client) Extract(ctx context.Context, text string) (*Result, error) {
	body, _ := json.Marshal(map[string]string{"userInput": text})

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrExtractionTimeout
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			// The request may have completed before the context lost the
			// race; the body still needs closing.
			if resp != nil {
				resp.Body.Close()
			}
			return nil, ErrExtractionTimeout
		}
		if err != nil {
			lastErr = err
			c.logger.Warn("extraction request failed", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
			continue
		}

		result, err := c.decode(resp)
		if err != nil {
			lastErr = err
			continue
		}
		return result, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, lastErr)
}

func (c *Client) decode(resp *http.Response) (*Result, error) {
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	validation, err := c.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validate response: %w", err)
	}
	if !validation.Valid() {
		return nil, fmt.Errorf("response violates contract: %v", validation.Errors())
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
