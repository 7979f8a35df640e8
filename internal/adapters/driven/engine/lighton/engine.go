// Package lighton provides an extraction engine backed by a vLLM server
// exposing the OpenAI-compatible /chat/completions API with vision input.
package lighton

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/quillstack-labs/pagelift/internal/core/domain"
	"github.com/quillstack-labs/pagelift/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.Engine = (*Engine)(nil)

// Default configuration values.
const (
	DefaultModel   = "lightonai/LightOnOCR-1B"
	DefaultTimeout = 300 * time.Second
	DefaultMaxTok  = 4096
)

// defaultPrompt asks the model for a faithful transcription.
const defaultPrompt = "Convert this document page to markdown. " +
	"Transcribe all text exactly as it appears, preserving structure. " +
	"Return only the markdown content."

// Config holds configuration for the engine.
type Config struct {
	// BaseURL is the vLLM server base URL, e.g. http://localhost:8000/v1
	// (required).
	BaseURL string

	// APIKey is sent as a bearer token when set. vLLM deployments often
	// run without one.
	APIKey string

	// Model is the served model name (default: lightonai/LightOnOCR-1B).
	Model string

	// Prompt overrides the transcription instruction.
	Prompt string

	// MaxTokens caps the response length (default: 4096).
	MaxTokens int

	// Timeout bounds a single inference request (default: 300s). Retries
	// are the caller's concern.
	Timeout time.Duration
}

// Engine sends page images to a vLLM server for text extraction.
type Engine struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	model     string
	prompt    string
	maxTokens int
}

// chatRequest is the /chat/completions request format.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []chatMsg `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

// chatMsg carries mixed text and image content parts.
type chatMsg struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// chatResponse is the /chat/completions response format.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// New creates an engine client.
func New(cfg Config) (*Engine, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("lighton: base URL is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Prompt == "" {
		cfg.Prompt = defaultPrompt
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTok
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Engine{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		prompt:    cfg.Prompt,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Infer extracts text from a single PNG page image. Failures map onto
// the transient/permanent inference error taxonomy so the caller can
// decide what to retry.
func (e *Engine) Infer(ctx context.Context, pageImage []byte) (string, error) {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pageImage)

	reqBody := chatRequest{
		Model: e.model,
		Messages: []chatMsg{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: e.prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
		MaxTokens:   e.maxTokens,
		Temperature: 0,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		e.baseURL+"/chat/completions",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", domain.ErrInferenceUnavailable, err)
	}

	if err := statusError(resp.StatusCode, body); err != nil {
		return "", err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("%w: malformed response: %v", domain.ErrInferenceUnavailable, err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrInferenceRejected, chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", domain.ErrInferenceRejected)
	}

	return chatResp.Choices[0].Message.Content, nil
}

// transportError classifies failures that happened before a response
// arrived: deadline and timeout errors are retryable timeouts, everything
// else means the server is unreachable.
func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrInferenceTimeout, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrInferenceUnavailable, err)
}

// statusError classifies non-2xx responses. Server-side failures and
// throttling are transient; other client errors mean the request itself
// was rejected and retrying is pointless.
func statusError(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusRequestTimeout:
		return fmt.Errorf("%w: status %d", domain.ErrInferenceTimeout, status)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: status %d: %s", domain.ErrInferenceUnavailable, status, truncate(body))
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrInferenceRejected, status, truncate(body))
	}
}

func truncate(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
