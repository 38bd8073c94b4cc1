// Package translate calls a LibreTranslate-compatible /translate endpoint.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/m3rciful/lingobot/core/logger"
)

const maxErrorBody = 512

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("translate: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("translate: HTTP %d: %s", e.StatusCode, e.Message)
}

// ErrEmptyResponse reports a 2xx answer without translatedText.
var ErrEmptyResponse = errors.New("translate: response has no translatedText")

type request struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type response struct {
	TranslatedText *string `json:"translatedText"`
	Error          string  `json:"error,omitempty"`
}

// Client translates text with the source language auto-detected.
type Client struct {
	http   *http.Client
	url    string
	apiKey string
}

// NewClient builds a Client posting to endpoint, e.g.
// https://libretranslate.com/translate.
func NewClient(httpClient *http.Client, endpoint, apiKey string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, url: endpoint, apiKey: apiKey}
}

// Translate returns text translated into target.
func (c *Client) Translate(ctx context.Context, text, target string) (string, error) {
	body, err := json.Marshal(request{
		Q:      text,
		Source: "auto",
		Target: target,
		Format: "text",
		APIKey: c.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	took := logger.RoundMS(time.Since(start))
	if err != nil {
		logger.Warn(ctx, "translate", "translate.request",
			slog.String("status", "fail"),
			slog.String("lang", target),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("translate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
		logger.Warn(ctx, "translate", "translate.request",
			slog.String("status", "fail"),
			slog.String("lang", target),
			slog.Int("http_status", resp.StatusCode),
			slog.Duration("duration", took),
			slog.String("err", apiErr.Error()),
		)
		return "", apiErr
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.TranslatedText == nil {
		return "", ErrEmptyResponse
	}
	logger.Debug(ctx, "translate", "translate.request",
		slog.String("status", "ok"),
		slog.String("lang", target),
		slog.Duration("duration", took),
	)
	return *out.TranslatedText, nil
}

func readErrorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var payload response
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return logger.SanitizeLimit(strings.TrimSpace(string(data)), 200)
}
