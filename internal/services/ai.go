package services

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

	"requirements-assistant/internal/config"
)

// ErrUpstreamUnavailable marks failures reaching the generation or retrieval
// backend. Handlers surface it as "service not ready"; callers may retry
// later and session state is untouched.
var ErrUpstreamUnavailable = errors.New("upstream backend unavailable")

// Generator is the text-generation oracle. Output is non-deterministic and
// may be malformed; callers validate the shape, never trust it.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Retriever fetches context snippets for retrieval-augmented prompts. An
// empty result is valid.
type Retriever interface {
	Fetch(ctx context.Context, query string, k int) ([]string, error)
}

// AIService calls the generation model API with bounded retry.
type AIService struct {
	config *config.LLMConfig
	client *http.Client
	logger *slog.Logger
}

// NewAIService creates a new AI service
func NewAIService(llmConfig *config.LLMConfig, logger *slog.Logger) *AIService {
	return &AIService{
		config: llmConfig,
		client: &http.Client{
			Timeout: time.Duration(llmConfig.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}
}

// Complete sends the prompt to the generation model, retrying transient
// failures with a fixed delay.
func (s *AIService) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= s.config.RetryCount; attempt++ {
		attempts = attempt
		text, err := s.complete(ctx, prompt)
		if err == nil {
			return text, nil
		}

		lastErr = err
		s.logger.Warn("generation attempt failed",
			"attempt", attempt, "retries", s.config.RetryCount, "error", err)

		if !errors.Is(err, ErrUpstreamUnavailable) {
			break
		}
		if attempt < s.config.RetryCount {
			select {
			case <-time.After(time.Duration(s.config.RetryDelaySeconds) * time.Second):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	return "", fmt.Errorf("generation failed after %d attempts: %w", attempts, lastErr)
}

func (s *AIService) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model":      s.config.Model,
		"max_tokens": s.config.MaxTokens,
		"messages": []map[string]string{
			{
				"role":    "user",
				"content": prompt,
			},
		},
	}
	if s.config.Temperature > 0 {
		reqBody["temperature"] = s.config.Temperature
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/messages", s.config.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.config.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: API returned status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var apiResponse struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", fmt.Errorf("failed to decode API response: %w", err)
	}

	if len(apiResponse.Content) == 0 {
		return "", fmt.Errorf("empty response from API")
	}

	return strings.TrimSpace(apiResponse.Content[0].Text), nil
}
