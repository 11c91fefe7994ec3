package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"requirements-assistant/internal/config"
)

// RetrieverRepository queries the vector-store service for context snippets.
type RetrieverRepository struct {
	config *config.RetrieverConfig
	client *http.Client
}

// NewRetrieverRepository creates a new retriever repository
func NewRetrieverRepository(retrieverConfig *config.RetrieverConfig) *RetrieverRepository {
	return &RetrieverRepository{
		config: retrieverConfig,
		client: &http.Client{
			Timeout: time.Duration(retrieverConfig.TimeoutSeconds) * time.Second,
		},
	}
}

type retrieverQuery struct {
	Collection string `json:"collection,omitempty"`
	Query      string `json:"query"`
	K          int    `json:"k"`
}

type retrieverResult struct {
	Documents []string `json:"documents"`
}

// Fetch returns up to k context snippets relevant to the query. An empty
// result is not an error.
func (r *RetrieverRepository) Fetch(ctx context.Context, query string, k int) ([]string, error) {
	jsonData, err := json.Marshal(retrieverQuery{
		Collection: r.config.Collection,
		Query:      query,
		K:          k,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	url := fmt.Sprintf("%s/query", r.config.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vector store returned status %d: %s", resp.StatusCode, string(body))
	}

	var result retrieverResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return result.Documents, nil
}
