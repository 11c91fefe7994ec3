package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"requirements-assistant/internal/config"
)

// TranscriberRepository sends audio files to the speech-to-text service.
type TranscriberRepository struct {
	config *config.AudioConfig
	client *http.Client
}

// NewTranscriberRepository creates a new transcriber repository
func NewTranscriberRepository(audioConfig *config.AudioConfig) *TranscriberRepository {
	return &TranscriberRepository{
		config: audioConfig,
		client: &http.Client{
			Timeout: time.Duration(audioConfig.TimeoutSeconds) * time.Second,
		},
	}
}

type transcriptResult struct {
	Text string `json:"text"`
}

// Transcribe uploads the audio file and returns the transcript. Duration
// limits are enforced by the caller before this request is made.
func (r *TranscriberRepository) Transcribe(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to read audio file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finish upload: %w", err)
	}

	url := fmt.Sprintf("%s/transcribe", r.config.TranscriberURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("transcriber returned status %d: %s", resp.StatusCode, string(body))
	}

	var result transcriptResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return result.Text, nil
}
