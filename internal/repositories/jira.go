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
	"requirements-assistant/internal/models"
)

// JiraRepository handles JIRA API interactions. The embedded http.Client is
// safe for concurrent use; one repository is shared by all in-flight dispatch
// batches without additional locking.
type JiraRepository struct {
	config *config.JiraConfig
	client *http.Client
}

// NewJiraRepository creates a new JIRA repository
func NewJiraRepository(jiraConfig *config.JiraConfig) *JiraRepository {
	return &JiraRepository{
		config: jiraConfig,
		client: &http.Client{
			Timeout: time.Duration(jiraConfig.Timeout) * time.Second,
		},
	}
}

// TestConnection tests the JIRA connection and returns accessible projects
func (r *JiraRepository) TestConnection(ctx context.Context) ([]models.JiraProjectInfo, error) {
	url := fmt.Sprintf("%s/rest/api/2/project", r.config.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(r.config.Username, r.config.APIToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("JIRA API returned status %d: %s", resp.StatusCode, string(body))
	}

	var projects []models.JiraProjectInfo
	if err := json.NewDecoder(resp.Body).Decode(&projects); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return projects, nil
}

// GetProjectInfo gets information about a specific project
func (r *JiraRepository) GetProjectInfo(ctx context.Context, projectKey string) (*models.JiraProjectInfo, error) {
	url := fmt.Sprintf("%s/rest/api/2/project/%s", r.config.BaseURL, projectKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(r.config.Username, r.config.APIToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("project lookup failed with status %d: %s", resp.StatusCode, string(body))
	}

	var project models.JiraProjectInfo
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &project, nil
}

// CreateIssue creates a new JIRA issue and returns its id and key
func (r *JiraRepository) CreateIssue(ctx context.Context, issue *models.JiraIssue) (*models.JiraResponse, error) {
	jsonData, err := json.Marshal(issue)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal issue: %w", err)
	}

	url := fmt.Sprintf("%s/rest/api/2/issue", r.config.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(r.config.Username, r.config.APIToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("JIRA API returned status %d: %s", resp.StatusCode, string(body))
	}

	var jiraResp models.JiraResponse
	if err := json.NewDecoder(resp.Body).Decode(&jiraResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &jiraResp, nil
}

// CreateSprint creates a future sprint on the configured board
func (r *JiraRepository) CreateSprint(ctx context.Context, name string, boardID int, start, end time.Time) (int, error) {
	payload := models.JiraSprintRequest{
		Name:          name,
		OriginBoardID: boardID,
		StartDate:     start.Format(time.RFC3339),
		EndDate:       end.Format(time.RFC3339),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal sprint: %w", err)
	}

	url := fmt.Sprintf("%s/rest/agile/1.0/sprint", r.config.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(r.config.Username, r.config.APIToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("sprint creation failed with status %d: %s", resp.StatusCode, string(body))
	}

	var sprint models.JiraSprint
	if err := json.NewDecoder(resp.Body).Decode(&sprint); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	return sprint.ID, nil
}

// StartSprint transitions a sprint to the active state
func (r *JiraRepository) StartSprint(ctx context.Context, sprintID int) error {
	payload := map[string]string{"state": "active"}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal sprint state: %w", err)
	}

	url := fmt.Sprintf("%s/rest/agile/1.0/sprint/%d", r.config.BaseURL, sprintID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(r.config.Username, r.config.APIToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sprint activation failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// MoveIssuesToSprint attaches the given issue keys to a sprint in one call
func (r *JiraRepository) MoveIssuesToSprint(ctx context.Context, sprintID int, keys []string) error {
	jsonData, err := json.Marshal(models.JiraSprintIssues{Issues: keys})
	if err != nil {
		return fmt.Errorf("failed to marshal issue keys: %w", err)
	}

	url := fmt.Sprintf("%s/rest/agile/1.0/sprint/%d/issue", r.config.BaseURL, sprintID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(r.config.Username, r.config.APIToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("moving issues to sprint failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
