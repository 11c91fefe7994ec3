package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"requirements-assistant/internal/models"
)

// IssueCreator creates single issues in the external tracker.
type IssueCreator interface {
	CreateIssue(ctx context.Context, issue *models.JiraIssue) (*models.JiraResponse, error)
}

// TrackerClient is the full issue-tracker surface the sprint flow needs.
type TrackerClient interface {
	IssueCreator
	CreateSprint(ctx context.Context, name string, boardID int, start, end time.Time) (int, error)
	StartSprint(ctx context.Context, sprintID int) error
	MoveIssuesToSprint(ctx context.Context, sprintID int, keys []string) error
}

// Dispatcher fans ticket creation out to the tracker with a bounded number of
// concurrent calls. Each attempt is independent: a failure becomes a per-item
// outcome and never aborts sibling attempts.
type Dispatcher struct {
	tracker     IssueCreator
	projectKey  string
	concurrency int
	logger      *slog.Logger
}

// NewDispatcher creates a new dispatcher with the given concurrency ceiling.
func NewDispatcher(tracker IssueCreator, projectKey string, concurrency int, logger *slog.Logger) *Dispatcher {
	if concurrency < 1 {
		concurrency = 4
	}
	return &Dispatcher{
		tracker:     tracker,
		projectKey:  projectKey,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Dispatch creates one Story ticket per requirement and returns exactly one
// outcome per input. No ordering is guaranteed among the concurrent creations.
//
// Re-dispatching a batch after a partial failure re-creates tickets for
// requirements that already succeeded; the tracker is never queried for
// duplicates. Callers wanting to retry should resubmit only the failed subset.
func (d *Dispatcher) Dispatch(ctx context.Context, reqs []models.Requirement, originalRequest string) []models.TicketOutcome {
	outcomes := make([]models.TicketOutcome, len(reqs))

	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			outcomes[i] = d.createStory(ctx, req, originalRequest)
			return nil
		})
	}
	g.Wait()

	succeeded, failed := models.CountOutcomes(outcomes)
	d.logger.Info("ticket dispatch finished",
		"total", len(outcomes), "succeeded", succeeded, "failed", failed)
	return outcomes
}

// DispatchTasks creates one Task ticket per technical task under the same
// bounded-concurrency contract as Dispatch.
func (d *Dispatcher) DispatchTasks(ctx context.Context, tasks []models.Task) []models.TicketOutcome {
	outcomes := make([]models.TicketOutcome, len(tasks))

	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for i, task := range tasks {
		g.Go(func() error {
			outcomes[i] = d.createTask(ctx, task)
			return nil
		})
	}
	g.Wait()

	succeeded, failed := models.CountOutcomes(outcomes)
	d.logger.Info("task dispatch finished",
		"total", len(outcomes), "succeeded", succeeded, "failed", failed)
	return outcomes
}

func (d *Dispatcher) createStory(ctx context.Context, req models.Requirement, originalRequest string) models.TicketOutcome {
	description := fmt.Sprintf(
		"Solicitação Original do Cliente:\n{quote}\n%s\n{quote}\n\n--- REQUISITO DETALHADO ---\n\n%s",
		originalRequest, ToJiraMarkup(req.Text()),
	)

	issue := &models.JiraIssue{
		Fields: models.JiraFields{
			Project:     models.JiraProject{Key: d.projectKey},
			Summary:     req.Title,
			Description: description,
			IssueType:   models.JiraIssueType{Name: "Story"},
		},
	}

	resp, err := d.tracker.CreateIssue(ctx, issue)
	if err != nil {
		d.logger.Error("ticket creation failed", "source_id", req.ID, "error", err)
		return models.TicketOutcome{SourceID: req.ID, Title: req.Title, Error: err.Error()}
	}
	return models.TicketOutcome{SourceID: req.ID, Key: resp.Key, Title: req.Title}
}

func (d *Dispatcher) createTask(ctx context.Context, task models.Task) models.TicketOutcome {
	summary := fmt.Sprintf("%s - %s: %s", task.USID, task.USTitle, truncateSummary(task.Description, 50))
	description := fmt.Sprintf("Task detalhada da US %s\n\n%s", task.USID, task.Description)

	issue := &models.JiraIssue{
		Fields: models.JiraFields{
			Project:     models.JiraProject{Key: d.projectKey},
			Summary:     summary,
			Description: description,
			IssueType:   models.JiraIssueType{Name: "Task"},
		},
	}

	resp, err := d.tracker.CreateIssue(ctx, issue)
	if err != nil {
		d.logger.Error("task ticket creation failed", "task_id", task.ID, "source_us", task.USID, "error", err)
		return models.TicketOutcome{SourceID: task.ID, Title: summary, Error: err.Error()}
	}
	return models.TicketOutcome{SourceID: task.ID, Key: resp.Key, Title: summary}
}

func truncateSummary(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
