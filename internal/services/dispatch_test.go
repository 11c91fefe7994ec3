package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"requirements-assistant/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTracker records tracker calls and can be told to fail selectively.
type fakeTracker struct {
	mu          sync.Mutex
	created     []*models.JiraIssue
	nextKey     int
	inFlight    int
	maxInFlight int
	delay       time.Duration
	failWhen    func(issue *models.JiraIssue) bool

	failCreateSprint bool
	failStartSprint  bool
	failMove         bool
	sprintNames      []string
	startedSprints   []int
	movedKeys        map[int][]string
}

func (f *fakeTracker) CreateIssue(ctx context.Context, issue *models.JiraIssue) (*models.JiraResponse, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--

	if f.failWhen != nil && f.failWhen(issue) {
		return nil, errors.New("tracker rejected the issue")
	}
	f.created = append(f.created, issue)
	f.nextKey++
	return &models.JiraResponse{Key: fmt.Sprintf("PROJ-%d", f.nextKey)}, nil
}

func (f *fakeTracker) CreateSprint(ctx context.Context, name string, boardID int, start, end time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateSprint {
		return 0, errors.New("sprint creation refused")
	}
	f.sprintNames = append(f.sprintNames, name)
	return 42, nil
}

func (f *fakeTracker) StartSprint(ctx context.Context, sprintID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStartSprint {
		return errors.New("sprint activation refused")
	}
	f.startedSprints = append(f.startedSprints, sprintID)
	return nil
}

func (f *fakeTracker) MoveIssuesToSprint(ctx context.Context, sprintID int, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMove {
		return errors.New("issue move refused")
	}
	if f.movedKeys == nil {
		f.movedKeys = make(map[int][]string)
	}
	f.movedKeys[sprintID] = append(f.movedKeys[sprintID], keys...)
	return nil
}

func (f *fakeTracker) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func storyBatch(n int) []models.Requirement {
	reqs := make([]models.Requirement, 0, n)
	for i := 1; i <= n; i++ {
		reqs = append(reqs, models.Requirement{
			ID:    fmt.Sprintf("US-%03d", i),
			Title: fmt.Sprintf("história %d", i),
			Raw:   fmt.Sprintf("**Como um:** usuário %d\n**Critérios de Aceite:**\n- feito", i),
		})
	}
	return reqs
}

func TestDispatchOutcomePerRequirement(t *testing.T) {
	tracker := &fakeTracker{
		failWhen: func(issue *models.JiraIssue) bool {
			return strings.Contains(issue.Fields.Summary, "história 2") ||
				strings.Contains(issue.Fields.Summary, "história 5")
		},
	}
	d := NewDispatcher(tracker, "PROJ", 4, discardLogger())

	reqs := storyBatch(6)
	outcomes := d.Dispatch(context.Background(), reqs, "pedido original")

	require.Len(t, outcomes, 6)
	succeeded, failed := models.CountOutcomes(outcomes)
	assert.Equal(t, 4, succeeded)
	assert.Equal(t, 2, failed)

	seen := make(map[string]bool)
	for i, out := range outcomes {
		assert.Equal(t, reqs[i].ID, out.SourceID)
		assert.False(t, seen[out.SourceID], "duplicate outcome for %s", out.SourceID)
		seen[out.SourceID] = true
		if out.Succeeded() {
			assert.NotEmpty(t, out.Key)
			assert.Empty(t, out.Error)
		} else {
			assert.Empty(t, out.Key)
			assert.NotEmpty(t, out.Error)
		}
	}
	assert.NotEmpty(t, outcomes[1].Error)
	assert.NotEmpty(t, outcomes[4].Error)
}

func TestDispatchBoundsConcurrency(t *testing.T) {
	tracker := &fakeTracker{delay: 5 * time.Millisecond}
	d := NewDispatcher(tracker, "PROJ", 3, discardLogger())

	outcomes := d.Dispatch(context.Background(), storyBatch(20), "pedido")

	require.Len(t, outcomes, 20)
	assert.Equal(t, 20, tracker.createdCount())
	assert.LessOrEqual(t, tracker.maxInFlight, 3)
	assert.Greater(t, tracker.maxInFlight, 0)
}

func TestDispatchStoryIssueShape(t *testing.T) {
	tracker := &fakeTracker{}
	d := NewDispatcher(tracker, "PROJ", 1, discardLogger())

	reqs := []models.Requirement{{
		ID:    "US-001",
		Title: "relatório mensal",
		Raw:   "**Como um:** gestor\n**Eu quero:** relatório mensal\n**Critérios de Aceite:**\n- exportável",
	}}
	outcomes := d.Dispatch(context.Background(), reqs, "preciso de relatórios")

	require.Len(t, outcomes, 1)
	require.Len(t, tracker.created, 1)

	issue := tracker.created[0]
	assert.Equal(t, "PROJ", issue.Fields.Project.Key)
	assert.Equal(t, "Story", issue.Fields.IssueType.Name)
	assert.Equal(t, "relatório mensal", issue.Fields.Summary)
	assert.Contains(t, issue.Fields.Description, "{quote}\npreciso de relatórios\n{quote}")
	assert.Contains(t, issue.Fields.Description, "REQUISITO DETALHADO")
	assert.Contains(t, issue.Fields.Description, "*Como um:*")
}

func TestDispatchTasks(t *testing.T) {
	tracker := &fakeTracker{}
	d := NewDispatcher(tracker, "PROJ", 2, discardLogger())

	tasks := []models.Task{
		{ID: "T-001", Description: "criar endpoint de consulta", USID: "US-001", USTitle: "relatório", Estimate: 2},
		{ID: "T-002", Description: strings.Repeat("x", 80), USID: "US-001", USTitle: "relatório", Estimate: 1},
	}
	outcomes := d.DispatchTasks(context.Background(), tasks)

	require.Len(t, outcomes, 2)
	assert.Equal(t, "T-001", outcomes[0].SourceID)
	assert.Equal(t, "T-002", outcomes[1].SourceID)

	require.Len(t, tracker.created, 2)
	for _, issue := range tracker.created {
		assert.Equal(t, "Task", issue.Fields.IssueType.Name)
		assert.Contains(t, issue.Fields.Summary, "US-001 - relatório: ")
	}

	var longSummary string
	for _, issue := range tracker.created {
		if strings.Contains(issue.Fields.Description, strings.Repeat("x", 80)) {
			longSummary = issue.Fields.Summary
		}
	}
	require.NotEmpty(t, longSummary)
	assert.Contains(t, longSummary, strings.Repeat("x", 50))
	assert.NotContains(t, longSummary, strings.Repeat("x", 51))
}

func TestDispatchEmptyBatch(t *testing.T) {
	tracker := &fakeTracker{}
	d := NewDispatcher(tracker, "PROJ", 4, discardLogger())

	assert.Empty(t, d.Dispatch(context.Background(), nil, "pedido"))
	assert.Empty(t, d.DispatchTasks(context.Background(), nil))
	assert.Zero(t, tracker.createdCount())
}
