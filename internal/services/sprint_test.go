package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"requirements-assistant/internal/models"
)

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (g *fakeGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func newSprintService(gen Generator, tracker *fakeTracker) *SprintService {
	logger := discardLogger()
	dispatcher := NewDispatcher(tracker, "PROJ", 4, logger)
	return NewSprintService(gen, tracker, dispatcher, 7, 0, logger)
}

func approvedStories() []models.Requirement {
	return []models.Requirement{{
		ID:    "US-001",
		Title: "relatório mensal",
		Story: models.UserStory{Role: "gestor", Goal: "relatório mensal", Reason: "decidir"},
		AcceptanceCriteria: []string{
			"dados do mês corrente",
			"exportável em PDF",
			"envio por e-mail",
		},
		Estimate: 5,
	}}
}

func TestDecomposeFromOracle(t *testing.T) {
	gen := &fakeGenerator{response: "```json\n" + `{
		"tasks": [
			{"description": "modelar consulta", "us_id": "US-001", "us_title": "relatório mensal", "estimate": 2},
			{"description": "gerar PDF", "us_id": "US-001", "us_title": "relatório mensal", "estimate": 3}
		]
	}` + "\n```"}

	s := newSprintService(gen, &fakeTracker{})
	tasks, err := s.Decompose(context.Background(), approvedStories())
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, "T-001", tasks[0].ID)
	assert.Equal(t, "T-002", tasks[1].ID)
	assert.Equal(t, "modelar consulta", tasks[0].Description)
	assert.Equal(t, "US-001", tasks[0].USID)
	assert.Equal(t, 3, tasks[1].Estimate)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "relatório mensal")
}

func TestDecomposeFallsBackOnGarbage(t *testing.T) {
	gen := &fakeGenerator{response: "desculpe, não consegui gerar o JSON pedido"}

	s := newSprintService(gen, &fakeTracker{})
	tasks, err := s.Decompose(context.Background(), approvedStories())
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	for i, task := range tasks {
		assert.Equal(t, "US-001", task.USID)
		assert.Equal(t, "relatório mensal", task.USTitle)
		assert.Equal(t, 1, task.Estimate)
		assert.Contains(t, task.Description, approvedStories()[0].AcceptanceCriteria[i])
	}
	assert.Equal(t, "T-001", tasks[0].ID)
	assert.Equal(t, "T-003", tasks[2].ID)
}

func TestDecomposeFallbackSkipsStoriesWithoutCriteria(t *testing.T) {
	gen := &fakeGenerator{response: `{"wrong_key": []}`}
	stories := append(approvedStories(), models.Requirement{
		ID: "US-002", Title: "sem critérios", Estimate: 8,
	})

	s := newSprintService(gen, &fakeTracker{})
	tasks, err := s.Decompose(context.Background(), stories)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	for _, task := range tasks {
		assert.Equal(t, "US-001", task.USID)
	}
}

func TestDecomposeOracleFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("oracle unreachable")}

	s := newSprintService(gen, &fakeTracker{})
	_, err := s.Decompose(context.Background(), approvedStories())
	assert.Error(t, err)
}

func TestReplan(t *testing.T) {
	gen := &fakeGenerator{response: `{"tasks": [
		{"description": "tarefa revisada", "us_id": "US-001", "us_title": "relatório mensal", "estimate": 4}
	]}`}

	current := []models.Task{
		{ID: "T-001", Description: "antiga", USID: "US-001", USTitle: "relatório mensal", Estimate: 2},
		{ID: "T-002", Description: "outra antiga", USID: "US-001", USTitle: "relatório mensal", Estimate: 2},
	}

	s := newSprintService(gen, &fakeTracker{})
	tasks, err := s.Replan(context.Background(), current, "junte tudo em uma tarefa só")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "T-001", tasks[0].ID)
	assert.Equal(t, "tarefa revisada", tasks[0].Description)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "junte tudo em uma tarefa só")
}

func TestReplanKeepsCurrentOnGarbage(t *testing.T) {
	gen := &fakeGenerator{response: "sem json aqui"}

	current := []models.Task{
		{ID: "T-001", Description: "mantida", USID: "US-001", USTitle: "relatório", Estimate: 2},
	}

	s := newSprintService(gen, &fakeTracker{})
	tasks, err := s.Replan(context.Background(), current, "revise")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "mantida", tasks[0].Description)
}

func sprintTasks() []models.Task {
	return []models.Task{
		{ID: "T-001", Description: "consulta", USID: "US-001", USTitle: "relatório", Estimate: 2},
		{ID: "T-002", Description: "exportação", USID: "US-001", USTitle: "relatório", Estimate: 1},
	}
}

func TestSendSprint(t *testing.T) {
	tracker := &fakeTracker{}
	s := newSprintService(&fakeGenerator{}, tracker)

	result := s.SendSprint(context.Background(), "Sprint 1", sprintTasks())

	require.NotNil(t, result.SprintID)
	assert.Equal(t, 42, *result.SprintID)
	assert.Equal(t, []string{"Sprint 1"}, tracker.sprintNames)
	assert.Equal(t, []int{42}, tracker.startedSprints)

	require.Len(t, result.Outcomes, 2)
	succeeded, failed := models.CountOutcomes(result.Outcomes)
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 0, failed)

	assert.ElementsMatch(t, result.CreatedKeys(), tracker.movedKeys[42])
}

func TestSendSprintCreationFailure(t *testing.T) {
	tracker := &fakeTracker{failCreateSprint: true}
	s := newSprintService(&fakeGenerator{}, tracker)

	result := s.SendSprint(context.Background(), "Sprint 1", sprintTasks())

	assert.Nil(t, result.SprintID)
	require.Len(t, result.Outcomes, 2)
	succeeded, _ := models.CountOutcomes(result.Outcomes)
	assert.Equal(t, 2, succeeded)

	assert.Empty(t, tracker.startedSprints)
	assert.Empty(t, tracker.movedKeys)
}

func TestSendSprintActivationFailure(t *testing.T) {
	tracker := &fakeTracker{failStartSprint: true}
	s := newSprintService(&fakeGenerator{}, tracker)

	result := s.SendSprint(context.Background(), "Sprint 1", sprintTasks())

	assert.Nil(t, result.SprintID)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, 2, tracker.createdCount())
	assert.Empty(t, tracker.movedKeys)
}

func TestSendSprintMovesOnlySuccessfulKeys(t *testing.T) {
	tracker := &fakeTracker{
		failWhen: func(issue *models.JiraIssue) bool {
			return issue.Fields.Summary == "US-001 - relatório: exportação"
		},
	}
	s := newSprintService(&fakeGenerator{}, tracker)

	result := s.SendSprint(context.Background(), "Sprint 1", sprintTasks())

	require.NotNil(t, result.SprintID)
	require.Len(t, result.Outcomes, 2)
	succeeded, failed := models.CountOutcomes(result.Outcomes)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)

	keys := result.CreatedKeys()
	require.Len(t, keys, 1)
	assert.Equal(t, keys, tracker.movedKeys[42])
}

func TestSendSprintMoveFailureKeepsOutcomes(t *testing.T) {
	tracker := &fakeTracker{failMove: true}
	s := newSprintService(&fakeGenerator{}, tracker)

	result := s.SendSprint(context.Background(), "Sprint 1", sprintTasks())

	require.NotNil(t, result.SprintID)
	succeeded, _ := models.CountOutcomes(result.Outcomes)
	assert.Equal(t, 2, succeeded)
}
