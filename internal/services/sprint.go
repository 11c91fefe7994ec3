package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"requirements-assistant/internal/models"
	"requirements-assistant/internal/parser"
)

// sprintLength is the fixed time box of a created sprint.
const sprintLength = 14 * 24 * time.Hour

// taskPromptTemplate asks the oracle for a technical task breakdown of the
// approved user stories.
const taskPromptTemplate = `Você é um especialista em planejamento de sprints.
Gere uma lista de tarefas técnicas a partir das seguintes User Stories:

%s

Cada tarefa deve ter:
  - descrição
  - us_id (referência da User Story)
  - us_title
  - estimate (em pontos)

Retorne tudo em um único JSON com a chave "tasks", assim:
{
  "tasks": [
    {"description": "...", "us_id": "...", "us_title": "...", "estimate": 0}
  ]
}
`

// replanPromptTemplate revises an existing task list per a user instruction.
const replanPromptTemplate = `Você é um especialista em planejamento de sprints.
Estas são as tarefas técnicas atuais da sprint:

%s

Instrução do usuário: %s

Revise a lista de tarefas conforme a instrução, mantendo os campos description, us_id, us_title e estimate.
Retorne tudo em um único JSON com a chave "tasks", assim:
{
  "tasks": [
    {"description": "...", "us_id": "...", "us_title": "...", "estimate": 0}
  ]
}
`

// SprintService decomposes approved requirements into technical tasks and
// orchestrates sprint creation on the tracker. Every step past sprint
// creation degrades gracefully: tickets always get created, attachment to a
// sprint is best effort and the backlog is the fallback.
type SprintService struct {
	generator  Generator
	tracker    TrackerClient
	dispatcher *Dispatcher
	boardID    int
	startDelay time.Duration
	logger     *slog.Logger
}

// NewSprintService creates a new sprint service.
func NewSprintService(generator Generator, tracker TrackerClient, dispatcher *Dispatcher, boardID int, startDelay time.Duration, logger *slog.Logger) *SprintService {
	return &SprintService{
		generator:  generator,
		tracker:    tracker,
		dispatcher: dispatcher,
		boardID:    boardID,
		startDelay: startDelay,
		logger:     logger,
	}
}

// Decompose turns approved requirements into a flat technical task list. The
// oracle is asked first; when its response cannot be parsed the deterministic
// fallback decomposes each requirement into one task per acceptance
// criterion. Only an oracle transport failure is an error.
func (s *SprintService) Decompose(ctx context.Context, stories []models.Requirement) ([]models.Task, error) {
	storiesJSON, err := json.MarshalIndent(stories, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user stories: %w", err)
	}

	raw, err := s.generator.Complete(ctx, fmt.Sprintf(taskPromptTemplate, string(storiesJSON)))
	if err != nil {
		return nil, err
	}

	tasks, perr := parseTasks(raw)
	if perr != nil {
		s.logger.Warn("task breakdown unparseable, using deterministic fallback", "error", perr)
		tasks = fallbackDecompose(stories)
	}
	return renumberTasks(tasks), nil
}

// Replan revises an existing task list per the user instruction. An
// unparseable revision keeps the current tasks instead of failing.
func (s *SprintService) Replan(ctx context.Context, current []models.Task, instruction string) ([]models.Task, error) {
	currentJSON, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tasks: %w", err)
	}

	raw, err := s.generator.Complete(ctx, fmt.Sprintf(replanPromptTemplate, string(currentJSON), instruction))
	if err != nil {
		return nil, err
	}

	tasks, perr := parseTasks(raw)
	if perr != nil {
		s.logger.Warn("replanned breakdown unparseable, keeping current tasks", "error", perr)
		tasks = current
	}
	return renumberTasks(tasks), nil
}

// SendSprint creates a sprint container, activates it and dispatches one
// ticket per task, attaching the successful tickets to the sprint. Each step
// has an explicit fallback and nothing is ever rolled back: a failed create
// or activate leaves the tickets in the backlog (nil sprint id), and a failed
// attach never retroactively fails the created tickets.
func (s *SprintService) SendSprint(ctx context.Context, name string, tasks []models.Task) *models.SprintResult {
	var sprintID *int

	now := time.Now()
	id, err := s.tracker.CreateSprint(ctx, name, s.boardID, now, now.Add(sprintLength))
	if err != nil {
		s.logger.Warn("sprint creation failed, tickets will go to the backlog", "error", err)
	} else {
		// Give the tracker time to index the new sprint before activating it.
		select {
		case <-time.After(s.startDelay):
		case <-ctx.Done():
		}

		if err := s.tracker.StartSprint(ctx, id); err != nil {
			s.logger.Warn("sprint activation failed, tickets will stay unattached", "sprint", id, "error", err)
		} else {
			sprintID = &id
		}
	}

	outcomes := s.dispatcher.DispatchTasks(ctx, tasks)

	result := &models.SprintResult{SprintID: sprintID, Outcomes: outcomes}
	if sprintID != nil {
		if keys := result.CreatedKeys(); len(keys) > 0 {
			if err := s.tracker.MoveIssuesToSprint(ctx, *sprintID, keys); err != nil {
				s.logger.Error("attaching issues to sprint failed, tickets remain in the backlog",
					"sprint", *sprintID, "issues", len(keys), "error", err)
			}
		}
	}
	return result
}

type taskPayload struct {
	Description string `json:"description"`
	USID        string `json:"us_id"`
	USTitle     string `json:"us_title"`
	Estimate    int    `json:"estimate"`
}

// parseTasks decodes the oracle's task breakdown. A missing "tasks" key or
// undecodable payload is a parse error; the caller falls back instead of
// surfacing it.
func parseTasks(raw string) ([]models.Task, error) {
	payload := parser.ExtractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object in task breakdown")
	}

	var body struct {
		Tasks *[]taskPayload `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return nil, fmt.Errorf("failed to decode task breakdown: %w", err)
	}
	if body.Tasks == nil {
		return nil, fmt.Errorf("task breakdown is missing the \"tasks\" list")
	}

	tasks := make([]models.Task, 0, len(*body.Tasks))
	for _, t := range *body.Tasks {
		tasks = append(tasks, models.Task{
			Description: t.Description,
			USID:        t.USID,
			USTitle:     t.USTitle,
			Estimate:    t.Estimate,
		})
	}
	return tasks, nil
}

// fallbackDecompose deterministically emits one task per acceptance criterion
// with estimate = max(1, requirement estimate / criteria count).
func fallbackDecompose(stories []models.Requirement) []models.Task {
	var tasks []models.Task
	for _, us := range stories {
		count := len(us.AcceptanceCriteria)
		if count == 0 {
			continue
		}
		estimate := us.Estimate / count
		if estimate < 1 {
			estimate = 1
		}
		for _, criterion := range us.AcceptanceCriteria {
			tasks = append(tasks, models.Task{
				Description: fmt.Sprintf("%s (implementação da US %s)", criterion, us.ID),
				USID:        us.ID,
				USTitle:     us.Title,
				Estimate:    estimate,
			})
		}
	}
	return tasks
}

// renumberTasks assigns sequential T-00N identifiers, unique within the
// batch regardless of which path produced the tasks.
func renumberTasks(tasks []models.Task) []models.Task {
	for i := range tasks {
		tasks[i].ID = fmt.Sprintf("T-%03d", i+1)
	}
	return tasks
}
