package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequirementText(t *testing.T) {
	raw := Requirement{Raw: "**Como um:** cliente\n**Eu quero:** pedidos"}
	assert.Equal(t, "**Como um:** cliente\n**Eu quero:** pedidos", raw.Text())

	structured := Requirement{
		Story:              UserStory{Role: "gestor", Goal: "relatório", Reason: "decidir"},
		AcceptanceCriteria: []string{"dados do mês", "exportável"},
	}
	text := structured.Text()
	assert.Contains(t, text, "**Como um:** gestor")
	assert.Contains(t, text, "**Eu quero:** relatório")
	assert.Contains(t, text, "**Para que:** decidir")
	assert.Contains(t, text, "**Critérios de Aceite:**")
	assert.Contains(t, text, "- exportável")
}

func TestCountOutcomes(t *testing.T) {
	outcomes := []TicketOutcome{
		{SourceID: "US-001", Key: "PROJ-1"},
		{SourceID: "US-002", Error: "boom"},
		{SourceID: "US-003", Key: "PROJ-2"},
	}

	succeeded, failed := CountOutcomes(outcomes)
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, failed)
}

func TestSprintResultCreatedKeys(t *testing.T) {
	result := SprintResult{Outcomes: []TicketOutcome{
		{SourceID: "T-001", Key: "PROJ-1"},
		{SourceID: "T-002", Error: "boom"},
		{SourceID: "T-003", Key: "PROJ-3"},
	}}
	assert.Equal(t, []string{"PROJ-1", "PROJ-3"}, result.CreatedKeys())

	empty := SprintResult{}
	assert.Empty(t, empty.CreatedKeys())
}
