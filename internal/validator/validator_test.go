package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"requirements-assistant/internal/models"
)

func req(raw string) models.Requirement {
	return models.Requirement{ID: "US-001", Raw: raw}
}

func TestPartitionValid(t *testing.T) {
	reqs := []models.Requirement{
		req("**Como um:** gestor\n**Eu quero:** relatório\n**Critérios de Aceite:**\n- A\n- B"),
		req("Como um operador eu quero alertas.\nCritério de aceite: alerta em até 1 minuto."),
	}

	valid, invalid := Partition(reqs)
	assert.Len(t, valid, 2)
	assert.Empty(t, invalid)
}

func TestPartitionMissingPersona(t *testing.T) {
	reqs := []models.Requirement{
		req("Eu quero um relatório.\nCritérios de aceite:\n- exportável em PDF"),
	}

	valid, invalid := Partition(reqs)
	assert.Empty(t, valid)
	require.Len(t, invalid, 1)
	assert.True(t, invalid[0].MissingPersona)
	assert.False(t, invalid[0].MissingCriteria)
	assert.Contains(t, invalid[0].Requirement, "relatório")
}

func TestPartitionMissingCriteria(t *testing.T) {
	reqs := []models.Requirement{
		req("**Como um:** cliente\n**Eu quero:** acompanhar pedidos"),
	}

	valid, invalid := Partition(reqs)
	assert.Empty(t, valid)
	require.Len(t, invalid, 1)
	assert.False(t, invalid[0].MissingPersona)
	assert.True(t, invalid[0].MissingCriteria)
}

func TestPartitionBothMissing(t *testing.T) {
	valid, invalid := Partition([]models.Requirement{req("texto solto sem estrutura")})
	assert.Empty(t, valid)
	require.Len(t, invalid, 1)
	assert.True(t, invalid[0].MissingPersona)
	assert.True(t, invalid[0].MissingCriteria)
}

func TestPartitionMixedBatch(t *testing.T) {
	reqs := []models.Requirement{
		req("**Como um:** admin\n**Eu quero:** auditoria\n**Critérios de Aceite:**\n- trilha completa"),
		req("**Como um:** visitante\n**Eu quero:** navegar sem login"),
	}

	valid, invalid := Partition(reqs)
	assert.Len(t, valid, 1)
	assert.Len(t, invalid, 1)
	assert.Equal(t, "US-001", valid[0].ID)
}

func TestPartitionStructuredValid(t *testing.T) {
	reqs := []models.Requirement{{
		ID:    "US-007",
		Title: "Exportação",
		Story: models.UserStory{
			Role:   "analista",
			Goal:   "exportar a base",
			Reason: "análise externa",
		},
		AcceptanceCriteria: []string{"formato CSV", "separador configurável"},
	}}

	valid, invalid := Partition(reqs)
	assert.Len(t, valid, 1)
	assert.Empty(t, invalid)
}

func TestPartitionStructuredEmptyRecord(t *testing.T) {
	valid, invalid := Partition([]models.Requirement{{ID: "US-001", Title: "vazio"}})

	assert.Empty(t, valid)
	require.Len(t, invalid, 1)
	assert.True(t, invalid[0].MissingPersona)
	assert.True(t, invalid[0].MissingCriteria)
}

func TestPartitionStructuredIncompleteStory(t *testing.T) {
	reqs := []models.Requirement{{
		ID:                 "US-002",
		Title:              "sem motivo",
		Story:              models.UserStory{Role: "analista", Goal: "exportar a base"},
		AcceptanceCriteria: []string{"formato CSV", "separador configurável"},
	}}

	valid, invalid := Partition(reqs)
	assert.Empty(t, valid)
	require.Len(t, invalid, 1)
	assert.True(t, invalid[0].MissingPersona)
	assert.False(t, invalid[0].MissingCriteria)
}

func TestPartitionStructuredTooFewCriteria(t *testing.T) {
	reqs := []models.Requirement{{
		ID:                 "US-003",
		Title:              "critério único",
		Story:              models.UserStory{Role: "analista", Goal: "exportar", Reason: "auditoria"},
		AcceptanceCriteria: []string{"formato CSV"},
	}}

	valid, invalid := Partition(reqs)
	assert.Empty(t, valid)
	require.Len(t, invalid, 1)
	assert.False(t, invalid[0].MissingPersona)
	assert.True(t, invalid[0].MissingCriteria)
}
