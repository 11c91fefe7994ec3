package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToJiraMarkup(t *testing.T) {
	md := "## Requisitos\n" +
		"**Como um:** gestor\n" +
		"1. primeiro passo\n" +
		"2. segundo passo\n" +
		"---\n" +
		"texto final"

	out := ToJiraMarkup(md)

	assert.Contains(t, out, "h2. Requisitos")
	assert.Contains(t, out, "*Como um:*")
	assert.Contains(t, out, "# primeiro passo")
	assert.Contains(t, out, "# segundo passo")
	assert.Contains(t, out, "----")
	assert.NotContains(t, out, "**")
	assert.NotContains(t, out, "##")
}

func TestToJiraMarkupEmpty(t *testing.T) {
	assert.Equal(t, "", ToJiraMarkup(""))
	assert.Equal(t, "texto simples", ToJiraMarkup("texto simples"))
}
