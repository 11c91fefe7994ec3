package models

import "strings"

// Priority levels accepted for requirements.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// UserStory holds the three narrative fields of a user story.
type UserStory struct {
	Role   string `json:"role"`
	Goal   string `json:"goal"`
	Reason string `json:"reason"`
}

// Requirement represents one requirement unit: a persona-goal-reason narrative
// plus acceptance criteria. One requirement becomes one external ticket.
type Requirement struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Story              UserStory `json:"story"`
	AcceptanceCriteria []string  `json:"acceptance_criteria"`
	Priority           string    `json:"priority"`
	Estimate           int       `json:"estimate"`

	// Raw carries the original text block for marker-parsed units. Empty for
	// requirements decoded from structured generation output.
	Raw string `json:"raw,omitempty"`
}

// Text returns the textual form of the requirement: the raw parsed block when
// available, otherwise a canonical rendering of the structured fields.
func (r Requirement) Text() string {
	if r.Raw != "" {
		return r.Raw
	}

	var b strings.Builder
	b.WriteString("**Como um:** " + r.Story.Role + "\n")
	b.WriteString("**Eu quero:** " + r.Story.Goal + "\n")
	b.WriteString("**Para que:** " + r.Story.Reason + "\n")
	b.WriteString("**Critérios de Aceite:**\n")
	for _, c := range r.AcceptanceCriteria {
		b.WriteString("- " + c + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
