package models

// Task is one technical task decomposed from a user story.
type Task struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	USID        string `json:"us_id"`
	USTitle     string `json:"us_title"`
	Estimate    int    `json:"estimate"`
}

// SprintPlan is a named set of technical tasks ready to be sent to the tracker.
type SprintPlan struct {
	SprintName string `json:"sprint_name"`
	Tasks      []Task `json:"tasks"`
}

// TicketOutcome records the result of one ticket-creation attempt. A ticket
// either got an external key or an error, never both.
type TicketOutcome struct {
	SourceID string `json:"source_id"`
	Key      string `json:"key,omitempty"`
	Title    string `json:"title"`
	Error    string `json:"error,omitempty"`
}

// Succeeded reports whether the attempt produced an external ticket.
func (o TicketOutcome) Succeeded() bool {
	return o.Key != ""
}

// CountOutcomes derives success/failure totals from an outcome list. Counts
// are always derived here rather than tallied separately, so they cannot
// drift from the list itself.
func CountOutcomes(outcomes []TicketOutcome) (succeeded, failed int) {
	for _, o := range outcomes {
		if o.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// SprintResult is the final output of a send-sprint run. SprintID is nil when
// the sprint container could not be created or activated and the tickets were
// left in the backlog.
type SprintResult struct {
	SprintID *int            `json:"sprint_id"`
	Outcomes []TicketOutcome `json:"outcomes"`
}

// CreatedKeys returns the external keys of all successfully created tickets.
func (r SprintResult) CreatedKeys() []string {
	var keys []string
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			keys = append(keys, o.Key)
		}
	}
	return keys
}
