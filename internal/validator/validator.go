// Package validator applies the structural checks every requirement unit must
// pass before any ticket is created.
package validator

import (
	"strings"

	"requirements-assistant/internal/models"
)

// Marker phrases whose absence invalidates a marker-parsed unit. Matching is
// a case-insensitive substring check on the unit's raw text.
const (
	personaMarker    = "como um"
	criteriaSingular = "critério de aceite"
	criteriaPlural   = "critérios de aceite"
)

// minCriteria is the smallest acceptance-criteria count a structured
// requirement may carry.
const minCriteria = 2

// Rejection describes why one requirement failed validation. A unit can fail
// both checks at once.
type Rejection struct {
	Requirement     string `json:"requisito"`
	MissingPersona  bool   `json:"erro_como_um"`
	MissingCriteria bool   `json:"erro_criterios"`
}

// Partition splits a batch into valid and invalid requirements. Marker-parsed
// units (Raw set) are checked by marker substring; structured requirements are
// checked field by field, since their canonical rendering always carries the
// markers regardless of content. Approval is all-or-nothing at this boundary:
// when the invalid set is non-empty the caller must create no tickets for the
// batch and return the rejections for correction.
func Partition(reqs []models.Requirement) (valid []models.Requirement, invalid []Rejection) {
	for _, req := range reqs {
		var missingPersona, missingCriteria bool
		if req.Raw == "" {
			missingPersona = req.Story.Role == "" || req.Story.Goal == "" || req.Story.Reason == ""
			missingCriteria = len(req.AcceptanceCriteria) < minCriteria
		} else {
			text := strings.ToLower(req.Raw)
			missingPersona = !strings.Contains(text, personaMarker)
			missingCriteria = !strings.Contains(text, criteriaSingular) &&
				!strings.Contains(text, criteriaPlural)
		}

		if missingPersona || missingCriteria {
			invalid = append(invalid, Rejection{
				Requirement:     req.Text(),
				MissingPersona:  missingPersona,
				MissingCriteria: missingCriteria,
			})
			continue
		}
		valid = append(valid, req)
	}
	return valid, invalid
}
