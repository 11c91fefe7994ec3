// Package parser turns raw generation-model output into discrete requirement
// records. Two strategies exist behind one interface: MarkerParser splits
// loosely delimited free text on the recurring "Como um" phrase, and
// StructuredParser decodes a JSON payload with a "user_stories" list. The
// strategy is selected once by configuration, never by fallback chains.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"requirements-assistant/internal/models"
)

// Marker phrases recognized in generated text.
const (
	// UnitMarker introduces each requirement unit in marker-delimited output.
	UnitMarker = "Como um"
	// canonicalMarker is the normalized form every parsed unit starts with.
	canonicalMarker = "**Como um:**"

	titleFallbackPrefix = "Req: "
	titlePlaceholder    = "Requisito sem título"
	maxTitleLen         = 120
)

// Parse strategy names, as accepted by New.
const (
	ModeMarker = "marker"
	ModeJSON   = "json"
)

// ErrMalformedOutput reports generation output that cannot be decoded as the
// expected structured shape.
var ErrMalformedOutput = errors.New("generation output is not in the expected structure")

// Parser extracts requirement records from a generation-model response.
type Parser interface {
	Parse(text string) ([]models.Requirement, error)
}

// New returns the parser for the given strategy name.
func New(mode string) (Parser, error) {
	switch mode {
	case ModeMarker:
		return &MarkerParser{}, nil
	case ModeJSON:
		return &StructuredParser{}, nil
	default:
		return nil, fmt.Errorf("unknown parser mode %q", mode)
	}
}

var (
	// markerPattern matches the unit marker with the emphasis and punctuation
	// variants models actually produce: "**Como um:**", "Como um:", "Como um -",
	// "*Como um*".
	markerPattern = regexp.MustCompile(`(?i)\*{0,2}[ \t]*Como um[:\-\*]*[ \t]*`)
	// goalPattern locates the "Eu quero" sub-marker used for title extraction.
	goalPattern = regexp.MustCompile(`(?i)Eu quero[:\s\-]*\**[ \t]*(.+)`)
	// blankLinesPattern collapses runs of blank lines left by the model.
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
)

// Normalize makes generation output safe to split: line endings become "\n",
// surrounding whitespace is trimmed and 3+ consecutive blank lines collapse
// into one.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)
	return blankLinesPattern.ReplaceAllString(text, "\n\n")
}

// MarkerParser splits free text into requirement units on the recurring
// "Como um" marker, tolerating the formatting drift of generated text.
type MarkerParser struct{}

// Parse returns one requirement per marker occurrence, each starting with the
// canonical "**Como um:**" form. Zero markers yield an empty result, which
// callers must treat as "nothing recognized". When markers exist, text before
// the first one becomes an unlabeled first unit: validation rejects it later
// rather than losing the text silently.
func (p *MarkerParser) Parse(text string) ([]models.Requirement, error) {
	text = Normalize(text)
	if text == "" {
		return nil, nil
	}

	standardized := markerPattern.ReplaceAllString(text, "\n\n"+canonicalMarker+" ")

	parts := strings.Split(standardized, canonicalMarker)
	if len(parts) == 1 {
		return nil, nil
	}
	var units []string
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if i == 0 {
			if part != "" {
				units = append(units, part)
			}
			continue
		}
		units = append(units, canonicalMarker+" "+part)
	}

	reqs := make([]models.Requirement, 0, len(units))
	for i, unit := range units {
		reqs = append(reqs, models.Requirement{
			ID:    fmt.Sprintf("US-%03d", i+1),
			Title: ExtractTitle(unit),
			Raw:   unit,
		})
	}
	return reqs, nil
}

// ExtractTitle derives a short title for a requirement unit: the text after
// the "Eu quero" sub-marker up to the line break, else the first non-empty
// line prefixed to signal a fallback, else a fixed placeholder. Titles are
// capped at 120 characters.
func ExtractTitle(text string) string {
	if m := goalPattern.FindStringSubmatch(text); m != nil {
		return truncate(strings.TrimSpace(m[1]), maxTitleLen)
	}
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return truncate(titleFallbackPrefix+line, maxTitleLen)
		}
	}
	return titlePlaceholder
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// StructuredParser decodes a JSON payload with a top-level "user_stories"
// list, one element per requirement.
type StructuredParser struct{}

type storyPayload struct {
	ID                 string           `json:"id"`
	Title              string           `json:"title"`
	Story              models.UserStory `json:"story"`
	AcceptanceCriteria []string         `json:"acceptance_criteria"`
	Priority           string           `json:"priority"`
	Estimate           int              `json:"estimate"`
}

// Parse decodes the payload, failing with ErrMalformedOutput when it is not
// valid JSON or the "user_stories" key is absent. Missing sub-fields on an
// element default to empty/zero; they never fail the whole batch.
func (p *StructuredParser) Parse(text string) ([]models.Requirement, error) {
	payload := ExtractJSON(text)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedOutput)
	}

	var body struct {
		UserStories *[]storyPayload `json:"user_stories"`
	}
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if body.UserStories == nil {
		return nil, fmt.Errorf("%w: missing \"user_stories\" list", ErrMalformedOutput)
	}

	reqs := make([]models.Requirement, 0, len(*body.UserStories))
	for i, s := range *body.UserStories {
		req := models.Requirement{
			ID:                 s.ID,
			Title:              s.Title,
			Story:              s.Story,
			AcceptanceCriteria: s.AcceptanceCriteria,
			Priority:           s.Priority,
			Estimate:           s.Estimate,
		}
		if req.ID == "" {
			req.ID = fmt.Sprintf("US-%03d", i+1)
		}
		if req.Title == "" {
			if s.Story.Goal != "" {
				req.Title = truncate(s.Story.Goal, maxTitleLen)
			} else {
				req.Title = titlePlaceholder
			}
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// ExtractJSON pulls a JSON object out of a generation response, stripping
// markdown code fences and any surrounding prose.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		return text
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
