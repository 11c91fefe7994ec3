package services

import (
	"regexp"
	"strings"
)

// Markdown-to-Jira-wiki-markup conversions for ticket descriptions.
var (
	headingPattern  = regexp.MustCompile(`(?m)^\s*##\s*(.*)$`)
	boldPattern     = regexp.MustCompile(`\*\*(.*?)\*\*`)
	numberedPattern = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	rulePattern     = regexp.MustCompile(`(?m)^\s*---\s*$`)
)

// ToJiraMarkup translates the simple markdown the generation model produces
// into Jira wiki markup.
func ToJiraMarkup(md string) string {
	if md == "" {
		return ""
	}

	out := md
	out = headingPattern.ReplaceAllString(out, "h2. $1")
	out = boldPattern.ReplaceAllString(out, "*$1*")
	out = numberedPattern.ReplaceAllString(out, "# ")
	out = rulePattern.ReplaceAllString(out, "----")
	return strings.TrimSpace(out)
}
