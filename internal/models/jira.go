package models

// JiraIssue represents a JIRA issue creation payload
type JiraIssue struct {
	Fields JiraFields `json:"fields"`
}

// JiraFields represents JIRA issue fields
type JiraFields struct {
	Project     JiraProject   `json:"project"`
	Summary     string        `json:"summary"`
	Description string        `json:"description"`
	IssueType   JiraIssueType `json:"issuetype"`
}

// JiraProject represents a JIRA project
type JiraProject struct {
	Key string `json:"key"`
}

// JiraIssueType represents a JIRA issue type
type JiraIssueType struct {
	Name string `json:"name"`
}

// JiraResponse represents a JIRA issue creation response
type JiraResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// JiraProjectInfo represents JIRA project information
type JiraProjectInfo struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// JiraSprintRequest represents a JIRA agile sprint creation payload
type JiraSprintRequest struct {
	Name          string `json:"name"`
	OriginBoardID int    `json:"originBoardId"`
	StartDate     string `json:"startDate,omitempty"`
	EndDate       string `json:"endDate,omitempty"`
}

// JiraSprint represents a JIRA agile sprint
type JiraSprint struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// JiraSprintIssues represents the payload for attaching issues to a sprint
type JiraSprintIssues struct {
	Issues []string `json:"issues"`
}
