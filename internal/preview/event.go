package preview

import (
	"path"
	"strings"
)

const (
	ActionInProgress = "in_progress"
	ActionCompleted  = "completed"

	DefaultWorkflowFile = "cd.yml"
)

// Event is the part of a workflow_run delivery the bot acts on
type Event struct {
	Action         string
	Owner          string
	Repo           string
	RunID          int64
	WorkflowPath   string // e.g. .github/workflows/cd.yml
	PullRequests   []int
	InstallationID int64
}

// FullName returns owner/repo
func (e Event) FullName() string {
	return e.Owner + "/" + e.Repo
}

// Filter decides whether an event belongs to the deployment workflow
type Filter struct {
	WorkflowFile string
}

// Match reports the pull request the event should update. Events for other
// workflow files, other actions or runs without a linked pull request are
// not matched; that is an expected outcome, not an error.
func (f Filter) Match(ev Event) (int, bool) {
	if ev.Action != ActionInProgress && ev.Action != ActionCompleted {
		return 0, false
	}

	if len(ev.PullRequests) == 0 || ev.PullRequests[0] <= 0 {
		return 0, false
	}

	workflowFile := f.WorkflowFile
	if workflowFile == "" {
		workflowFile = DefaultWorkflowFile
	}
	if path.Base(strings.TrimSpace(ev.WorkflowPath)) != workflowFile {
		return 0, false
	}

	return ev.PullRequests[0], true
}
