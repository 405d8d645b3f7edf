package preview

import "context"

// Comment is an issue comment on a pull request
type Comment struct {
	ID     int64
	Author string
	Body   string
}

// Job is a workflow run job as listed by the Actions API
type Job struct {
	ID         int64
	Name       string
	Conclusion string // empty while the job is queued or running
	HTMLURL    string
}

// GitHub is the subset of the REST API the processor needs. All calls are
// scoped to one repository.
type GitHub interface {
	// ListComments returns every comment on the pull request, oldest first
	ListComments(ctx context.Context, owner, repo string, number int) ([]Comment, error)
	ListJobs(ctx context.Context, owner, repo string, runID int64) ([]Job, error)
	// JobLogs returns the raw log text of a job
	JobLogs(ctx context.Context, owner, repo string, jobID int64) (string, error)
	CreateComment(ctx context.Context, owner, repo string, number int, body string) (int64, error)
	UpdateComment(ctx context.Context, owner, repo string, commentID int64, body string) error
}
