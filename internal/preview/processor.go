package preview

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"deplostatus/internal/table"
)

// Outcome summarizes what a delivery did to the pull request
type Outcome string

const (
	OutcomeIgnored Outcome = "ignored" // filtered out, no API calls made
	OutcomeNoRows  Outcome = "no_rows" // no table yet and nothing to show
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
)

// Result is returned by Processor.Handle
type Result struct {
	Outcome   Outcome
	PRNumber  int
	CommentID int64
	Rows      int
}

// Options configures a Processor
type Options struct {
	BotLogin     string
	WorkflowFile string
}

// Processor keeps the deployment table comment of a pull request in sync
// with the jobs of the deployment workflow run.
type Processor struct {
	Options Options
	Logger  *slog.Logger
	Locks   *LockManager
	Now     func() time.Time
}

// NewProcessor creates a processor
func NewProcessor(opts Options, logger *slog.Logger) *Processor {
	if opts.WorkflowFile == "" {
		opts.WorkflowFile = DefaultWorkflowFile
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		Options: opts,
		Logger:  logger,
		Locks:   NewLockManager(),
		Now:     time.Now,
	}
}

// Match reports the pull request ev would update, without any API calls
func (p *Processor) Match(ev Event) (int, bool) {
	return Filter{WorkflowFile: p.Options.WorkflowFile}.Match(ev)
}

// Handle processes one workflow_run event against gh.
//
// Malformed existing tables are reported as errors wrapping
// table.ErrMalformedTable or table.ErrUnknownStatus and nothing is written.
// API errors are returned unchanged apart from added context; the comment is
// only written once every job has been reconciled.
func (p *Processor) Handle(ctx context.Context, gh GitHub, ev Event) (Result, error) {
	number, ok := p.Match(ev)
	if !ok {
		p.Logger.Debug("Ignoring workflow run",
			"repo", ev.FullName(), "run_id", ev.RunID, "action", ev.Action, "path", ev.WorkflowPath)
		return Result{Outcome: OutcomeIgnored}, nil
	}

	unlock := p.Locks.Lock(fmt.Sprintf("%s#%d", ev.FullName(), number))
	defer unlock()

	result := Result{PRNumber: number}

	comments, err := gh.ListComments(ctx, ev.Owner, ev.Repo, number)
	if err != nil {
		return result, fmt.Errorf("failed to list comments on %s#%d: %w", ev.FullName(), number, err)
	}

	var existing []table.Row
	botComment, found := FindBotComment(comments, p.Options.BotLogin)
	if found {
		existing, err = table.Parse(botComment.Body)
		if err != nil {
			return result, fmt.Errorf("comment %d on %s#%d: %w", botComment.ID, ev.FullName(), number, err)
		}
	}

	jobs, err := gh.ListJobs(ctx, ev.Owner, ev.Repo, ev.RunID)
	if err != nil {
		return result, fmt.Errorf("failed to list jobs for run %d: %w", ev.RunID, err)
	}

	reconciler := &Reconciler{
		FetchLogs: func(ctx context.Context, jobID int64) (string, error) {
			return gh.JobLogs(ctx, ev.Owner, ev.Repo, jobID)
		},
		Now: p.Now,
	}
	rows, err := reconciler.Reconcile(ctx, existing, jobs)
	if err != nil {
		return result, err
	}
	result.Rows = len(rows)

	if found {
		body := table.Render(rows)
		if err := gh.UpdateComment(ctx, ev.Owner, ev.Repo, botComment.ID, body); err != nil {
			return result, fmt.Errorf("failed to update comment %d: %w", botComment.ID, err)
		}
		result.Outcome = OutcomeUpdated
		result.CommentID = botComment.ID
		p.Logger.Info("Updated deployment table",
			"repo", ev.FullName(), "pr", number, "comment_id", botComment.ID, "rows", len(rows))
		return result, nil
	}

	if len(rows) == 0 {
		result.Outcome = OutcomeNoRows
		p.Logger.Debug("No deploy jobs to report", "repo", ev.FullName(), "pr", number, "run_id", ev.RunID)
		return result, nil
	}

	id, err := gh.CreateComment(ctx, ev.Owner, ev.Repo, number, table.Render(rows))
	if err != nil {
		return result, fmt.Errorf("failed to create comment on %s#%d: %w", ev.FullName(), number, err)
	}
	result.Outcome = OutcomeCreated
	result.CommentID = id
	p.Logger.Info("Created deployment table",
		"repo", ev.FullName(), "pr", number, "comment_id", id, "rows", len(rows))

	return result, nil
}
