package preview

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"time"

	"deplostatus/internal/table"
)

var deployJobPattern = regexp.MustCompile(`^Deploy (\S+)`)

// LogFetcher downloads the raw log text of a job
type LogFetcher func(ctx context.Context, jobID int64) (string, error)

// Reconciler merges workflow job states into deployment table rows
type Reconciler struct {
	FetchLogs LogFetcher
	Now       func() time.Time
}

// AppName returns the application a deploy job belongs to
func AppName(jobName string) (string, bool) {
	match := deployJobPattern.FindStringSubmatch(jobName)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// Reconcile applies jobs, in order, on top of the existing rows.
//
// Jobs that are not deploy jobs or that were skipped are ignored. Rows are
// upserted by application name, so a name never appears twice; the last job
// for a name wins. Every touched row is stamped with the current time and the
// result is ordered most recently updated first. Existing is not modified.
//
// A non-successful job clears any preview links the row previously had.
func (r *Reconciler) Reconcile(ctx context.Context, existing []table.Row, jobs []Job) ([]table.Row, error) {
	rows := make([]table.Row, 0, len(existing))
	index := make(map[string]int, len(existing))
	for _, row := range existing {
		if _, dup := index[row.Name]; dup {
			continue
		}
		index[row.Name] = len(rows)
		rows = append(rows, row)
	}

	for _, job := range jobs {
		name, ok := AppName(job.Name)
		if !ok {
			continue
		}

		status := table.StatusFromConclusion(job.Conclusion)
		if status == table.StatusSkipped {
			continue
		}

		var links []string
		if status == table.StatusSuccessful {
			logs, err := r.FetchLogs(ctx, job.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to download logs for job %d (%s): %w", job.ID, job.Name, err)
			}
			links = table.ExtractPreviewLinks(logs)
		}

		jobURL := job.HTMLURL
		if jobURL == "" {
			jobURL = table.Placeholder
		}

		row := table.Row{
			Name:         name,
			Status:       status,
			JobURL:       jobURL,
			UpdatedAt:    r.now(),
			PreviewLinks: links,
		}

		if i, found := index[name]; found {
			rows[i] = row
		} else {
			index[name] = len(rows)
			rows = append(rows, row)
		}
	}

	slices.SortStableFunc(rows, func(a, b table.Row) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})

	return rows, nil
}

func (r *Reconciler) now() time.Time {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return now().UTC().Truncate(time.Millisecond)
}
