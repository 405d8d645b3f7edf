// Package githubapi adapts the go-github REST client to the calls the
// deployment status bot makes.
package githubapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"deplostatus/internal/preview"

	"github.com/google/go-github/v57/github"
)

const (
	// PerPage is the page size for paginated list calls (GitHub maximum)
	PerPage = 100

	// MaxLogBytes caps how much of a job log is read
	MaxLogBytes = 64 << 20

	logDownloadTimeout = 60 * time.Second
	logMaxRedirects    = 3
)

// Client implements preview.GitHub on top of go-github
type Client struct {
	gh       *github.Client
	download *http.Client
}

var _ preview.GitHub = (*Client)(nil)

// New wraps an authenticated go-github client
func New(gh *github.Client) *Client {
	return &Client{
		gh:       gh,
		download: &http.Client{Timeout: logDownloadTimeout},
	}
}

// NewGitHubClient builds a go-github client over httpClient. A non-empty
// apiURL points it at a GitHub Enterprise Server instance.
func NewGitHubClient(httpClient *http.Client, apiURL string) (*github.Client, error) {
	gh := github.NewClient(httpClient)
	if apiURL == "" {
		return gh, nil
	}

	gh, err := gh.WithEnterpriseURLs(apiURL, apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL %q: %w", apiURL, err)
	}
	return gh, nil
}

// ListComments returns every comment on an issue or pull request, oldest first
func (c *Client) ListComments(ctx context.Context, owner, repo string, number int) ([]preview.Comment, error) {
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: PerPage},
	}

	var out []preview.Comment
	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing comments: %w", err)
		}

		for _, comment := range comments {
			out = append(out, preview.Comment{
				ID:     comment.GetID(),
				Author: comment.GetUser().GetLogin(),
				Body:   comment.GetBody(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return out, nil
}

// ListJobs returns the jobs of the latest attempt of a workflow run
func (c *Client) ListJobs(ctx context.Context, owner, repo string, runID int64) ([]preview.Job, error) {
	opts := &github.ListWorkflowJobsOptions{
		Filter:      "latest",
		ListOptions: github.ListOptions{PerPage: PerPage},
	}

	var out []preview.Job
	for {
		jobs, resp, err := c.gh.Actions.ListWorkflowJobs(ctx, owner, repo, runID, opts)
		if err != nil {
			return nil, fmt.Errorf("listing workflow jobs: %w", err)
		}

		for _, job := range jobs.Jobs {
			out = append(out, preview.Job{
				ID:         job.GetID(),
				Name:       job.GetName(),
				Conclusion: job.GetConclusion(),
				HTMLURL:    job.GetHTMLURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return out, nil
}

// JobLogs resolves the job's log download URL and fetches the plain text log
func (c *Client) JobLogs(ctx context.Context, owner, repo string, jobID int64) (string, error) {
	logURL, _, err := c.gh.Actions.GetWorkflowJobLogs(ctx, owner, repo, jobID, logMaxRedirects)
	if err != nil {
		return "", fmt.Errorf("resolving job log URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, logURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("building log request: %w", err)
	}

	resp, err := c.download.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading job log: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading job log: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxLogBytes))
	if err != nil {
		return "", fmt.Errorf("reading job log: %w", err)
	}

	return string(data), nil
}

// CreateComment posts a new comment and returns its id
func (c *Client) CreateComment(ctx context.Context, owner, repo string, number int, body string) (int64, error) {
	comment, _, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return 0, fmt.Errorf("creating comment: %w", err)
	}
	return comment.GetID(), nil
}

// UpdateComment replaces the body of an existing comment
func (c *Client) UpdateComment(ctx context.Context, owner, repo string, commentID int64, body string) error {
	_, _, err := c.gh.Issues.EditComment(ctx, owner, repo, commentID, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return fmt.Errorf("updating comment: %w", err)
	}
	return nil
}
