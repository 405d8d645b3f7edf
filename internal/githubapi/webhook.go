package githubapi

import (
	"context"
	"fmt"

	"deplostatus/internal/preview"

	"github.com/google/go-github/v57/github"
)

// WorkflowRunEvent converts a decoded workflow_run delivery
func WorkflowRunEvent(ev *github.WorkflowRunEvent) preview.Event {
	run := ev.GetWorkflowRun()

	var pulls []int
	if run != nil {
		for _, pr := range run.PullRequests {
			pulls = append(pulls, pr.GetNumber())
		}
	}

	return preview.Event{
		Action:         ev.GetAction(),
		Owner:          ev.GetRepo().GetOwner().GetLogin(),
		Repo:           ev.GetRepo().GetName(),
		RunID:          run.GetID(),
		WorkflowPath:   ev.GetWorkflow().GetPath(),
		PullRequests:   pulls,
		InstallationID: ev.GetInstallation().GetID(),
	}
}

// EnsureWebhook registers url as a workflow_run (and issues) webhook on the
// repository unless a hook with that URL already exists. Reports whether a
// hook was created.
func EnsureWebhook(ctx context.Context, gh *github.Client, owner, repo, url, secret string) (bool, error) {
	opts := &github.ListOptions{PerPage: PerPage}
	for {
		hooks, resp, err := gh.Repositories.ListHooks(ctx, owner, repo, opts)
		if err != nil {
			return false, fmt.Errorf("listing webhooks: %w", err)
		}

		for _, hook := range hooks {
			if hook.Config == nil {
				continue
			}
			if existing, ok := hook.Config["url"].(string); ok && existing == url {
				return false, nil
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	hookConfig := map[string]interface{}{
		"url":          url,
		"content_type": "json",
		"secret":       secret,
		"insecure_ssl": "0",
	}

	active := true
	_, _, err := gh.Repositories.CreateHook(ctx, owner, repo, &github.Hook{
		Events: []string{"workflow_run", "issues"},
		Active: &active,
		Config: hookConfig,
	})
	if err != nil {
		return false, fmt.Errorf("creating webhook: %w", err)
	}

	return true, nil
}
