package security

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	ownerPattern    = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,38})$`)
	repoPattern     = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,100}$`)
	workflowPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+\.ya?ml$`)
)

// ValidateOwner ensures a GitHub user or organization name is well formed
func ValidateOwner(owner string) error {
	if owner == "" {
		return fmt.Errorf("owner cannot be empty")
	}
	if !ownerPattern.MatchString(owner) {
		return fmt.Errorf("owner %q contains invalid characters", owner)
	}
	return nil
}

// ValidateRepoName ensures a repository name is safe for use in API paths
func ValidateRepoName(repo string) error {
	if repo == "" {
		return fmt.Errorf("repository name cannot be empty")
	}
	if repo == "." || repo == ".." {
		return fmt.Errorf("repository name cannot be %q", repo)
	}
	if !repoPattern.MatchString(repo) {
		return fmt.Errorf("repository name %q contains invalid characters", repo)
	}
	return nil
}

// SplitFullName validates "owner/name" and returns its parts
func SplitFullName(fullName string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok {
		return "", "", fmt.Errorf("repository must be in owner/name form, got %q", fullName)
	}
	if err := ValidateOwner(owner); err != nil {
		return "", "", err
	}
	if err := ValidateRepoName(repo); err != nil {
		return "", "", err
	}
	return owner, repo, nil
}

// ValidateWorkflowFile ensures the workflow file is a bare YAML filename,
// not a path
func ValidateWorkflowFile(name string) error {
	if name == "" {
		return fmt.Errorf("workflow file cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("workflow file must be a bare filename, got %q", name)
	}
	if !workflowPattern.MatchString(name) {
		return fmt.Errorf("workflow file must be a .yml or .yaml file, got %q", name)
	}
	return nil
}

// ValidateWebhookURL ensures a webhook target is an absolute HTTPS URL
func ValidateWebhookURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("webhook URL must be an absolute https URL, got %q", rawURL)
	}
	return nil
}
