package preview

import (
	"context"
	"fmt"
)

// IssuesActionOpened is the issues event action the greeter answers
const IssuesActionOpened = "opened"

// Greeter welcomes newly opened issues with a fixed comment. An empty
// Message disables it.
type Greeter struct {
	Message string
}

// Enabled reports whether a greeting is configured
func (g Greeter) Enabled() bool {
	return g.Message != ""
}

// Greet comments on the issue and returns the new comment id
func (g Greeter) Greet(ctx context.Context, gh GitHub, owner, repo string, number int) (int64, error) {
	id, err := gh.CreateComment(ctx, owner, repo, number, g.Message)
	if err != nil {
		return 0, fmt.Errorf("failed to greet %s/%s#%d: %w", owner, repo, number, err)
	}
	return id, nil
}
