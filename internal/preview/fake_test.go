package preview

import (
	"context"
	"fmt"
	"sync"
)

// fakeGitHub is an in-memory GitHub for a single repository
type fakeGitHub struct {
	mu       sync.Mutex
	comments map[int][]Comment
	jobs     map[int64][]Job
	logs     map[int64]string
	nextID   int64

	listErr error
	jobsErr error
	logsErr error

	calls   []string
	created int
	updated int
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		comments: make(map[int][]Comment),
		jobs:     make(map[int64][]Job),
		logs:     make(map[int64]string),
		nextID:   1000,
	}
}

func (f *fakeGitHub) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeGitHub) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created + f.updated
}

func (f *fakeGitHub) ListComments(ctx context.Context, owner, repo string, number int) ([]Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("ListComments %s/%s#%d", owner, repo, number))
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]Comment(nil), f.comments[number]...), nil
}

func (f *fakeGitHub) ListJobs(ctx context.Context, owner, repo string, runID int64) ([]Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("ListJobs %d", runID))
	if f.jobsErr != nil {
		return nil, f.jobsErr
	}
	return f.jobs[runID], nil
}

func (f *fakeGitHub) JobLogs(ctx context.Context, owner, repo string, jobID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("JobLogs %d", jobID))
	if f.logsErr != nil {
		return "", f.logsErr
	}
	return f.logs[jobID], nil
}

func (f *fakeGitHub) CreateComment(ctx context.Context, owner, repo string, number int, body string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("CreateComment #%d", number))
	f.nextID++
	f.comments[number] = append(f.comments[number], Comment{ID: f.nextID, Author: testBot, Body: body})
	f.created++
	return f.nextID, nil
}

func (f *fakeGitHub) UpdateComment(ctx context.Context, owner, repo string, commentID int64, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("UpdateComment %d", commentID))
	for number, comments := range f.comments {
		for i := range comments {
			if comments[i].ID == commentID {
				f.comments[number][i].Body = body
				f.updated++
				return nil
			}
		}
	}
	return fmt.Errorf("comment %d not found", commentID)
}
