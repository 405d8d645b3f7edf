package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/go-github/v57/github"
)

const (
	testSecret = "kJ8mN2pQ5tR7vX1zB4cE6gH9jL3nP8qS"
	testBot    = "deploy-status[bot]"
)

// makeTestSignature generates an HMAC-SHA256 signature for testing
func makeTestSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

type fakeComment struct {
	ID     int64  `json:"id"`
	Body   string `json:"body"`
	Author string `json:"-"`
}

type fakeJob struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Conclusion string `json:"conclusion,omitempty"`
	HTMLURL    string `json:"html_url,omitempty"`
}

// fakeAPI is a stateful GitHub REST API for one repository
type fakeAPI struct {
	mu       sync.Mutex
	srv      *httptest.Server
	comments map[int][]fakeComment
	jobs     map[int64][]fakeJob
	logs     map[int64]string
	nextID   int64

	jobsStatus int           // non-zero fails ListJobs with this status
	jobsDelay  time.Duration // ListJobs stalls this long unless the client gives up

	requests []string
	created  int
	updated  int
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()

	api := &fakeAPI{
		comments: make(map[int][]fakeComment),
		jobs:     make(map[int64][]fakeJob),
		logs:     make(map[int64]string),
		nextID:   500,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/acme/shop/issues/{number}/comments", api.listComments)
	mux.HandleFunc("POST /api/v3/repos/acme/shop/issues/{number}/comments", api.createComment)
	mux.HandleFunc("PATCH /api/v3/repos/acme/shop/issues/comments/{id}", api.updateComment)
	mux.HandleFunc("GET /api/v3/repos/acme/shop/actions/runs/{run}/jobs", api.listJobs)
	mux.HandleFunc("GET /api/v3/repos/acme/shop/actions/jobs/{job}/logs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, api.srv.URL+"/blob/"+r.PathValue("job"), http.StatusFound)
	})
	mux.HandleFunc("GET /blob/{job}", api.jobLog)

	api.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.requests = append(api.requests, r.Method+" "+r.URL.Path)
		api.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(api.srv.Close)

	return api
}

func (api *fakeAPI) client(t *testing.T) *github.Client {
	t.Helper()
	gh, err := github.NewClient(nil).WithEnterpriseURLs(api.srv.URL+"/api/v3/", api.srv.URL+"/api/v3/")
	if err != nil {
		t.Fatalf("Failed to create GitHub client: %v", err)
	}
	return gh
}

func (api *fakeAPI) seedComment(number int, author, body string) int64 {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.nextID++
	api.comments[number] = append(api.comments[number], fakeComment{ID: api.nextID, Author: author, Body: body})
	return api.nextID
}

func (api *fakeAPI) requestCount() int {
	api.mu.Lock()
	defer api.mu.Unlock()
	return len(api.requests)
}

func (api *fakeAPI) listComments(w http.ResponseWriter, r *http.Request) {
	number, _ := strconv.Atoi(r.PathValue("number"))

	api.mu.Lock()
	defer api.mu.Unlock()

	out := []map[string]interface{}{}
	for _, c := range api.comments[number] {
		out = append(out, map[string]interface{}{
			"id":   c.ID,
			"body": c.Body,
			"user": map[string]string{"login": c.Author},
		})
	}
	json.NewEncoder(w).Encode(out)
}

func (api *fakeAPI) createComment(w http.ResponseWriter, r *http.Request) {
	number, _ := strconv.Atoi(r.PathValue("number"))

	var req fakeComment
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	api.mu.Lock()
	api.nextID++
	c := fakeComment{ID: api.nextID, Author: testBot, Body: req.Body}
	api.comments[number] = append(api.comments[number], c)
	api.created++
	api.mu.Unlock()

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(c)
}

func (api *fakeAPI) updateComment(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	var req fakeComment
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	for number, comments := range api.comments {
		for i := range comments {
			if comments[i].ID == id {
				api.comments[number][i].Body = req.Body
				api.updated++
				json.NewEncoder(w).Encode(api.comments[number][i])
				return
			}
		}
	}
	http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
}

func (api *fakeAPI) listJobs(w http.ResponseWriter, r *http.Request) {
	run, _ := strconv.ParseInt(r.PathValue("run"), 10, 64)

	api.mu.Lock()
	delay := api.jobsDelay
	api.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	api.mu.Lock()
	defer api.mu.Unlock()

	if api.jobsStatus != 0 {
		w.WriteHeader(api.jobsStatus)
		fmt.Fprint(w, `{"message":"upstream failure"}`)
		return
	}

	jobs := api.jobs[run]
	if jobs == nil {
		jobs = []fakeJob{}
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total_count": len(jobs),
		"jobs":        jobs,
	})
}

func (api *fakeAPI) jobLog(w http.ResponseWriter, r *http.Request) {
	job, _ := strconv.ParseInt(r.PathValue("job"), 10, 64)

	api.mu.Lock()
	defer api.mu.Unlock()
	io.WriteString(w, api.logs[job])
}

// fakeProvider hands out one client and records installation ids
type fakeProvider struct {
	mu            sync.Mutex
	client        *github.Client
	err           error
	installations []int64
}

func (p *fakeProvider) Client(ctx context.Context, installationID int64) (*github.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.installations = append(p.installations, installationID)
	if p.err != nil {
		return nil, p.err
	}
	return p.client, nil
}

func testOptions() Options {
	return Options{
		WebhookSecret: testSecret,
		BotLogin:      testBot,
		WorkflowFile:  "cd.yml",
		IssueGreeting: "Thanks for opening this issue!",
		TestMode:      true,
	}
}

func setupTestServer(t *testing.T) (*Server, *fakeAPI, *fakeProvider) {
	t.Helper()

	api := newFakeAPI(t)
	provider := &fakeProvider{client: api.client(t)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewServer(testOptions(), provider, nil, logger), api, provider
}

func postWebhook(t *testing.T, h http.Handler, event string, payload []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", "delivery-1")
	req.Header.Set(SignatureHeader, makeTestSignature(payload, testSecret))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func workflowRunPayload(t *testing.T, action, path string, prs ...int) []byte {
	t.Helper()

	var pulls []*github.PullRequest
	for _, n := range prs {
		pulls = append(pulls, &github.PullRequest{Number: github.Int(n)})
	}

	payload, err := json.Marshal(&github.WorkflowRunEvent{
		Action:   github.String(action),
		Workflow: &github.Workflow{Path: github.String(path)},
		WorkflowRun: &github.WorkflowRun{
			ID:           github.Int64(9001),
			PullRequests: pulls,
		},
		Repo: &github.Repository{
			Name:  github.String("shop"),
			Owner: &github.User{Login: github.String("acme")},
		},
		Installation: &github.Installation{ID: github.Int64(321)},
	})
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	return payload
}

func issuesPayload(t *testing.T, action string, number int) []byte {
	t.Helper()

	payload, err := json.Marshal(&github.IssuesEvent{
		Action: github.String(action),
		Issue:  &github.Issue{Number: github.Int(number)},
		Repo: &github.Repository{
			Name:  github.String("shop"),
			Owner: &github.User{Login: github.String("acme")},
		},
		Installation: &github.Installation{ID: github.Int64(321)},
	})
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	return payload
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var response map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
	return response
}
