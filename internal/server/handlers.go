package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"deplostatus/internal/ghauth"
	"deplostatus/internal/githubapi"
	"deplostatus/internal/history"
	"deplostatus/internal/preview"
	"deplostatus/internal/security"
	"deplostatus/internal/table"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-github/v57/github"
	"github.com/google/uuid"
)

const (
	MaxPayloadBytes = 5 << 20 // 5 MB

	// MaxStatusLimit caps the ?limit query of the status endpoint
	MaxStatusLimit = 100
)

// Event names as sent in X-GitHub-Event
const (
	eventPing        = "ping"
	eventWorkflowRun = "workflow_run"
	eventIssues      = "issues"
)

// Delivery outcomes used for metrics labels
const (
	outcomeIgnored  = "ignored"
	outcomeRejected = "rejected"
	outcomeGreeted  = "greeted"
)

// HandleWebhook handles GitHub webhook deliveries. Work happens inside the
// request; the response reports what was done to the pull request.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.ContentLength > MaxPayloadBytes {
		s.respondJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Payload too large"})
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		s.respondJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "Invalid content type"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadBytes+1))
	if err != nil {
		s.Logger.Error("Failed to read request body", "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read payload"})
		return
	}
	if len(body) > MaxPayloadBytes {
		s.respondJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Payload too large"})
		return
	}

	eventType := github.WebHookType(r)
	deliveryID := github.DeliveryID(r)
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	logger := s.Logger.With("delivery", deliveryID, "event", eventType)

	if err := VerifySignature(body, r.Header.Get(SignatureHeader), s.Options.WebhookSecret); err != nil {
		logger.Warn("Rejected webhook delivery", "error", err)
		s.Metrics.recordDelivery(eventType, outcomeRejected, time.Since(start))
		status := http.StatusForbidden
		if errors.Is(err, errMissingSignature) {
			status = http.StatusUnauthorized
		}
		s.respondJSON(w, status, map[string]string{"error": "Invalid signature"})
		return
	}

	switch eventType {
	case eventPing:
		s.respondJSON(w, http.StatusOK, map[string]string{"message": "pong"})
		return
	case eventWorkflowRun, eventIssues:
	default:
		s.Metrics.recordDelivery(eventType, outcomeIgnored, time.Since(start))
		s.respondJSON(w, http.StatusOK, map[string]string{
			"message": fmt.Sprintf("Ignoring %q event", eventType),
		})
		return
	}

	parsed, err := github.ParseWebHook(eventType, body)
	if err != nil {
		logger.Warn("Failed to parse webhook payload", "error", err)
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON payload"})
		return
	}

	switch ev := parsed.(type) {
	case *github.WorkflowRunEvent:
		s.handleWorkflowRun(r.Context(), w, deliveryID, githubapi.WorkflowRunEvent(ev), start)
	case *github.IssuesEvent:
		s.handleIssue(r.Context(), w, deliveryID, ev, start)
	default:
		s.respondJSON(w, http.StatusOK, map[string]string{"message": "Ignoring event"})
	}
}

func (s *Server) handleWorkflowRun(ctx context.Context, w http.ResponseWriter, deliveryID string, ev preview.Event, start time.Time) {
	logger := s.Logger.With("delivery", deliveryID, "repo", ev.FullName(), "run_id", ev.RunID)

	number, ok := s.Processor.Match(ev)
	if !ok {
		s.Metrics.recordDelivery(eventWorkflowRun, outcomeIgnored, time.Since(start))
		s.respondJSON(w, http.StatusOK, map[string]string{"message": "Ignoring workflow run"})
		return
	}

	audit := &history.DeliveryRecord{
		DeliveryID: deliveryID,
		Repo:       ev.FullName(),
		PRNumber:   number,
		RunID:      ev.RunID,
		Action:     ev.Action,
		ReceivedAt: start,
	}

	result, err := s.processWorkflowRun(ctx, ev)
	elapsed := time.Since(start)
	audit.DurationSeconds = elapsed.Seconds()

	if err != nil {
		status, outcome := classifyError(err)
		logger.Error("Failed to update deployment table", "pr", number, "outcome", outcome, "error", err)

		msg := err.Error()
		audit.Outcome = outcome
		audit.ErrorMessage = &msg
		s.recordAudit(ctx, audit)
		s.Metrics.recordDelivery(eventWorkflowRun, outcome, elapsed)

		s.respondJSON(w, status, map[string]interface{}{
			"error":    msg,
			"pr":       number,
			"delivery": deliveryID,
		})
		return
	}

	audit.Outcome = auditOutcome(result.Outcome)
	audit.RowCount = result.Rows
	if result.CommentID != 0 {
		audit.CommentID = &result.CommentID
	}
	s.recordAudit(ctx, audit)

	s.Metrics.recordDelivery(eventWorkflowRun, string(result.Outcome), elapsed)
	switch result.Outcome {
	case preview.OutcomeCreated:
		s.Metrics.recordWrite("create")
	case preview.OutcomeUpdated:
		s.Metrics.recordWrite("update")
	}

	logger.Info("Processed workflow run", "pr", number, "outcome", result.Outcome,
		"comment_id", result.CommentID, "rows", result.Rows, "duration_ms", elapsed.Milliseconds())

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Deployment status processed",
		"outcome":    result.Outcome,
		"pr":         result.PRNumber,
		"comment_id": result.CommentID,
		"rows":       result.Rows,
		"delivery":   deliveryID,
	})
}

func (s *Server) processWorkflowRun(ctx context.Context, ev preview.Event) (preview.Result, error) {
	client, err := s.Provider.Client(ctx, ev.InstallationID)
	if err != nil {
		return preview.Result{}, err
	}
	return s.Processor.Handle(ctx, githubapi.New(client), ev)
}

func (s *Server) handleIssue(ctx context.Context, w http.ResponseWriter, deliveryID string, ev *github.IssuesEvent, start time.Time) {
	issue := ev.GetIssue()
	if ev.GetAction() != preview.IssuesActionOpened || !s.Greeter.Enabled() || issue == nil || issue.IsPullRequest() {
		s.Metrics.recordDelivery(eventIssues, outcomeIgnored, time.Since(start))
		s.respondJSON(w, http.StatusOK, map[string]string{"message": "Ignoring issues event"})
		return
	}

	owner := ev.GetRepo().GetOwner().GetLogin()
	repo := ev.GetRepo().GetName()
	logger := s.Logger.With("delivery", deliveryID, "repo", owner+"/"+repo, "issue", issue.GetNumber())

	client, err := s.Provider.Client(ctx, ev.GetInstallation().GetID())
	var id int64
	if err == nil {
		id, err = s.Greeter.Greet(ctx, githubapi.New(client), owner, repo, issue.GetNumber())
	}
	if err != nil {
		status, outcome := classifyError(err)
		logger.Error("Failed to greet issue", "error", err)
		s.Metrics.recordDelivery(eventIssues, outcome, time.Since(start))
		s.respondJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.Metrics.recordDelivery(eventIssues, outcomeGreeted, time.Since(start))
	s.Metrics.recordWrite("greeting")
	logger.Info("Greeted new issue", "comment_id", id)

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Greeted issue",
		"comment_id": id,
	})
}

// classifyError maps a processing error to an HTTP status and audit outcome
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, table.ErrMalformedTable), errors.Is(err, table.ErrUnknownStatus):
		return http.StatusUnprocessableEntity, history.OutcomeMalformedTable
	case errors.Is(err, ghauth.ErrNoInstallation):
		return http.StatusBadRequest, history.OutcomeError
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, history.OutcomeError
	default:
		return http.StatusBadGateway, history.OutcomeError
	}
}

func auditOutcome(o preview.Outcome) string {
	switch o {
	case preview.OutcomeCreated:
		return history.OutcomeCreated
	case preview.OutcomeUpdated:
		return history.OutcomeUpdated
	default:
		return history.OutcomeSkipped
	}
}

func (s *Server) recordAudit(ctx context.Context, record *history.DeliveryRecord) {
	if s.History == nil {
		return
	}
	// The request context may already be past its deadline
	ctx = context.WithoutCancel(ctx)
	if _, err := s.History.RecordDelivery(ctx, record); err != nil {
		s.Logger.Error("Failed to record delivery", "error", err, "delivery", record.DeliveryID)
	}
}

// HandleHealth handles health check requests
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"workflow_file": s.Processor.Options.WorkflowFile,
		"bot_login":     s.Options.BotLogin,
		"audit_log":     s.History != nil,
	})
}

// HandleStatus returns the recent deliveries recorded for a pull request
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	fullName, number, ok := s.pullRequestParams(w, r)
	if !ok {
		return
	}

	limit := history.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
			return
		}
		limit = min(limit, MaxStatusLimit)
	}

	if s.History == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Delivery audit log is disabled"})
		return
	}

	deliveries, err := s.History.GetDeliveries(r.Context(), fullName, number, limit)
	if err != nil {
		s.Logger.Error("Failed to get deliveries", "error", err, "repo", fullName, "pr", number)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch delivery history"})
		return
	}

	s.respondJSON(w, http.StatusOK, history.PullRequestStatus{
		Repo:       fullName,
		PRNumber:   number,
		Deliveries: deliveries,
	})
}

// HandleLatestStatus returns the newest delivery recorded for a pull request
func (s *Server) HandleLatestStatus(w http.ResponseWriter, r *http.Request) {
	fullName, number, ok := s.pullRequestParams(w, r)
	if !ok {
		return
	}

	if s.History == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Delivery audit log is disabled"})
		return
	}

	latest, err := s.History.GetLatestDelivery(r.Context(), fullName, number)
	if err != nil {
		s.Logger.Error("Failed to get latest delivery", "error", err, "repo", fullName, "pr", number)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch delivery history"})
		return
	}
	if latest == nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "No deliveries recorded for this pull request"})
		return
	}

	s.respondJSON(w, http.StatusOK, latest)
}

// pullRequestParams validates the owner, repo and number URL parameters,
// answering 400 itself when they are invalid
func (s *Server) pullRequestParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	owner := chi.URLParam(r, "owner")
	repo := chi.URLParam(r, "repo")

	if err := security.ValidateOwner(owner); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return "", 0, false
	}
	if err := security.ValidateRepoName(repo); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return "", 0, false
	}

	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid pull request number"})
		return "", 0, false
	}

	return owner + "/" + repo, number, true
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}
