package history

import "time"

// Audit outcomes recorded for a delivery
const (
	OutcomeCreated        = "created"
	OutcomeUpdated        = "updated"
	OutcomeSkipped        = "skipped"
	OutcomeMalformedTable = "malformed_table"
	OutcomeError          = "error"
)

// DeliveryRecord is one processed workflow_run delivery
type DeliveryRecord struct {
	ID              int64     `json:"id"`
	DeliveryID      string    `json:"delivery_id"`
	Repo            string    `json:"repo"`
	PRNumber        int       `json:"pr_number"`
	RunID           int64     `json:"run_id"`
	Action          string    `json:"action"`
	Outcome         string    `json:"outcome"`
	CommentID       *int64    `json:"comment_id,omitempty"` // nullable
	RowCount        int       `json:"row_count"`
	ErrorMessage    *string   `json:"error_message,omitempty"` // nullable
	ReceivedAt      time.Time `json:"received_at"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// PullRequestStatus is the /status response body
type PullRequestStatus struct {
	Repo       string           `json:"repo"`
	PRNumber   int              `json:"pr_number"`
	Deliveries []DeliveryRecord `json:"deliveries"`
}
