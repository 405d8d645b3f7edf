package table

import (
	"fmt"
	"strings"
)

// Status is the deployment state of a single application row
type Status int

const (
	StatusInProgress Status = iota
	StatusSuccessful
	StatusFailed
	StatusSkipped
	StatusCancelled
	StatusNeutral
)

var statusCodes = map[Status]string{
	StatusInProgress: "in_progress",
	StatusSuccessful: "successful",
	StatusFailed:     "failed",
	StatusSkipped:    "skipped",
	StatusCancelled:  "cancelled",
	StatusNeutral:    "neutral",
}

// Display labels as they appear in the rendered table. Changing any of these
// breaks parsing of comments posted by earlier versions.
var statusLabels = map[Status]string{
	StatusInProgress: "⏳ In Progress",
	StatusSuccessful: "✅ Successful",
	StatusFailed:     "❌ Failed",
	StatusSkipped:    "🚫 Skipped",
	StatusCancelled:  "⛔ Cancelled",
	StatusNeutral:    "➖ Neutral",
}

var labelStatuses = func() map[string]Status {
	m := make(map[string]Status, len(statusLabels))
	for status, label := range statusLabels {
		m[label] = status
	}
	return m
}()

// String returns the stable internal code of the status
func (s Status) String() string {
	if code, ok := statusCodes[s]; ok {
		return code
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Label returns the glyph and text rendered in the Status column
func (s Status) Label() string {
	return statusLabels[s]
}

// ParseStatusLabel maps a rendered label back to its status.
// The label must match exactly (after trimming surrounding whitespace).
func ParseStatusLabel(label string) (Status, error) {
	status, ok := labelStatuses[strings.TrimSpace(label)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, label)
	}
	return status, nil
}

// StatusFromConclusion maps a GitHub Actions job conclusion to a status.
// Unknown and empty conclusions (job still running) map to StatusInProgress.
func StatusFromConclusion(conclusion string) Status {
	switch conclusion {
	case "success":
		return StatusSuccessful
	case "failure", "action_required", "timed_out":
		return StatusFailed
	case "skipped":
		return StatusSkipped
	case "cancelled":
		return StatusCancelled
	case "neutral":
		return StatusNeutral
	default:
		return StatusInProgress
	}
}
