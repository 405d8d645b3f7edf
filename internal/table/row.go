package table

import (
	"regexp"
	"time"
)

const (
	// Heading is the first line of every deployment table. Bot comments are
	// recognized by containing it.
	Heading = "### Deployment Status"

	// Placeholder stands in for a missing job URL or preview link
	Placeholder = "#"

	// TimeLayout is the Last update column format (ISO-8601, UTC, milliseconds)
	TimeLayout = "2006-01-02T15:04:05.000Z07:00"
)

var (
	columnLinkPattern = regexp.MustCompile(`https://[^\s)"]+`)
	deployURLPattern  = regexp.MustCompile(`deploy_url=(https://[^\s)"]+)`)
	ansiPattern       = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// Row is one application line of the deployment table
type Row struct {
	Name      string
	Status    Status
	JobURL    string
	UpdatedAt time.Time
	// PreviewLinks is ordered and free of duplicates. Empty renders as the
	// placeholder link.
	PreviewLinks []string
}

// ExtractPreviewLinks finds every deploy_url=<https url> marker in a job log.
// ANSI color sequences are stripped from matches and duplicates are removed,
// keeping first-seen order. Returns nil when the log has no markers.
func ExtractPreviewLinks(logs string) []string {
	var links []string
	seen := make(map[string]bool)
	for _, match := range deployURLPattern.FindAllStringSubmatch(logs, -1) {
		link := ansiPattern.ReplaceAllString(match[1], "")
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)
	}
	return links
}

// linksFromColumn extracts the URLs of a rendered Preview Links cell
func linksFromColumn(cell string) []string {
	return columnLinkPattern.FindAllString(cell, -1)
}
