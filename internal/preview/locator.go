package preview

import (
	"strings"

	"deplostatus/internal/table"
)

// FindBotComment returns the first comment written by botLogin that carries
// the deployment table heading.
//
// Exactly one table comment per pull request is assumed. When several
// qualify, the earliest in listing order wins and the rest are left alone.
func FindBotComment(comments []Comment, botLogin string) (Comment, bool) {
	for _, comment := range comments {
		if comment.Author == botLogin && strings.Contains(comment.Body, table.Heading) {
			return comment, true
		}
	}
	return Comment{}, false
}
