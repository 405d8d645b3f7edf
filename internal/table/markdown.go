package table

import (
	"fmt"
	"strings"
	"time"
)

const header = Heading + "\n\n" +
	"| Number | App Name         | Preview Links | Status | Last update |\n" +
	"|--------|------------------|---------------|--------|-------------|\n"

// Render produces the comment body for the given rows, numbering them from 1
// in the order given.
func Render(rows []Row) string {
	var b strings.Builder
	b.WriteString(header)

	for i, row := range rows {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
			i+1,
			escapeCell(row.Name),
			escapeCell(renderPreviewLinks(row.PreviewLinks)),
			escapeCell(renderStatus(row)),
			row.UpdatedAt.UTC().Format(TimeLayout),
		)
	}

	return b.String()
}

// escapeCell keeps a literal pipe from ending the cell
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func renderPreviewLinks(links []string) string {
	if len(links) == 0 {
		return "[Preview deployment](" + Placeholder + ")"
	}
	cells := make([]string, len(links))
	for i, link := range links {
		cells[i] = "[Preview deployment](" + link + ")"
	}
	return strings.Join(cells, " ")
}

func renderStatus(row Row) string {
	jobURL := row.JobURL
	if jobURL == "" {
		jobURL = Placeholder
	}
	return fmt.Sprintf("%s ([Logs](%s))", row.Status.Label(), jobURL)
}

// Parse reads the rows of a rendered deployment table out of a comment body.
//
// Every non-empty line after the header separator is treated as a data row.
// A body without a separator, or with a row that does not have the five
// expected cells, yields ErrMalformedTable wrapped in a *ParseError; a
// Status cell with an unknown label yields ErrUnknownStatus.
func Parse(markdown string) ([]Row, error) {
	lines := strings.Split(markdown, "\n")

	separator := -1
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "|--") && strings.HasSuffix(line, "--|") {
			separator = i
			break
		}
	}
	if separator < 0 {
		return nil, fmt.Errorf("%w: header separator row not found", ErrMalformedTable)
	}

	rows := []Row{}
	for i := separator + 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		row, err := parseRow(line)
		if err != nil {
			return nil, &ParseError{Line: i + 1, Text: line, Err: err}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func parseRow(line string) (Row, error) {
	cells := splitCells(line)
	if len(cells) < 5 {
		return Row{}, fmt.Errorf("%w: expected 5 cells, got %d", ErrMalformedTable, len(cells))
	}

	name := cells[1]
	links := linksFromColumn(cells[2])
	statusCell := cells[3]

	open := strings.Index(statusCell, "(")
	lastOpen := strings.LastIndex(statusCell, "(")
	closing := strings.Index(statusCell, ")")
	if open < 0 || closing < 0 || lastOpen+1 > closing {
		return Row{}, fmt.Errorf("%w: status cell has no logs link", ErrMalformedTable)
	}

	status, err := ParseStatusLabel(statusCell[:open])
	if err != nil {
		return Row{}, err
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, cells[4])
	if err != nil {
		return Row{}, fmt.Errorf("%w: invalid last update %q", ErrMalformedTable, cells[4])
	}

	return Row{
		Name:         name,
		Status:       status,
		JobURL:       statusCell[lastOpen+1 : closing],
		UpdatedAt:    updatedAt.UTC(),
		PreviewLinks: links,
	}, nil
}

// splitCells splits a row on unescaped pipes, unescapes "\|" and drops
// empty cells.
func splitCells(line string) []string {
	var cells []string
	var cell strings.Builder

	flush := func() {
		if text := strings.TrimSpace(cell.String()); text != "" {
			cells = append(cells, text)
		}
		cell.Reset()
	}

	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\\' && i+1 < len(line) && line[i+1] == '|':
			cell.WriteByte('|')
			i++
		case line[i] == '|':
			flush()
		default:
			cell.WriteByte(line[i])
		}
	}
	flush()

	return cells
}
