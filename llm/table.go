package llm

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Table is a markdown table found in a model answer.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

var (
	markdownLink = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	markdownBold = regexp.MustCompile(`\*\*([^*]+)\*\*`)
)

// ParseTable returns the first markdown table in text: a header row, a
// separator row and at least one data row. Data rows whose cell count differs
// from the header are dropped. Empty cells are not counted.
func ParseTable(text string) (*Table, bool) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	for i := 0; i+2 < len(lines); i++ {
		if !isRow(lines[i]) || !isSeparator(lines[i+1]) || !isRow(lines[i+2]) {
			continue
		}

		t := &Table{Header: cells(lines[i]), Rows: [][]string{}}
		for _, line := range lines[i+2:] {
			if !isRow(line) {
				break
			}
			if row := cells(line); len(row) == len(t.Header) {
				t.Rows = append(t.Rows, row)
			}
		}
		return t, true
	}
	return nil, false
}

func isRow(line string) bool {
	return len(line) > 1 && line[0] == '|'
}

func isSeparator(line string) bool {
	if !isRow(line) || !strings.Contains(line, "-") {
		return false
	}
	return strings.Trim(line, "|-: ") == ""
}

func cells(line string) []string {
	var out []string
	for _, c := range strings.Split(line, "|") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// CellText strips markdown from a cell for plain-text output. A link is
// replaced by its target.
func CellText(cell string) string {
	cell = markdownLink.ReplaceAllString(cell, "$2")
	return markdownBold.ReplaceAllString(cell, "$1")
}

// Render writes the table with columns aligned by display width, followed by
// the row count.
func (t *Table) Render(w io.Writer) error {
	widths := make([]int, len(t.Header))
	measure := func(row []string) {
		for i, c := range row {
			if n := runewidth.StringWidth(CellText(c)); n > widths[i] {
				widths[i] = n
			}
		}
	}
	measure(t.Header)
	for _, row := range t.Rows {
		measure(row)
	}

	line := func(row []string) error {
		padded := make([]string, len(row))
		for i, c := range row {
			padded[i] = runewidth.FillRight(CellText(c), widths[i])
		}
		_, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(padded, "  "), " "))
		return err
	}

	if err := line(t.Header); err != nil {
		return err
	}
	rule := make([]string, len(widths))
	for i, n := range widths {
		rule[i] = strings.Repeat("-", n)
	}
	if _, err := fmt.Fprintln(w, strings.Join(rule, "  ")); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := line(row); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "共 %d 条记录\n", len(t.Rows))
	return err
}
