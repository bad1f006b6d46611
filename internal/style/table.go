package style

import (
	"regexp"
	"strings"
)

// Alignment controls horizontal placement within a column.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
)

// Column describes one table column.
type Column struct {
	Name  string
	Width int
	Align Alignment
}

// Table renders fixed-width columnar output with an optional header
// separator. Setters return the table for chaining.
type Table struct {
	columns   []Column
	rows      [][]string
	headerSep bool
	indent    string
}

// NewTable creates a table with a header separator and two-space indent.
func NewTable(columns ...Column) *Table {
	return &Table{
		columns:   columns,
		headerSep: true,
		indent:    "  ",
	}
}

// SetIndent sets the per-line prefix.
func (t *Table) SetIndent(indent string) *Table {
	t.indent = indent
	return t
}

// SetHeaderSeparator toggles the line under the header.
func (t *Table) SetHeaderSeparator(on bool) *Table {
	t.headerSep = on
	return t
}

// AddRow appends a row. Short rows are padded with empty cells; extra
// cells beyond the column count are dropped.
func (t *Table) AddRow(cells ...string) *Table {
	row := make([]string, len(t.columns))
	for i := range t.columns {
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	t.rows = append(t.rows, row)
	return t
}

// Render produces the table as a string, one trailing newline per line.
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}

	var b strings.Builder

	b.WriteString(t.indent)
	for i, col := range t.columns {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(t.pad(Apply(Header, col.Name), col.Name, col.Width, col.Align))
	}
	b.WriteString("\n")

	if t.headerSep {
		width := 0
		for i, col := range t.columns {
			if i > 0 {
				width += 2
			}
			width += col.Width
		}
		b.WriteString(t.indent)
		b.WriteString(strings.Repeat("─", width))
		b.WriteString("\n")
	}

	for _, row := range t.rows {
		b.WriteString(t.indent)
		for i, col := range t.columns {
			if i > 0 {
				b.WriteString("  ")
			}
			cell := row[i]
			plain := stripAnsi(cell)
			if len(plain) > col.Width && col.Width > 3 {
				plain = plain[:col.Width-3] + "..."
				cell = plain
			}
			b.WriteString(t.pad(cell, plain, col.Width, col.Align))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// pad fits styled text into width using the plain text for measurement,
// so ANSI sequences never skew alignment. Text at or over width is
// returned unchanged.
func (t *Table) pad(styled, plain string, width int, align Alignment) string {
	gap := width - len(plain)
	if gap <= 0 {
		return styled
	}
	switch align {
	case AlignRight:
		return strings.Repeat(" ", gap) + styled
	case AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + styled + strings.Repeat(" ", gap-left)
	default:
		return styled + strings.Repeat(" ", gap)
	}
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripAnsi removes ANSI style sequences.
func stripAnsi(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}
