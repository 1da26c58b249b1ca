package display

import (
	"strings"

	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/padding"
	"github.com/muesli/reflow/truncate"
)

type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

const (
	columnGap    = "  "
	truncateTail = "~"
)

// Column describes one table column. A zero Width leaves the column unpadded
// and untruncated, which only makes sense for the last column.
type Column struct {
	Title string
	Width uint
	Align Align
}

// Table renders rows of cells under a header line.
type Table struct {
	cols []Column
	rows [][]string
}

func NewTable(cols ...Column) *Table {
	return &Table{cols: cols}
}

// AddRow appends a row. Missing cells render empty and extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.cols))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) String() string {
	var sb strings.Builder

	header := make([]string, len(t.cols))
	for i, c := range t.cols {
		header[i] = c.Title
	}
	t.writeRow(&sb, header)
	for _, row := range t.rows {
		t.writeRow(&sb, row)
	}

	return sb.String()
}

func (t *Table) writeRow(sb *strings.Builder, cells []string) {
	for i, c := range t.cols {
		if i > 0 {
			sb.WriteString(columnGap)
		}
		sb.WriteString(c.cell(cells[i]))
	}
	sb.WriteString("\n")
}

func (c Column) cell(s string) string {
	if c.Width == 0 {
		return s
	}

	if uint(ansi.PrintableRuneWidth(s)) > c.Width {
		s = truncate.StringWithTail(s, c.Width, truncateTail)
	}
	if c.Align == AlignRight {
		return strings.Repeat(" ", int(c.Width)-ansi.PrintableRuneWidth(s)) + s
	}
	return padding.String(s, c.Width)
}
