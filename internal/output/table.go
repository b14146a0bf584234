package output

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	tableBorderStyle = lipgloss.NewStyle().Foreground(ColorDimGray)
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorBlue)
	tableCellStyle   = lipgloss.NewStyle().PaddingRight(1)
)

// Table is a styled table of string cells. Build it with NewTable and Row;
// it renders lazily in String.
type Table struct {
	headers   []string
	rows      [][]string
	statusCol int
	empty     string
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers, statusCol: -1}
}

// Row appends a row. Missing trailing cells render empty.
func (t *Table) Row(cells ...string) *Table {
	t.rows = append(t.rows, cells)
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns the raw, unstyled cells.
func (t *Table) Rows() [][]string {
	return t.rows
}

// StatusColumn marks the column at idx as holding status values, which are
// colored with StatusStyle when rendered.
func (t *Table) StatusColumn(idx int) *Table {
	t.statusCol = idx
	return t
}

// Empty sets the message rendered instead of the table when it has no rows.
func (t *Table) Empty(msg string) *Table {
	t.empty = msg
	return t
}

// String renders the table.
func (t *Table) String() string {
	if len(t.rows) == 0 && t.empty != "" {
		return StyleDim.Render(t.empty)
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		Headers(t.headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == t.statusCol && row >= 0 && row < len(t.rows) && col < len(t.rows[row]) {
				return StatusStyle(t.rows[row][col]).PaddingRight(1)
			}
			return tableCellStyle
		})

	for _, row := range t.rows {
		cells := make([]string, len(t.headers))
		copy(cells, row)
		tbl.Row(cells...)
	}

	return tbl.String()
}
