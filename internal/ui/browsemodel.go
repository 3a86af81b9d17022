package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/bmdb/internal/value"
)

// BrowseModel is a bubbletea table browser over a fixed snapshot of
// documents: bmdb's table isn't watched for changes while browse is open,
// matching a one-shot CLI invocation rather than a live dashboard.
type BrowseModel struct {
	title  string
	table  table.Model
	styles Styles
	detail string
	err    error
}

// NewBrowseModel builds a browser for docs, rendering columns for the
// given field paths (dotted, resolved against each document's map root).
func NewBrowseModel(title string, docs []value.Value, columns []string, noColor bool) BrowseModel {
	styles := GetStyles(noColor)

	cols := make([]table.Column, 0, len(columns)+1)
	cols = append(cols, table.Column{Title: "id", Width: 6})
	for _, c := range columns {
		cols = append(cols, table.Column{Title: c, Width: 20})
	}

	rows := make([]table.Row, 0, len(docs))
	for i, doc := range docs {
		row := make(table.Row, 0, len(columns)+1)
		row = append(row, fmt.Sprintf("%d", i))
		for _, c := range columns {
			row = append(row, fieldPreview(doc, c))
		}
		rows = append(rows, row)
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows)+1, 20)),
	)

	tblStyles := table.DefaultStyles()
	tblStyles.Header = tblStyles.Header.Bold(true).Foreground(lipgloss.Color(ColorLime))
	tblStyles.Selected = tblStyles.Selected.Foreground(lipgloss.Color(ColorWhite)).Background(lipgloss.Color(ColorLimeDim))
	t.SetStyles(tblStyles)

	return BrowseModel{title: title, table: t, styles: styles}
}

func fieldPreview(doc value.Value, dotted string) string {
	cur := doc
	for _, seg := range strings.Split(dotted, ".") {
		m, ok := cur.AsMap()
		if !ok {
			return ""
		}
		v, ok := m.Get(seg)
		if !ok {
			return ""
		}
		cur = v
	}
	out, err := value.ToJSON(cur)
	if err != nil {
		return ""
	}
	s := string(out)
	if len(s) > 40 {
		s = s[:37] + "..."
	}
	return s
}

func (m BrowseModel) Init() tea.Cmd { return nil }

func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m BrowseModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	b.WriteString(m.styles.Dim.Render("↑/↓ move · q quit"))
	b.WriteString("\n")
	return b.String()
}
