package comparecmder

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/docweave/weave/pkg/cliui"
	"github.com/docweave/weave/pkg/rag"
)

const cellWidth = 48

func printResults(w io.Writer, theme *cliui.Theme, indexes []string, results []rag.ComparisonResult) {
	fmt.Fprintf(w, "\n%s\n", theme.Title.Render("Results"))
	if len(results) == 0 {
		fmt.Fprintf(w, "  %s\n", theme.Muted.Render("none"))
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(theme.Muted).
		Headers(append([]string{"Requirement"}, indexes...)...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return theme.Title.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	for _, r := range results {
		row := []string{cliui.Excerpt(r.Requirement.Description, cellWidth)}
		for _, index := range indexes {
			row = append(row, resultCell(r.Sources[index]))
		}
		t.Row(row...)
	}

	fmt.Fprintln(w, t.String())
}

// resultCell prefers the simplified value and falls back to the answer text.
func resultCell(r rag.SourceResult) string {
	if v := r.Value(); v != "" {
		return cliui.Excerpt(v, cellWidth)
	}
	if r.Response == "" {
		return "-"
	}
	return cliui.Excerpt(r.Response, cellWidth)
}
