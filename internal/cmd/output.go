package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Iron-Ham/edgeshift/internal/task"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// outcome pairs a task with how it finished.
type outcome struct {
	Task   task.Task   `json:"task"`
	Result task.Result `json:"result"`
	Err    error       `json:"-"`
	Error  string      `json:"error,omitempty"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderOutcomes prints one row per task. Styling is applied only when w is
// a terminal.
func renderOutcomes(w io.Writer, outcomes []outcome) {
	styled := isTerminal(w)
	style := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	t := table.New().
		Headers("ID", "PROCESSOR", "WHERE", "STATUS", "VALUE", "TIME")
	if styled {
		t = t.Border(lipgloss.RoundedBorder()).
			BorderStyle(mutedStyle).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle.Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})
	} else {
		t = t.Border(lipgloss.HiddenBorder())
	}

	for _, o := range outcomes {
		where := string(o.Result.Location)
		if o.Result.FromCache {
			where += " (cache)"
		}
		if o.Result.Fallback {
			where += " (fallback)"
		}
		status, value := style(okStyle, "ok"), formatValue(o.Result.Value)
		if o.Err != nil {
			status, value, where = style(errStyle, "failed"), o.Err.Error(), "-"
		}
		t.Row(o.Task.ID, o.Task.Key(), where, status, value, o.Result.Duration.String())
	}
	fmt.Fprintln(w, t.Render())
}

// formatValue renders a result value on one line, truncated for tables.
func formatValue(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		s = ""
	case string:
		s = val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			s = fmt.Sprint(val)
		} else {
			s = string(data)
		}
	}
	const limit = 60
	if r := []rune(s); len(r) > limit {
		s = string(r[:limit-3]) + "..."
	}
	return s
}
