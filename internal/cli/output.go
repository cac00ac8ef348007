package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Output formats command results as styled text or JSON.
type Output struct {
	jsonMode bool
	w        io.Writer // data
	errW     io.Writer // messages

	title   lipgloss.Style
	label   lipgloss.Style
	box     lipgloss.Style
	header  lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
}

// NewOutput creates an Output. Styles follow the color profile of w, so
// redirected output carries no escape codes.
func NewOutput(jsonMode bool, w, errW io.Writer) *Output {
	r := lipgloss.NewRenderer(w)
	return &Output{
		jsonMode: jsonMode,
		w:        w,
		errW:     errW,
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		label:    r.NewStyle().Foreground(lipgloss.Color("8")),
		box:      r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("10")).Padding(0, 1),
		header:   r.NewStyle().Bold(true).Padding(0, 1),
		success:  lipgloss.NewRenderer(errW).NewStyle().Foreground(lipgloss.Color("10")),
		failure:  lipgloss.NewRenderer(errW).NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
}

// JSONMode reports whether output is JSON.
func (o *Output) JSONMode() bool { return o.jsonMode }

// Print writes a table, or jsonData in JSON mode.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) error {
	if o.jsonMode {
		return o.JSON(jsonData)
	}
	o.Table(headers, rows)
	return nil
}

// Table writes rows under headers.
func (o *Output) Table(headers []string, rows [][]string) {
	cell := o.header.UnsetBold()
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return o.header
			}
			return cell
		})
	fmt.Fprintln(o.w, t.Render())
}

// JSON writes v indented.
func (o *Output) JSON(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Result writes a titled box with the headline value, followed by a table of
// every field.
func (o *Output) Result(title, headline string, fields [][]string) {
	var b strings.Builder
	b.WriteString(o.title.Render(title))
	if headline != "" {
		b.WriteString("\n\n")
		b.WriteString(headline)
	}
	fmt.Fprintln(o.w, o.box.Render(b.String()))
	if len(fields) > 0 {
		o.Table([]string{"FIELD", "VALUE"}, fields)
	}
}

// KeyValue writes an aligned label: value line.
func (o *Output) KeyValue(key, value string) {
	fmt.Fprintf(o.w, "%s %s\n", o.label.Render(key+":"), value)
}

// Success writes a message to the message stream.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, o.success.Render(msg))
}

// Error writes an error message to the message stream.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, o.failure.Render("Error: "+msg))
}
