// Package output renders CLI output. Styles apply only when the writer
// is a terminal; piped output stays plain so it composes with grep and
// friends. JSON output bypasses styling entirely.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette shared by all commands.
const (
	colorAccent   = "81"  // cyan accent for headers and paths
	colorGray     = "245" // labels, secondary text
	colorDarkGray = "238" // separators, scores
	colorGreen    = "78"  // success
	colorYellow   = "220" // warnings
	colorRed      = "196" // errors
)

// Styles holds the lipgloss styles used by the CLI.
type Styles struct {
	Header  lipgloss.Style
	Path    lipgloss.Style
	Label   lipgloss.Style
	Dim     lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// DefaultStyles returns the colored styles for terminal output.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent)),
		Path:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorDarkGray)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreen)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
	}
}

// NoColorStyles returns pass-through styles for plain output.
func NoColorStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Path:    lipgloss.NewStyle(),
		Label:   lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
	}
}

// Writer provides formatted output for CLI commands.
type Writer struct {
	out    io.Writer
	styles Styles
}

// New creates a Writer. Colors turn on only when out is a terminal.
func New(out io.Writer) *Writer {
	w := &Writer{out: out, styles: NoColorStyles()}
	if f, ok := out.(*os.File); ok {
		if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
			w.styles = DefaultStyles()
		}
	}
	return w
}

// NewStyled creates a Writer with the given styles regardless of the
// output target.
func NewStyled(out io.Writer, styles Styles) *Writer {
	return &Writer{out: out, styles: styles}
}

// Headerf prints a bold section heading.
func (w *Writer) Headerf(format string, args ...any) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(fmt.Sprintf(format, args...)))
}

// Linef prints an unstyled line.
func (w *Writer) Linef(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format+"\n", args...)
}

// Dimf prints a de-emphasized line.
func (w *Writer) Dimf(format string, args ...any) {
	_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render(fmt.Sprintf(format, args...)))
}

// Successf prints a success line.
func (w *Writer) Successf(format string, args ...any) {
	_, _ = fmt.Fprintln(w.out, w.styles.Success.Render(fmt.Sprintf(format, args...)))
}

// Warningf prints a warning line.
func (w *Writer) Warningf(format string, args ...any) {
	_, _ = fmt.Fprintln(w.out, w.styles.Warning.Render(fmt.Sprintf(format, args...)))
}

// Errorf prints an error line.
func (w *Writer) Errorf(format string, args ...any) {
	_, _ = fmt.Fprintln(w.out, w.styles.Error.Render(fmt.Sprintf(format, args...)))
}

// KV prints an aligned label: value pair.
func (w *Writer) KV(label string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %s %v\n",
		w.styles.Label.Render(fmt.Sprintf("%-14s", label+":")), value)
}

// Result prints one ranked search result with an optional detail line.
func (w *Writer) Result(rank int, path string, score float64, detail string) {
	_, _ = fmt.Fprintf(w.out, "%2d. %s  %s\n",
		rank,
		w.styles.Path.Render(path),
		w.styles.Dim.Render(fmt.Sprintf("(%.3f)", score)))
	if detail != "" {
		_, _ = fmt.Fprintf(w.out, "    %s\n", w.styles.Label.Render(detail))
	}
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON pretty-prints v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
