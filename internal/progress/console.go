package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Reporter receives the human-facing events of a run.
type Reporter interface {
	Transition(from, to State)
	Summary(line string)
	Status(msg string)
	Warn(format string, args ...any)
}

type discard struct{}

func (discard) Transition(State, State) {}
func (discard) Summary(string)          {}
func (discard) Status(string)           {}
func (discard) Warn(string, ...any)     {}

// Discard is a Reporter that drops everything.
var Discard Reporter = discard{}

// Styles holds lipgloss styles for console output.
type Styles struct {
	Success lipgloss.Style
	Warning lipgloss.Style
	Bold    lipgloss.Style
	Dim     lipgloss.Style
}

// Console reports a run as status lines. Transitions are only shown in
// verbose mode.
type Console struct {
	w       io.Writer
	errW    io.Writer
	verbose bool
	styles  *Styles
}

// NewConsole creates a console writing to w and errW. Colors are dropped
// unless isTTY is set.
func NewConsole(w, errW io.Writer, isTTY, verbose bool) *Console {
	styles := &Styles{
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")), // Green
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")), // Yellow
		Bold:    lipgloss.NewStyle().Bold(true),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
	if !isTTY {
		styles.Success = lipgloss.NewStyle()
		styles.Warning = lipgloss.NewStyle()
		styles.Bold = lipgloss.NewStyle()
		styles.Dim = lipgloss.NewStyle()
	}
	if errW == nil {
		errW = w
	}
	return &Console{w: w, errW: errW, verbose: verbose, styles: styles}
}

// IsTTY checks if a writer is a terminal.
func IsTTY(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := file.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// Transition prints the state change in verbose mode.
func (c *Console) Transition(from, to State) {
	if !c.verbose {
		return
	}
	fmt.Fprintln(c.w, c.styles.Dim.Render(fmt.Sprintf("%s -> %s", from, to)))
}

// Summary prints the changed-files line of a commit.
func (c *Console) Summary(line string) {
	fmt.Fprintln(c.w, c.styles.Bold.Render(line))
}

// Status prints a terminal status such as "Done" or "Nothing to do".
func (c *Console) Status(msg string) {
	fmt.Fprintln(c.w, c.styles.Success.Render(msg))
}

// Warn prints a warning to the error writer.
func (c *Console) Warn(format string, args ...any) {
	fmt.Fprintf(c.errW, "%s: %s\n", c.styles.Warning.Render("Warning"), fmt.Sprintf(format, args...))
}
