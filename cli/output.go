package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Writer handles CLI output. It is safe for concurrent use, which the
// foreground connect command needs while client output streams in.
type Writer struct {
	Out io.Writer
	Err io.Writer

	mu sync.Mutex

	successColor *color.Color
	errorColor   *color.Color
	warningColor *color.Color
	infoColor    *color.Color
	mutedColor   *color.Color
}

// DefaultWriter returns a Writer for stdout/stderr.
func DefaultWriter() *Writer {
	return NewWriter(os.Stdout, os.Stderr)
}

// NewWriter creates a Writer. Colors are disabled unless out is a terminal
// and NO_COLOR is unset.
func NewWriter(out, errOut io.Writer) *Writer {
	w := &Writer{
		Out:          out,
		Err:          errOut,
		successColor: color.New(color.FgGreen),
		errorColor:   color.New(color.FgRed),
		warningColor: color.New(color.FgYellow),
		infoColor:    color.New(color.FgCyan),
		mutedColor:   color.New(color.FgHiBlack),
	}
	if !colorEnabled(out) {
		w.SetNoColor(true)
	}
	return w
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func colorEnabled(out io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal(out)
}

// SetNoColor disables colored output.
func (w *Writer) SetNoColor(disabled bool) {
	for _, c := range []*color.Color{w.successColor, w.errorColor, w.warningColor, w.infoColor, w.mutedColor} {
		if disabled {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}
}

// Print writes to stdout.
func (w *Writer) Print(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.Out, format, args...)
}

// Println writes a line to stdout.
func (w *Writer) Println(args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.Out, args...)
}

// Success prints a success line with a check mark.
func (w *Writer) Success(format string, args ...interface{}) {
	w.line(w.Out, w.successColor, "✓ ", format, args...)
}

// Failure prints an error line to stderr.
func (w *Writer) Failure(format string, args ...interface{}) {
	w.line(w.Err, w.errorColor, "✗ ", format, args...)
}

// Warning prints a warning line to stderr.
func (w *Writer) Warning(format string, args ...interface{}) {
	w.line(w.Err, w.warningColor, "! ", format, args...)
}

// Info prints an informational line.
func (w *Writer) Info(format string, args ...interface{}) {
	w.line(w.Out, w.infoColor, "", format, args...)
}

// Muted prints a de-emphasized line.
func (w *Writer) Muted(format string, args ...interface{}) {
	w.line(w.Out, w.mutedColor, "", format, args...)
}

func (w *Writer) line(dst io.Writer, c *color.Color, prefix, format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c.Fprintf(dst, prefix+format+"\n", args...)
}

// Table writes tab separated rows aligned in columns.
func (w *Writer) Table(header string, rows []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	tw := tabwriter.NewWriter(w.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, row := range rows {
		fmt.Fprintln(tw, row)
	}
	tw.Flush()
}
