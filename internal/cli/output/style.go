package output

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/yndnr/quicksave-go/internal/core/domain"
)

// IsTerminal reports whether w is attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes one-line status messages, coloured on a terminal.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter returns a Printer for w. noColor forces plain output.
func NewPrinter(w io.Writer, noColor bool) *Printer {
	return &Printer{w: w, color: !noColor && IsTerminal(w)}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer { return p.w }

func (p *Printer) paint(attr color.Attribute, s string) string {
	if !p.color {
		return s
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(s)
}

// Info prints a plain line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Success prints a line prefixed with a check mark.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(color.FgGreen, "✓")+" "+fmt.Sprintf(format, args...))
}

// Warn prints a highlighted warning line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(color.FgYellow, "!")+" "+fmt.Sprintf(format, args...))
}

// Fail prints a line prefixed with a cross.
func (p *Printer) Fail(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(color.FgRed, "✗")+" "+fmt.Sprintf(format, args...))
}

// Verdict prints a compatibility verdict with its level coloured by severity.
func (p *Printer) Verdict(v domain.Verdict) {
	fmt.Fprintf(p.w, "%s %s\n", p.paint(verdictColor(v.Level), "["+string(v.Level)+"]"), v.Message)
}

// Outcome prints the terminal state of a pipeline call.
func (p *Printer) Outcome(res *domain.Result) {
	if res == nil {
		return
	}
	label := p.paint(outcomeColor(res.Outcome), string(res.Outcome))
	if res.Reason != nil {
		fmt.Fprintf(p.w, "%s %s: %v\n", res.Op, label, res.Reason)
		return
	}
	fmt.Fprintf(p.w, "%s %s (%s)\n", res.Op, label, res.Elapsed.Round(time.Millisecond))
}

func verdictColor(level domain.VerdictLevel) color.Attribute {
	switch level {
	case domain.VerdictPass:
		return color.FgGreen
	case domain.VerdictUnsupported, domain.VerdictHighRisk:
		return color.FgRed
	default:
		return color.FgYellow
	}
}

func outcomeColor(o domain.Outcome) color.Attribute {
	switch o {
	case domain.OutcomeSucceeded:
		return color.FgGreen
	case domain.OutcomeRolledBack, domain.OutcomeCanceled:
		return color.FgYellow
	default:
		return color.FgRed
	}
}
