// Package logging provides the leveled console logger shared by the gateway,
// the store and the use cases.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Logger prefixes every line with a level tag. Debug lines are only
// written when verbose output was requested.
type Logger struct {
	out     *log.Logger
	verbose bool
	debug   *color.Color
	info    *color.Color
	warn    *color.Color
	fail    *color.Color
}

// New creates a Logger writing to w. Colors are used only when noColor is
// false, NO_COLOR is unset and w is a terminal.
func New(w io.Writer, verbose, noColor bool) *Logger {
	l := &Logger{
		out:     log.New(w, "", log.LstdFlags),
		verbose: verbose,
		debug:   color.New(color.FgHiBlack),
		info:    color.New(color.FgCyan),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed, color.Bold),
	}
	colored := !noColor && os.Getenv("NO_COLOR") == "" && isTerminal(w)
	for _, c := range []*color.Color{l.debug, l.info, l.warn, l.fail} {
		if !colored {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}
	return l
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Discard returns a Logger that drops everything. Useful in tests.
func Discard() *Logger {
	return New(io.Discard, false, true)
}

func (l *Logger) Debugf(format string, args ...any) {
	if !l.verbose {
		return
	}
	l.printf(l.debug, "[debug]", format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.printf(l.info, "[info]", format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.printf(l.warn, "[warn]", format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.printf(l.fail, "[error]", format, args...)
}

func (l *Logger) printf(c *color.Color, tag, format string, args ...any) {
	l.out.Printf("%s %s", c.Sprint(tag), fmt.Sprintf(format, args...))
}
