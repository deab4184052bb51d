// Package console holds the operator-facing side of a session: a stateless
// Reporter for messages and a Prompter for every point where the workflow
// waits on a human.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Reporter writes operator-facing messages. It carries no state beyond its
// writer and styles, so components can share one freely.
type Reporter struct {
	w         io.Writer
	info      *color.Color
	warn      *color.Color
	important *color.Color
	success   *color.Color
	failure   *color.Color
	banner    *color.Color
}

// NewReporter returns a Reporter writing to w. Colors are dropped when plain
// is true.
func NewReporter(w io.Writer, plain bool) *Reporter {
	r := &Reporter{
		w:         w,
		info:      color.New(),
		warn:      color.New(color.FgYellow),
		important: color.New(color.BgRed, color.FgBlack),
		success:   color.New(color.FgGreen),
		failure:   color.New(color.FgRed),
		banner:    color.New(color.BgBlue, color.FgWhite, color.Faint),
	}
	if plain {
		for _, c := range []*color.Color{r.info, r.warn, r.important, r.success, r.failure, r.banner} {
			c.DisableColor()
		}
	}
	return r
}

// Discard returns a Reporter that drops everything.
func Discard() *Reporter {
	return NewReporter(io.Discard, true)
}

func (r *Reporter) Info(format string, args ...any) {
	r.info.Fprintln(r.w, fmt.Sprintf(format, args...))
}

func (r *Reporter) Warn(format string, args ...any) {
	r.warn.Fprintln(r.w, fmt.Sprintf(format, args...))
}

func (r *Reporter) Important(format string, args ...any) {
	r.important.Fprintln(r.w, fmt.Sprintf(format, args...))
}

func (r *Reporter) Success(format string, args ...any) {
	r.success.Fprintln(r.w, fmt.Sprintf(format, args...))
}

func (r *Reporter) Error(format string, args ...any) {
	r.failure.Fprintln(r.w, fmt.Sprintf(format, args...))
}

// Banner prints lines padded to a common width on a colored background.
func (r *Reporter) Banner(lines ...string) {
	width := 0
	for _, l := range lines {
		width = max(width, len(l))
	}
	width += 4
	r.banner.Fprintln(r.w, strings.Repeat(" ", width))
	for _, l := range lines {
		r.banner.Fprintln(r.w, "  "+l+strings.Repeat(" ", width-len(l)-2))
	}
	r.banner.Fprintln(r.w, strings.Repeat(" ", width))
}

// Rule prints a horizontal rule in the important style.
func (r *Reporter) Rule(n int) {
	r.important.Fprintln(r.w, strings.Repeat("=", n))
}

// Blank prints an empty line.
func (r *Reporter) Blank() {
	fmt.Fprintln(r.w)
}
