package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInterrupted is returned by a Prompter when the operator aborts the
// session (Ctrl+C at a prompt, or the input stream closing).
var ErrInterrupted = errors.New("interrupted by operator")

// Prompter is the single suspension point for operator input.
type Prompter interface {
	// Line asks for a single line of free text.
	Line(prompt string) (string, error)
	// Confirm asks a yes/no question until it gets one of yes, y, no, n.
	Confirm(prompt string) (bool, error)
	// Acknowledge blocks until the operator presses enter.
	Acknowledge(prompt string) error
}

// LineReader reads one line of input after showing a prompt.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// LinePrompter implements Prompter over any LineReader.
type LinePrompter struct {
	in       LineReader
	reporter *Reporter
}

// NewLinePrompter returns a Prompter reading from in. Re-ask notices go to
// reporter.
func NewLinePrompter(in LineReader, reporter *Reporter) *LinePrompter {
	return &LinePrompter{in: in, reporter: reporter}
}

func (p *LinePrompter) Line(prompt string) (string, error) {
	line, err := p.in.ReadLine(prompt + ": ")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *LinePrompter) Confirm(prompt string) (bool, error) {
	for {
		line, err := p.in.ReadLine(prompt + " (yes/no): ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "yes", "y":
			return true, nil
		case "no", "n":
			return false, nil
		}
		p.reporter.Warn("Please enter either 'yes' or 'no'")
		p.reporter.Blank()
	}
}

func (p *LinePrompter) Acknowledge(prompt string) error {
	_, err := p.in.ReadLine(prompt)
	return err
}

// StreamReader is a LineReader over a plain stream. End of input is reported
// as ErrInterrupted.
type StreamReader struct {
	r *bufio.Reader
	w io.Writer
}

// NewStreamReader echoes prompts to w and reads answers from r.
func NewStreamReader(r io.Reader, w io.Writer) *StreamReader {
	return &StreamReader{r: bufio.NewReader(r), w: w}
}

func (s *StreamReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(s.w, prompt)
	line, err := s.r.ReadString('\n')
	if err == io.EOF && line != "" {
		return strings.TrimRight(line, "\r\n"), nil
	}
	if err == io.EOF {
		return "", ErrInterrupted
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Script returns a Prompter that answers from a fixed list of lines, one per
// prompt, and reports ErrInterrupted once the list is exhausted.
func Script(lines ...string) *LinePrompter {
	var input string
	if len(lines) > 0 {
		input = strings.Join(lines, "\n") + "\n"
	}
	return NewLinePrompter(NewStreamReader(strings.NewReader(input), io.Discard), Discard())
}
