package console

import (
	"errors"
	"io"

	"github.com/chzyer/readline"
)

// Terminal is a LineReader backed by readline, for interactive sessions.
type Terminal struct {
	rl *readline.Instance
}

// NewTerminal opens the controlling terminal for line editing.
func NewTerminal() (*Terminal, error) {
	rl, err := readline.NewEx(&readline.Config{
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}
	return &Terminal{rl: rl}, nil
}

func (t *Terminal) ReadLine(prompt string) (string, error) {
	t.rl.SetPrompt(prompt)
	line, err := t.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return "", ErrInterrupted
	}
	return line, err
}

// Close restores the terminal.
func (t *Terminal) Close() error {
	return t.rl.Close()
}
