package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestConfirm_ReasksUntilValid(t *testing.T) {
	var out bytes.Buffer
	p := NewLinePrompter(NewStreamReader(strings.NewReader("maybe\nYES\n"), &out), NewReporter(&out, true))

	ok, err := p.Confirm("Continue?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected yes")
	}
	if !strings.Contains(out.String(), "Please enter either 'yes' or 'no'") {
		t.Errorf("expected re-ask notice, got %q", out.String())
	}
	if strings.Count(out.String(), "Continue? (yes/no): ") != 2 {
		t.Errorf("expected the question twice, got %q", out.String())
	}
}

func TestConfirm_Answers(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"y", true},
		{"yes", true},
		{" Yes ", true},
		{"n", false},
		{"NO", false},
	}

	for _, tt := range tests {
		got, err := Script(tt.answer).Confirm("q")
		if err != nil {
			t.Fatalf("answer %q: unexpected error: %v", tt.answer, err)
		}
		if got != tt.want {
			t.Errorf("answer %q: got %v, want %v", tt.answer, got, tt.want)
		}
	}
}

func TestScript_ExhaustedIsInterrupt(t *testing.T) {
	p := Script("first")

	line, err := p.Line("path")
	if err != nil || line != "first" {
		t.Fatalf("got %q, %v", line, err)
	}
	if err := p.Acknowledge("press enter"); !errors.Is(err, ErrInterrupted) {
		t.Errorf("expected ErrInterrupted, got %v", err)
	}
}

func TestLine_TrimsInput(t *testing.T) {
	line, err := Script(`  D:\Games\Doom  `).Line("path")
	if err != nil {
		t.Fatal(err)
	}
	if line != `D:\Games\Doom` {
		t.Errorf("got %q", line)
	}
}

func TestReporter_Plain(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, true)

	r.Warn("not enough space in %q", "D:\\")
	r.Banner("doomdumper", "a longer second line")

	got := out.String()
	if strings.Contains(got, "\x1b[") {
		t.Errorf("plain reporter emitted escape codes: %q", got)
	}
	if !strings.HasPrefix(got, "not enough space in \"D:\\\\\"\n") {
		t.Errorf("unexpected warn output: %q", got)
	}
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")[1:]
	for _, l := range lines {
		if len(l) != len(lines[0]) {
			t.Errorf("banner lines are not padded evenly: %q", lines)
			break
		}
	}
}
