package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/spf13/cobra"

	"github.com/doomdumper/doomdumper/internal/config"
	"github.com/doomdumper/doomdumper/pkg/appx"
	"github.com/doomdumper/doomdumper/pkg/console"
	"github.com/doomdumper/doomdumper/pkg/workflow"
)

type fixedProbe struct{ v appx.Verdict }

func (p fixedProbe) Probe(context.Context) (appx.Verdict, error) { return p.v, nil }

const exitPrompt = "Press enter to exit . . ."

// sessionResult is what one scripted session left behind.
type sessionResult struct {
	out       string
	exitCode  int
	depsBuilt bool
}

// runScripted runs the interactive session against scripted stdin with the
// platform and collaborators replaced.
func runScripted(c *qt.C, elevated bool, stdin string, verdict appx.Verdict) sessionResult {
	dir := c.TempDir()
	origCfg, origExit, origElevated, origDevMode, origDeps := cfg, exitCode, isElevated, enableDeveloperMode, buildDeps
	c.Cleanup(func() {
		cfg, exitCode, isElevated, enableDeveloperMode, buildDeps = origCfg, origExit, origElevated, origDevMode, origDeps
	})

	var res sessionResult
	cfg = &config.Config{SQLitePath: filepath.Join(dir, "history.db")}
	exitCode = 0
	noColor = true
	isElevated = func() bool { return elevated }
	enableDeveloperMode = func() error { return nil }
	buildDeps = func(_ context.Context, _ *cobra.Command, _ *config.Config, r *console.Reporter, p console.Prompter) workflow.Deps {
		res.depsBuilt = true
		return workflow.Deps{Probe: fixedProbe{v: verdict}, Reporter: r, Prompt: p}
	}

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)

	c.Assert(runSession(cmd, nil), qt.IsNil)
	res.out = out.String()
	res.exitCode = exitCode
	return res
}

func TestRunSession(t *testing.T) {
	busy := appx.Verdict{Kind: appx.Busy, Status: appx.InstallationStatus{UpdateState: appx.Updating}}
	tests := []struct {
		name      string
		elevated  bool
		stdin     string
		wantExit  int
		wantOut   []string
		wantDeps  bool
		forbidOut []string
	}{
		{
			name:      "not elevated",
			elevated:  false,
			stdin:     "\n",
			wantExit:  1,
			wantOut:   []string{"Administrator Mode required", exitPrompt},
			forbidOut: []string{"UWP-DOOMdumper"},
		},
		{
			name:      "interrupted at the welcome prompt",
			elevated:  true,
			stdin:     "",
			wantExit:  0,
			wantOut:   []string{"Press enter to see update warning.", exitPrompt},
			forbidOut: []string{"A WARNING ABOUT GAME UPDATES"},
		},
		{
			name:     "busy installation",
			elevated: true,
			stdin:    "\n\n\n",
			wantExit: 0,
			wantOut:  []string{"An update is in progress", exitPrompt},
			wantDeps: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			res := runScripted(c, tt.elevated, tt.stdin, busy)

			c.Assert(res.exitCode, qt.Equals, tt.wantExit)
			c.Assert(res.depsBuilt, qt.Equals, tt.wantDeps)
			for _, want := range tt.wantOut {
				c.Assert(res.out, qt.Contains, want)
			}
			for _, forbid := range tt.forbidOut {
				c.Assert(strings.Contains(res.out, forbid), qt.IsFalse, qt.Commentf("unexpected %q", forbid))
			}
			// The exit acknowledgement is always the last thing asked.
			c.Assert(strings.HasSuffix(strings.TrimSpace(res.out), exitPrompt), qt.IsTrue, qt.Commentf("output:\n%s", res.out))
		})
	}
}
