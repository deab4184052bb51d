package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/doomdumper/doomdumper/internal/config"
	"github.com/doomdumper/doomdumper/pkg/appx"
	"github.com/doomdumper/doomdumper/pkg/archive"
	"github.com/doomdumper/doomdumper/pkg/console"
	"github.com/doomdumper/doomdumper/pkg/db"
	"github.com/doomdumper/doomdumper/pkg/dumper"
	appfsm "github.com/doomdumper/doomdumper/pkg/fsm"
	"github.com/doomdumper/doomdumper/pkg/ledger"
	"github.com/doomdumper/doomdumper/pkg/pathcheck"
	"github.com/doomdumper/doomdumper/pkg/platform"
	"github.com/doomdumper/doomdumper/pkg/process"
	"github.com/doomdumper/doomdumper/pkg/registration"
	"github.com/doomdumper/doomdumper/pkg/security"
	"github.com/doomdumper/doomdumper/pkg/storage"
	"github.com/doomdumper/doomdumper/pkg/workflow"
)

const gameTitle = "DOOM Eternal"

// Replaced in tests.
var (
	isElevated          = platform.IsElevated
	enableDeveloperMode = platform.EnableDeveloperMode
	buildDeps           = collaborators
)

func runSession(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	// A second interrupt kills the process.
	go func() {
		<-ctx.Done()
		stop()
	}()

	reporter := console.NewReporter(cmd.OutOrStdout(), noColor)
	prompt, closePrompt := newPrompter(cmd, reporter)
	defer closePrompt()
	defer prompt.Acknowledge("\nPress enter to exit . . .")

	if !isElevated() {
		reporter.Error("Administrator Mode required. Please re-run this program as Administrator.")
		exitCode = 1
		return nil
	}

	if err := welcome(reporter, prompt); err != nil {
		return nil
	}
	if err := enableDeveloperMode(); err != nil {
		slog.Warn("developer_mode_failed", "error", err)
		reporter.Warn("Couldn't enable developer mode: %v", err)
	}

	final := runWorkflow(ctx, cmd, cfg, reporter, prompt)
	summarize(reporter, final)
	return nil
}

// newPrompter uses line editing on a terminal and plain reads otherwise.
func newPrompter(cmd *cobra.Command, reporter *console.Reporter) (console.Prompter, func()) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && readline.IsTerminal(int(f.Fd())) {
		term, err := console.NewTerminal()
		if err == nil {
			return console.NewLinePrompter(term, reporter), func() { term.Close() }
		}
		slog.Warn("terminal_unavailable", "error", err)
	}
	return console.NewLinePrompter(console.NewStreamReader(cmd.InOrStdin(), cmd.OutOrStdout()), reporter), func() {}
}

func welcome(r *console.Reporter, p console.Prompter) error {
	r.Banner(
		"UWP-DOOMdumper",
		"",
		"ALLOWS MODS ON GAME PASS",
		"",
		"A tool that grants full control over your UWP",
		"DOOM Eternal installation, by reinstalling the",
		"game to a custom location.",
	)
	r.Blank()
	r.Warn("This program will allow you to utilize EternalModInjector, with the")
	r.Warn("gamepass/Windows Store version of DOOM Eternal.")
	r.Warn("Your game will be copied to a location of your choosing, then removed")
	r.Warn("from the original location. You'll need 75GB free for this.")
	r.Blank()
	if err := p.Acknowledge("Press enter to see update warning."); err != nil {
		return err
	}
	r.Blank()

	r.Warn("A WARNING ABOUT GAME UPDATES: Currently, there is no way to get updates")
	r.Warn("through the Microsoft Store if your game is modded. To update, you will")
	r.Warn("need to uninstall and reinstall the game, then run the latest tools to")
	r.Warn("use mods again.")
	r.Blank()
	if err := p.Acknowledge("Press enter to proceed . . ."); err != nil {
		return err
	}
	r.Blank()
	return nil
}

// collaborators builds every workflow dependency from the configuration.
func collaborators(ctx context.Context, cmd *cobra.Command, c *config.Config, reporter *console.Reporter, prompt console.Prompter) workflow.Deps {
	fs := afero.NewOsFs()
	pm := appx.NewPowerShell(appx.ExecRunner{}, c.PowerShell)
	led := ledger.New(fs, c.LedgerPath)

	var remote *archive.Remote
	if c.ArchiveBucket != "" {
		client, err := storage.NewClient(ctx, fs, c.ArchiveBucket, c.ArchiveRegion)
		if err != nil {
			slog.Warn("archive_remote_unavailable", "error", err)
		} else {
			remote = &archive.Remote{Downloader: client, Key: c.ArchiveKey, SHA256: c.ArchiveSHA256, CacheDir: c.ArchiveCacheDir}
		}
	}
	limits := security.Limits{
		MaxFileSize:         c.MaxFileSize,
		MaxTotalSize:        c.MaxTotalSize,
		MaxCompressionRatio: c.MaxCompressionRatio,
	}

	return workflow.Deps{
		Probe:       appx.NewProbe(pm, c.PackageID, c.TargetVersion),
		Ledger:      led,
		Validator:   pathcheck.NewValidator(fs, prompt, pathcheck.WithMinFreeBytes(c.MinFreeBytes)),
		Locator:     process.NewLocator(process.System{}, prompt, reporter, gameTitle),
		Dumper:      dumper.New(fs, dumper.ExecRunner{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}, process.System{}, reporter, c.DumpTool),
		Registrar:   registration.NewCoordinator(pm, c.PackageID, led, prompt, reporter),
		Extractor:   archive.NewExtractor(fs, c.ArchivePath, security.NewValidator(limits), remote, reporter),
		Prompt:      prompt,
		Reporter:    reporter,
		ProcessName: c.ProcessName,
	}
}

// runWorkflow runs one migration, journaled and recorded in the history when
// those are available. Neither is required for the migration itself.
func runWorkflow(ctx context.Context, cmd *cobra.Command, c *config.Config, reporter *console.Reporter, prompt console.Prompter) workflow.State {
	runID := uuid.NewString()
	deps := buildDeps(ctx, cmd, c, reporter, prompt)

	history := openHistory(ctx, c, runID)
	if history != nil {
		defer history.Close()
		deps.OnTransition = history.record
	}
	driver := workflow.NewDriver(deps)

	var final workflow.State = workflow.Start{}
	if c.Journal {
		if err := ensureDirectories(nil, []string{c.FSMDBPath}); err != nil {
			slog.Warn("fsm_journal_unavailable", "error", err)
		} else if out, err := appfsm.Run(ctx, c.FSMDBPath, runID, driver, journalLog); err != nil {
			slog.Warn("fsm_journal_unavailable", "error", err)
		} else {
			final = out
		}
	}
	if !workflow.Terminal(final) {
		final = driver.Run(ctx, final)
	}

	if history != nil {
		history.finish(final)
	}
	slog.Info("session_complete", "run_id", runID, "state", final.Kind())
	return final
}

// runHistory records one run.
type runHistory struct {
	ctx   context.Context
	repo  *db.Repository
	runID string
}

func openHistory(ctx context.Context, c *config.Config, runID string) *runHistory {
	if err := ensureDirectories([]string{c.SQLitePath}, nil); err != nil {
		slog.Warn("history_unavailable", "error", err)
		return nil
	}
	repo, err := db.NewRepository(c.SQLitePath, clock.WallClock)
	if err != nil {
		slog.Warn("history_unavailable", "error", err)
		return nil
	}
	// History writes must outlive an interrupt of the session.
	hctx := context.WithoutCancel(ctx)
	if _, err := repo.StartRun(hctx, runID); err != nil {
		slog.Warn("history_unavailable", "error", err)
		repo.Close()
		return nil
	}
	return &runHistory{ctx: hctx, repo: repo, runID: runID}
}

func (h *runHistory) record(from, to workflow.State) {
	snap := workflow.Describe(to)
	t := &db.Transition{
		RunID:  h.runID,
		From:   string(from.Kind()),
		To:     string(snap.Kind),
		Phase:  workflow.Phase(from),
		Path:   snap.Path,
		PID:    snap.PID,
		Detail: snap.Detail,
	}
	if err := h.repo.RecordTransition(h.ctx, t); err != nil {
		slog.Warn("history_record_failed", "run_id", h.runID, "error", err)
	}
}

func (h *runHistory) finish(final workflow.State) {
	snap := workflow.Describe(final)
	if err := h.repo.FinishRun(h.ctx, h.runID, runStatus(final), string(snap.Kind), snap.Path, snap.Detail); err != nil {
		slog.Warn("history_finish_failed", "run_id", h.runID, "error", err)
	}
}

func (h *runHistory) Close() error {
	return h.repo.Close()
}

// runStatus maps a final state to its history status.
func runStatus(s workflow.State) string {
	switch s.(type) {
	case workflow.Finished:
		return db.StatusFinished
	case workflow.Deferred:
		return db.StatusDeferred
	case workflow.Halted:
		return db.StatusHalted
	}
	return db.StatusRunning
}

// summarize closes the session with a line for stops the workflow did not
// already explain.
func summarize(r *console.Reporter, s workflow.State) {
	h, ok := s.(workflow.Halted)
	if !ok {
		return
	}
	switch h.Reason {
	case workflow.ReasonInterrupted:
		r.Blank()
		r.Warn("Cancelled. Nothing was uninstalled.")
	case workflow.ReasonFailed:
		r.Error("Stopped: %v", h.Err)
	}
}
