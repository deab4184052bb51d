package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/doomdumper/doomdumper/internal/config"
	"github.com/doomdumper/doomdumper/pkg/errors"
)

var rootCmd = &cobra.Command{
	Use:   "doomdumper",
	Short: "Move the Game Pass copy of DOOM Eternal to a moddable install",
	Long: `Copies the running store installation of DOOM Eternal to a directory of your
choice, replaces the store package with the copy, and unpacks EternalModInjector
next to it. Run it without arguments for the interactive session.`,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: teardown,
	RunE:              runSession,
}

var (
	// cfg is loaded once per invocation by setup.
	cfg *config.Config
	// exitCode is returned by Execute when no command failed.
	exitCode int
	noColor  bool
)

// Execute runs the command line and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return exitCode
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("package-id", "BethesdaSoftworks.DOOMEternal-PC", "Package identifier of the game")
	flags.String("process-name", "DOOMEternalx64vk.exe", "Executable name of the running game")
	flags.String("target-version", "1.0.5.0", "The only game version this build supports")
	flags.String("dump-tool", "UWPInjector.exe", "Dump tool executable")
	flags.String("powershell", "powershell.exe", "PowerShell executable")
	flags.String("ledger-path", "aborted", "Recovery marker file")
	flags.Uint64("min-free-bytes", 75*1024*1024*1024, "Free space required at the destination")
	flags.String("archive-path", "EternalModInjector-UWP.zip", "Companion archive (.zip or .tar.xz)")
	flags.String("archive-bucket", "", "S3 bucket to download the archive from when it is missing")
	flags.String("archive-key", "", "S3 key of the archive")
	flags.String("archive-region", "us-east-1", "S3 region")
	flags.String("archive-sha256", "", "Expected SHA-256 of the downloaded archive")
	flags.String("archive-cache-dir", "", "Download cache directory")
	flags.Int64("max-file-size", 2*1024*1024*1024, "Max size of one archive entry in bytes")
	flags.Int64("max-total-size", 20*1024*1024*1024, "Max total extraction size")
	flags.Float64("max-compression-ratio", 100.0, "Max compression ratio")
	flags.String("sqlite-path", "", "Run history database path")
	flags.String("fsm-db-path", "", "FSM journal directory")
	flags.Bool("journal", true, "Journal runs with the FSM manager")
	flags.String("log-file", "", "Log file path")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")

	for _, name := range []string{
		"package-id", "process-name", "target-version", "dump-tool", "powershell",
		"ledger-path", "min-free-bytes", "archive-path", "archive-bucket", "archive-key",
		"archive-region", "archive-sha256", "archive-cache-dir", "max-file-size",
		"max-total-size", "max-compression-ratio", "sqlite-path", "fsm-db-path",
		"journal", "log-file", "log-level",
	} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config invalid")
	}
	return setupLogging(cfg)
}

func teardown(cmd *cobra.Command, args []string) {
	closeLogging()
}
