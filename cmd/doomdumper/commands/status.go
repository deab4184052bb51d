package commands

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/doomdumper/doomdumper/pkg/appx"
	"github.com/doomdumper/doomdumper/pkg/errors"
	"github.com/doomdumper/doomdumper/pkg/ledger"
	"github.com/doomdumper/doomdumper/pkg/pathcheck"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the installation verdict and any pending recovery, changing nothing",
	Args:  cobra.NoArgs,
	RunE:  runStatusCmd,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	pm := appx.NewPowerShell(appx.ExecRunner{}, cfg.PowerShell)
	verdict, err := appx.NewProbe(pm, cfg.PackageID, cfg.TargetVersion).Probe(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "probe failed")
	}

	fs := afero.NewOsFs()
	pending, ok, err := ledger.New(fs, cfg.LedgerPath).Pending()
	if err != nil {
		return errors.Wrap(err, "ledger read failed")
	}
	printStatus(cmd.OutOrStdout(), verdict, pending, ok, ok && pathcheck.HasSentinel(fs, pending))
	return nil
}

func printStatus(w io.Writer, v appx.Verdict, pending string, hasPending, dumped bool) {
	fmt.Fprintf(w, "%-10s %s\n", "VERDICT", v.Kind)
	if v.Status.InstalledVersion != "" {
		fmt.Fprintf(w, "%-10s %s\n", "VERSION", v.Status.InstalledVersion)
	}
	if v.Status.InstallLocation != "" {
		fmt.Fprintf(w, "%-10s %s\n", "LOCATION", v.Status.InstallLocation)
	}
	switch {
	case !hasPending:
		fmt.Fprintf(w, "%-10s %s\n", "PENDING", "-")
	case dumped:
		fmt.Fprintf(w, "%-10s %s (dump complete, registration pending)\n", "PENDING", pending)
	default:
		fmt.Fprintf(w, "%-10s %s (no completed dump, marker is stale)\n", "PENDING", pending)
	}
}
