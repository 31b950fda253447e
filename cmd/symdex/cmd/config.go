package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corey/symdex/internal/app"
)

var configJSON bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long:  "Shows the workspace root, config file, store, grammar paths and scan settings after defaults, file and SYMDEX_* overrides.",
	RunE:  runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configJSON, "json", false, "Print the full configuration as JSON")
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if configJSON {
		return writeJSON(out, settings.AllSettings())
	}

	paths := app.NewPaths(projectRoot())
	file := settings.ConfigFileUsed()
	if file == "" {
		file = "(none, defaults + environment)"
	}
	capTable := cfg.Capabilities.Path
	if capTable == "" {
		capTable = "(embedded)"
	}
	workers := fmt.Sprint(cfg.Workers)
	if cfg.Workers == 0 {
		workers = "GOMAXPROCS"
	}

	fmt.Fprintf(out, "%s⚡ symdex config%s\n", colorBold, colorReset)
	fmt.Fprintf(out, "  Root:          %s\n", paths.Workspace)
	fmt.Fprintf(out, "  Config file:   %s\n", file)
	fmt.Fprintf(out, "  Store:         %s (%s)\n", cfg.Store.Backend, cfg.StorePath(paths.Workspace))
	fmt.Fprintf(out, "  Capabilities:  %s\n", capTable)
	fmt.Fprintf(out, "  Grammar paths: %s\n", strings.Join(grammarPaths(), ", "))
	fmt.Fprintf(out, "  Workers:       %s\n", workers)
	fmt.Fprintf(out, "  File timeout:  %s\n", cfg.FileTimeout)
	fmt.Fprintf(out, "  Documents:     %d trees / %d MiB\n", cfg.Documents.MaxDocuments, cfg.Documents.MaxBytes>>20)
	fmt.Fprintf(out, "  Scan:          include=%v exclude=%v max=%d KiB gitignore=%t\n",
		cfg.Scan.Include, cfg.Scan.Exclude, cfg.Scan.MaxFileBytes>>10, cfg.Scan.RespectGitignore)
	fmt.Fprintf(out, "  Log:           %s/%s\n", cfg.Log.Level, cfg.Log.Format)
	return nil
}
