package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corey/symdex/internal/adapters/fsnotify"
	"github.com/corey/symdex/internal/app"
)

var watchNoScan bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-extract files as they change",
	Long: `Runs a full scan, then watches the workspace and re-extracts each changed file
after a short debounce. Deleted files are forgotten. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoScan, "no-scan", false, "Skip the initial full scan")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	out := cmd.OutOrStdout()

	if !watchNoScan {
		d, report, err := a.Scan(ctx, nil, nil)
		if err != nil {
			return err
		}
		fmt.Fprint(out, formatScan(report, d.Ignored, d.TooLarge, d.Unknown))
	}

	w, err := fsnotify.NewWatcher(cfg.Watch.Debounce)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	fmt.Fprintf(out, "%s⚡ watching %s%s (Ctrl-C to stop)\n", colorBold, a.Paths.Workspace, colorReset)
	err = a.Watch(ctx, w, func(fileID string, removed bool, res *app.FileChange) {
		switch {
		case removed:
			fmt.Fprintf(out, "  %s-%s %s\n", colorGray, colorReset, fileID)
		case res.Err != nil:
			fmt.Fprintf(out, "  %s✗%s %v\n", colorRed, colorReset, res.Err)
		default:
			fmt.Fprintf(out, "  %s↻%s %s %s(%d symbols)%s\n", colorGreen, colorReset, fileID, colorGray, res.Symbols, colorReset)
		}
	})
	cs := a.Engine.Documents().Stats()
	fmt.Fprintf(out, "\n⚡ watch stopped %s│ cache %d hits, %d misses, %d evicted%s\n",
		colorGray, cs.Hits, cs.Misses, cs.Evictions, colorReset)
	return err
}
