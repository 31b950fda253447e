package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/corey/symdex/internal/domain/orchestrator"
)

var (
	scanJSON       bool
	scanNoProgress bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Extract symbols from every file in the workspace",
	Long: `Walks the workspace (honoring include/exclude globs and .gitignore), extracts
every file a grammar can handle on a parallel worker pool, and stores the
results. Files that fail are reported individually; the scan always completes.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print every batch and error as JSON")
	scanCmd.Flags().BoolVar(&scanNoProgress, "no-progress", false, "Disable the progress bar")
}

type scanFileJSON struct {
	FileID string                       `json:"fileId"`
	Batch  any                          `json:"batch,omitempty"`
	Error  *orchestrator.ExtractionError `json:"error,omitempty"`
	Store  string                       `json:"storeError,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := a.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}

	bar, done := newScanProgress(len(d.Files), scanJSON || scanNoProgress)
	d, report, err := a.Scan(ctx, d, done)
	if err != nil {
		return err
	}
	if bar != nil {
		_ = bar.Finish()
	}

	out := cmd.OutOrStdout()
	if scanJSON {
		files := make([]scanFileJSON, len(report.Results))
		for i, r := range report.Results {
			files[i] = scanFileJSON{FileID: r.FileID, Error: r.Err}
			if r.Batch != nil {
				files[i].Batch = r.Batch
			}
			if r.StoreErr != nil {
				files[i].Store = r.StoreErr.Error()
			}
		}
		return writeJSON(out, map[string]any{
			"scanId":     report.ScanID,
			"durationMs": report.Duration.Milliseconds(),
			"files":      files,
		})
	}
	fmt.Fprint(out, formatScan(report, d.Ignored, d.TooLarge, d.Unknown))
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return nil
}

// newScanProgress returns a progress bar over n files and the per-file
// callback that advances it. Both are nil when disabled.
func newScanProgress(n int, disabled bool) (*progressbar.ProgressBar, func(orchestrator.FileResult)) {
	if disabled || n == 0 {
		return nil, nil
	}
	bar := progressbar.NewOptions(n,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Extracting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
	var mu sync.Mutex
	return bar, func(orchestrator.FileResult) {
		mu.Lock()
		defer mu.Unlock()
		_ = bar.Add(1)
	}
}
