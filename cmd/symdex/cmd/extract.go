package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract one file and print its symbol batch as JSON",
	Long: `Parses and extracts a single file, stores the batch, and prints it as JSON.
Parse errors do not fail the command: the batch carries hasParseErrors and
every intact declaration. Failures print the typed extraction error.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	res, ok, err := a.ExtractPath(cmd.Context(), path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: no grammar handles this file, or it is excluded by the scan settings", args[0])
	}
	if res.Err != nil {
		_ = writeJSON(cmd.OutOrStdout(), map[string]any{"error": res.Err})
		return res.Err
	}
	if res.StoreErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%swarning:%s batch not stored: %v\n", colorYellow, colorReset, res.StoreErr)
	}
	return writeJSON(cmd.OutOrStdout(), res.Batch)
}
