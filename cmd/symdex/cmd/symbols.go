package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corey/symdex/internal/ports"
)

var (
	symbolsFile  string
	symbolsKinds []string
	symbolsJSON  bool
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols [name]",
	Short: "Query stored symbols",
	Long: `Looks symbols up in the persisted store (run "symdex scan" first).

  symdex symbols Handler               by exact name
  symdex symbols --file src/app.py     everything in one file
  symdex symbols --kind View,StoredRoutine`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSymbols,
}

func init() {
	symbolsCmd.Flags().StringVar(&symbolsFile, "file", "", "Only symbols from this workspace-relative file")
	symbolsCmd.Flags().StringSliceVar(&symbolsKinds, "kind", nil, "Filter by kind (repeatable or comma-separated)")
	symbolsCmd.Flags().BoolVar(&symbolsJSON, "json", false, "Print symbols as JSON")
}

func runSymbols(cmd *cobra.Command, args []string) error {
	kinds, err := parseKinds(symbolsKinds)
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var syms []ports.Symbol
	switch {
	case symbolsFile != "":
		syms = filterKinds(a.Store.FindByFile(a.Paths.Rel(symbolsFile)), kinds)
		if len(args) == 1 {
			syms = filterName(syms, args[0])
		}
	case len(args) == 1:
		syms = a.Store.FindByName(args[0], kinds...)
	default:
		syms = a.Store.FindAll(kinds...)
	}
	sort.SliceStable(syms, func(i, j int) bool {
		if syms[i].FileID != syms[j].FileID {
			return syms[i].FileID < syms[j].FileID
		}
		return syms[i].StartLine < syms[j].StartLine
	})

	out := cmd.OutOrStdout()
	if symbolsJSON {
		rows := make([]symbolJSON, len(syms))
		for i, s := range syms {
			rows[i] = symbolJSON{FileID: s.FileID, Symbol: s}
		}
		return writeJSON(out, rows)
	}
	fmt.Fprint(out, formatSymbols(syms))
	if symbolsFile != "" {
		if b, ok := a.Store.Batch(a.Paths.Rel(symbolsFile)); ok && len(b.Diagnostics) > 0 {
			fmt.Fprint(out, formatDiagnostics(b))
		}
	}
	return nil
}

// symbolJSON restores the file ID that batch JSON leaves to the enclosing
// batch.
type symbolJSON struct {
	FileID string `json:"fileId"`
	ports.Symbol
}

func parseKinds(raw []string) ([]ports.SymbolKind, error) {
	var kinds []ports.SymbolKind
	for _, r := range raw {
		k, err := ports.ParseSymbolKind(strings.TrimSpace(r))
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func filterKinds(syms []ports.Symbol, kinds []ports.SymbolKind) []ports.Symbol {
	if len(kinds) == 0 {
		return syms
	}
	var out []ports.Symbol
	for _, s := range syms {
		for _, k := range kinds {
			if s.Kind == k {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func filterName(syms []ports.Symbol, name string) []ports.Symbol {
	var out []ports.Symbol
	for _, s := range syms {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}
