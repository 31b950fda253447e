package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corey/symdex/internal/domain/symbols"
	"github.com/corey/symdex/internal/ports"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the symbol store",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print counts as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	st := a.Store.Stats()
	out := cmd.OutOrStdout()
	if statsJSON {
		return writeJSON(out, map[string]any{
			"backend":     cfg.Store.Backend,
			"files":       st.Files,
			"symbols":     st.Symbols,
			"byKind":      st.ByKind,
			"maxRevision": a.Store.MaxRevision(),
		})
	}
	fmt.Fprint(out, formatStats(st, cfg.Store.Backend))
	return nil
}

func formatStats(st symbols.Stats, backend string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s⚡ %d files │ %d symbols%s %s(%s)%s\n",
		colorBold, st.Files, st.Symbols, colorReset, colorGray, backend, colorReset)

	kinds := make([]string, 0, len(st.ByKind))
	for k := range st.ByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(&sb, "  %-16s %d\n", k, st.ByKind[ports.SymbolKind(k)])
	}
	return sb.String()
}
