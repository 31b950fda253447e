package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corey/symdex/internal/adapters/treesitter"
)

var grammarCmd = &cobra.Command{
	Use:   "grammar",
	Short: "Inspect tree-sitter grammars",
	Long:  "List compiled-in and dynamically loaded grammars, and the shared-library search paths.",
}

var grammarListCmd = &cobra.Command{
	Use:   "list",
	Short: "List grammars known to the capability table",
	RunE:  runGrammarList,
}

var grammarPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show grammar search paths",
	RunE:  runGrammarPath,
}

func init() {
	grammarCmd.AddCommand(grammarListCmd)
	grammarCmd.AddCommand(grammarPathCmd)
}

func grammarPaths() []string {
	if len(cfg.Grammars.Paths) > 0 {
		return cfg.Grammars.Paths
	}
	return treesitter.DefaultGrammarPaths(projectRoot())
}

func runGrammarList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	listed := make(map[string]bool)

	fmt.Fprintf(out, "%s⚡ %d languages registered%s\n", colorBold, a.Catalog.Len(), colorReset)
	fmt.Fprintln(out, strings.Repeat("─", 50))
	for _, g := range a.Capabilities.Grammars() {
		if listed[g.Language] {
			continue
		}
		listed[g.Language] = true

		status := "  "
		version := g.Version
		if l, ok := a.Catalog.Get(g.Language); ok {
			version = l.GrammarVersion()
			status = "B "
			if a.Catalog.IsDynamic(g.Language) {
				status = "D "
			}
		}
		fmt.Fprintf(out, "  %s%-12s %-8s %s\n", status, g.Language, version, strings.Join(g.Extensions, " "))
	}
	// Registered languages the table does not describe extract best-effort.
	for _, name := range a.Catalog.Languages() {
		if listed[name] {
			continue
		}
		l, _ := a.Catalog.Get(name)
		fmt.Fprintf(out, "  %s? %-12s %-8s %s (not in capability table)%s\n",
			colorYellow, name, l.GrammarVersion(), strings.Join(l.Extensions(), " "), colorReset)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "B = built-in (compiled)  D = dynamic (shared library)  ? = untabled")
	fmt.Fprintf(out, "Search paths: %s\n", strings.Join(grammarPaths(), ", "))
	return nil
}

func runGrammarPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	loader := treesitter.NewDynamicLoader(grammarPaths())
	defer loader.Close()

	for _, p := range loader.SearchPaths() {
		exists := "  "
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			exists = "* "
		}
		fmt.Fprintf(out, "%s%s\n", exists, p)
	}
	if installed := loader.InstalledGrammars(); len(installed) > 0 {
		fmt.Fprintf(out, "\ninstalled: %s\n", strings.Join(installed, ", "))
	}
	fmt.Fprintf(out, "\n* = directory exists   library names: <lang>%s (%s)\n",
		treesitter.LibExtension(), treesitter.PlatformString())
	return nil
}
