package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corey/symdex/internal/domain/capability"
	"github.com/corey/symdex/internal/ports"
)

var (
	capsConstruct string
	capsJSON      bool
)

var capabilitiesCmd = &cobra.Command{
	Use:     "capabilities [language]",
	Aliases: []string{"caps"},
	Short:   "Show what each grammar supports",
	Long: `Prints the capability table: per grammar version, which constructs are
supported, partially supported (with a note) or unsupported.

  symdex capabilities                          all grammars
  symdex capabilities sql                      constructs for one grammar
  symdex capabilities sql --construct CreateProcedure`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCapabilities,
}

func init() {
	capabilitiesCmd.Flags().StringVar(&capsConstruct, "construct", "", "Answer for a single construct")
	capabilitiesCmd.Flags().BoolVar(&capsJSON, "json", false, "Print as JSON")
}

func runCapabilities(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	reg := a.Capabilities
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		if capsJSON {
			return writeJSON(out, reg.Grammars())
		}
		fmt.Fprintf(out, "%s⚡ capability table v%d%s │ %d grammars\n", colorBold, reg.Version(), colorReset, len(reg.Grammars()))
		for _, g := range reg.Grammars() {
			s, p, u := tally(reg, g)
			status := "  "
			if l, ok := a.Catalog.Get(g.Language); ok {
				if l.GrammarVersion() == g.Version {
					status = "B "
				} else {
					status = colorYellow + "≠ " + colorReset
				}
			}
			fmt.Fprintf(out, "  %s%-12s %-8s %s%d ok%s %s%d partial%s %s%d unsupported%s  %s\n",
				status, g.Language, g.Version,
				colorGreen, s, colorReset, colorYellow, p, colorReset, colorRed, u, colorReset,
				colorGray+strings.Join(g.Extensions, " ")+colorReset)
		}
		fmt.Fprintln(out, "\nB = grammar registered at the tabled version  ≠ = registered at another version")
		return nil
	}

	g, ok := reg.Grammar(args[0])
	if l, registered := a.Catalog.Get(args[0]); registered {
		for _, cand := range reg.Grammars() {
			if cand.Language == args[0] && cand.Version == l.GrammarVersion() {
				g = cand
			}
		}
	}
	if !ok {
		return fmt.Errorf("no capability entry for %q", args[0])
	}
	if capsConstruct != "" {
		s := reg.Supports(g.Language, g.Version, capsConstruct)
		if capsJSON {
			return writeJSON(out, map[string]string{
				"language": g.Language, "grammarVersion": g.Version,
				"construct": capsConstruct, "status": string(s.Status), "note": s.Note,
			})
		}
		fmt.Fprintf(out, "%s@%s %s: %s\n", g.Language, g.Version, capsConstruct, formatStatus(s))
		return nil
	}
	if capsJSON {
		return writeJSON(out, g)
	}
	fmt.Fprintf(out, "%s⚡ %s@%s%s  %s\n", colorBold, g.Language, g.Version, colorReset, strings.Join(g.Extensions, " "))
	if g.Repo != "" {
		fmt.Fprintf(out, "  %s%s%s\n", colorGray, g.Repo, colorReset)
	}
	for _, c := range g.Constructs {
		fmt.Fprintf(out, "  %-22s %s\n", c.Name, formatStatus(reg.Supports(g.Language, g.Version, c.Name)))
	}
	return nil
}

func tally(reg *capability.Registry, g capability.Grammar) (supported, partial, unsupported int) {
	for _, c := range g.Constructs {
		switch reg.Supports(g.Language, g.Version, c.Name).Status {
		case ports.Supported:
			supported++
		case ports.PartiallySupported:
			partial++
		case ports.Unsupported:
			unsupported++
		}
	}
	return
}

func formatStatus(s ports.Support) string {
	var color string
	switch s.Status {
	case ports.Supported:
		color = colorGreen
	case ports.PartiallySupported:
		color = colorYellow
	case ports.Unsupported:
		color = colorRed
	default:
		color = colorGray
	}
	msg := color + string(s.Status) + colorReset
	if s.Note != "" {
		msg += "  " + s.Note
	}
	return msg
}
