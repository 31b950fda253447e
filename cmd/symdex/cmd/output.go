package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/corey/symdex/internal/domain/orchestrator"
	"github.com/corey/symdex/internal/ports"
)

// ANSI color codes for terminal output.
const (
	colorReset   = "\033[0m"
	colorBold    = "\033[1m"
	colorCyan    = "\033[36m"
	colorMagenta = "\033[35m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorRed     = "\033[31m"
	colorGray    = "\033[90m"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatSymbols renders symbols grep-style:
//
//	⚡ 3 symbols │ 2 files
//	  path/file.go:12  Function  pkg.Type.Name  func Name(x int) error
func formatSymbols(syms []ports.Symbol) string {
	files := make(map[string]struct{})
	for _, s := range syms {
		files[s.FileID] = struct{}{}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s⚡ %d symbols%s │ %d files\n", colorBold, len(syms), colorReset, len(files))
	for _, s := range syms {
		fmt.Fprintf(&sb, "  %s%s%s:%d  %s%-13s%s %s",
			colorCyan, s.FileID, colorReset, s.StartLine,
			colorMagenta, s.Kind, colorReset, s.QualifiedName("."))
		if s.Signature != "" {
			fmt.Fprintf(&sb, "  %s%s%s", colorGray, firstLine(s.Signature), colorReset)
		}
		if s.Confidence == ports.ConfidenceBestEffort {
			fmt.Fprintf(&sb, "  %s~%s", colorYellow, colorReset)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

// formatScan summarizes a scan report; failures are listed per file.
func formatScan(report *orchestrator.ScanReport, ignored, tooLarge, unknown int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s⚡ symdex scanned %d files%s │ %d symbols │ %s\n",
		colorBold, len(report.Results), colorReset, report.Symbols(), report.Duration.Round(1e6))
	fmt.Fprintf(&sb, "  %sok%s        %d\n", colorGreen, colorReset, report.Succeeded())

	failures := report.Failures()
	kinds := make([]string, 0, len(failures))
	for k := range failures {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(&sb, "  %s%-9s%s %d\n", colorRed, k, colorReset, failures[orchestrator.ErrorKind(k)])
	}

	partial := 0
	for _, r := range report.Results {
		if r.Batch != nil && r.Batch.HasParseErrors {
			partial++
		}
	}
	if partial > 0 {
		fmt.Fprintf(&sb, "  %spartial%s   %d (parse errors, intact declarations kept)\n", colorYellow, colorReset, partial)
	}
	if ignored+tooLarge+unknown > 0 {
		fmt.Fprintf(&sb, "  %sskipped   %d ignored, %d too large, %d no grammar%s\n",
			colorGray, ignored, tooLarge, unknown, colorReset)
	}

	for _, r := range report.Results {
		switch {
		case r.Err != nil:
			fmt.Fprintf(&sb, "  %s✗%s %s\n", colorRed, colorReset, r.Err.Error())
			if r.Err.Hint != "" {
				fmt.Fprintf(&sb, "    %s%s%s\n", colorGray, r.Err.Hint, colorReset)
			}
		case r.StoreErr != nil:
			fmt.Fprintf(&sb, "  %s!%s %s: store: %v\n", colorYellow, colorReset, r.FileID, r.StoreErr)
		}
	}
	return sb.String()
}

// formatDiagnostics lists a batch's diagnostics, one per line.
func formatDiagnostics(b *ports.SymbolBatch) string {
	var sb strings.Builder
	for _, d := range b.Diagnostics {
		fmt.Fprintf(&sb, "  %s%s%s", colorYellow, d.Construct, colorReset)
		if d.Line > 0 {
			fmt.Fprintf(&sb, " (line %d)", d.Line)
		}
		fmt.Fprintf(&sb, ": %s\n", d.Note)
	}
	return sb.String()
}
