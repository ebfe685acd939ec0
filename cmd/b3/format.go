package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/muesli/termenv"

	"github.com/zhcmeng/behavior3editor-sub000/internal/diag"
)

// kindColors maps diagnostic kinds to ANSI colours.
var kindColors = map[diag.Kind]string{
	diag.Structural: "3", // yellow
	diag.Reference:  "5", // magenta
	diag.IO:         "1", // red
	diag.Config:     "6", // cyan
}

// outputResult writes result to w in the --format chosen.
func outputResult(w io.Writer, result CLIResult) error {
	if flagFormat == "json" {
		return outputResultJSON(w, result)
	}
	formatResultText(w, result)
	return nil
}

func outputResultJSON(w io.Writer, result CLIResult) error {
	if result.Diagnostics == nil {
		result.Diagnostics = []diag.Diagnostic{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// formatResultText prints the diagnostics as aligned columns followed by a
// summary line. Kinds are coloured only when w is a terminal.
func formatResultText(w io.Writer, result CLIResult) {
	out := termenv.NewOutput(w)

	if b := result.Build; b != nil {
		fmt.Fprintf(w, "Build %s: %s (%d built, %d skipped)\n", b.ID, b.Status, b.FilesBuilt, b.FilesSkipped)
	}

	if len(result.Diagnostics) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tPATH\tNODE\tMESSAGE")
		for _, d := range result.Diagnostics {
			kind := out.String(string(d.Kind)).Foreground(out.Color(kindColors[d.Kind]))
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", kind, d.Path, nodeLabel(d), d.Message)
		}
		tw.Flush()
	}

	fmt.Fprintln(w, summarize(result.Diagnostics))
}

// nodeLabel renders the node a diagnostic points at as "id|name".
func nodeLabel(d diag.Diagnostic) string {
	if d.NodeID == "" && d.NodeName == "" {
		return "-"
	}
	return d.NodeID + "|" + d.NodeName
}

// summarize returns e.g. "3 diagnostics (io: 1, structural: 2)".
func summarize(ds []diag.Diagnostic) string {
	if len(ds) == 0 {
		return "no diagnostics"
	}
	counts := make(map[string]int)
	for _, d := range ds {
		counts[string(d.Kind)]++
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s: %d", k, counts[k])
	}
	noun := "diagnostics"
	if len(ds) == 1 {
		noun = "diagnostic"
	}
	return fmt.Sprintf("%d %s (%s)", len(ds), noun, strings.Join(parts, ", "))
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
