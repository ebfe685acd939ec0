package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhcmeng/behavior3editor-sub000/internal/diag"
	"github.com/zhcmeng/behavior3editor-sub000/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report [workspace]",
	Short: "Print the diagnostics of the last build",
	Long:  "Reads the build manifest and prints the diagnostics recorded by the most recent build, including those replayed for skipped files.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(workspaceArg(args))
	if err != nil {
		return err
	}
	dbPath := resolveDBPath(root)
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("no build manifest at %s", dbPath)
	}

	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening manifest: %w", err)
	}
	defer st.Close()

	result, err := loadReport(st, root)
	if err != nil {
		return err
	}
	if err := outputResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if result.HasErrors {
		return errDiagnostics
	}
	return nil
}

// loadReport assembles the result of the most recent build in st.
func loadReport(st *store.Store, root string) (CLIResult, error) {
	b, err := st.LatestBuild()
	if err != nil {
		return CLIResult{}, fmt.Errorf("reading manifest: %w", err)
	}
	if b == nil {
		return CLIResult{}, errors.New("no builds recorded")
	}
	recorded, err := st.Diagnostics(b.ID)
	if err != nil {
		return CLIResult{}, fmt.Errorf("reading manifest: %w", err)
	}

	ds := make([]diag.Diagnostic, len(recorded))
	for i, d := range recorded {
		ds[i] = diag.Diagnostic{
			Kind:     diag.Kind(d.Kind),
			Path:     d.Path,
			NodeID:   d.NodeID,
			NodeName: d.NodeName,
			Message:  d.Message,
		}
	}
	return CLIResult{
		Command:     "report",
		Workspace:   root,
		HasErrors:   len(ds) > 0 || b.Status == store.BuildFailure,
		Build:       newCLIBuild(b),
		Diagnostics: ds,
	}, nil
}
