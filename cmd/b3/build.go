package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	b3 "github.com/zhcmeng/behavior3editor-sub000"
	"github.com/zhcmeng/behavior3editor-sub000/internal/metrics"
	"github.com/zhcmeng/behavior3editor-sub000/internal/store"
)

var (
	flagOutput      string
	flagForce       bool
	flagMetricsFile string
	flagNoManifest  bool
)

var buildCmd = &cobra.Command{
	Use:   "build [workspace]",
	Short: "Build every tree of a project",
	Long:  "Resolves and validates every tree of the project, runs the build script and writes the normalized trees to the output directory. Exits with status 1 when any diagnostics are reported.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBuild,
}

var checkCmd = &cobra.Command{
	Use:   "check [workspace]",
	Short: "Validate every tree of a project without writing output",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func init() {
	buildCmd.Flags().StringVarP(&flagOutput, "output", "o", "build", "output directory, relative to the project root")
	buildCmd.Flags().BoolVar(&flagForce, "force", false, "rebuild every file even when the manifest says it is current")
	buildCmd.Flags().StringVar(&flagMetricsFile, "metrics-file", "", "write build metrics in the Prometheus text format")
	buildCmd.Flags().BoolVar(&flagNoManifest, "no-manifest", false, "do not read or write the build manifest")
}

func runBuild(cmd *cobra.Command, args []string) error {
	start := time.Now()
	logger := newLogger()
	wsArg := workspaceArg(args)

	root, err := projectRoot(wsArg)
	if err != nil {
		return err
	}

	opts := []b3.Option{b3.WithLogger(logger), b3.WithForce(flagForce)}

	var st *store.Store
	if !flagNoManifest {
		dbPath := resolveDBPath(root)
		st, err = openStore(dbPath)
		if err != nil {
			return err
		}
		defer st.Close()
		opts = append(opts, b3.WithStore(st))
	}

	var m *metrics.Build
	if flagMetricsFile != "" {
		m = metrics.New()
		opts = append(opts, b3.WithMetrics(m))
	}

	engine, err := b3.New(wsArg, opts...)
	if err != nil {
		return err
	}

	hasErrors, err := engine.Build(cmd.Context(), flagOutput)
	if err != nil {
		return err
	}

	if err := m.WriteFile(flagMetricsFile); err != nil {
		logger.Warn("metrics not written", "error", err)
	}

	result := CLIResult{
		Command:     "build",
		Workspace:   engine.Workspace().Root,
		OutputDir:   engine.Workspace().Abs(flagOutput),
		HasErrors:   hasErrors,
		Diagnostics: engine.Diagnostics(),
	}
	if st != nil {
		if b, err := st.LatestBuild(); err != nil {
			logger.Warn("manifest read failed", "error", err)
		} else {
			result.Build = newCLIBuild(b)
		}
	}
	if err := outputResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Built %s in %s\n", engine.Workspace().Root, time.Since(start).Round(time.Millisecond))
	if hasErrors {
		return errDiagnostics
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	engine, err := b3.New(workspaceArg(args), b3.WithLogger(newLogger()))
	if err != nil {
		return err
	}
	hasErrors, err := engine.Check(cmd.Context())
	if err != nil {
		return err
	}
	result := CLIResult{
		Command:     "check",
		Workspace:   engine.Workspace().Root,
		HasErrors:   hasErrors,
		Diagnostics: engine.Diagnostics(),
	}
	if err := outputResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if hasErrors {
		return errDiagnostics
	}
	return nil
}

// openStore opens and migrates the manifest at dbPath, creating its
// directory.
func openStore(dbPath string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}
	st, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	if err := st.Migrate(); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrating manifest: %w", err)
	}
	return st, nil
}
