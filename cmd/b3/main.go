package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zhcmeng/behavior3editor-sub000/internal/logging"
)

var (
	flagDB       string
	flagFormat   string
	flagLogLevel string
)

// errDiagnostics makes the process exit with status 1 after the
// diagnostics have already been printed.
var errDiagnostics = errors.New("diagnostics reported")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errDiagnostics) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "b3",
	Short:         "Build and check behavior tree projects",
	Long:          "b3 resolves subtrees, validates nodes against their definitions and writes normalized trees for the runtime.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "build manifest path (default: .b3/manifest.db under the project root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug|info|warn|error")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(reportCmd)
}

// projectRoot returns the directory of the project named by arg, which is
// either a project directory or a workspace descriptor inside one.
func projectRoot(arg string) (string, error) {
	if arg == "" {
		arg = "."
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", arg, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("workspace not found: %s", abs)
	}
	if !info.IsDir() {
		return filepath.Dir(abs), nil
	}
	return abs, nil
}

// resolveDBPath returns the manifest path from the --db flag or the default.
func resolveDBPath(root string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(root, flagDB)
	}
	return filepath.Join(root, ".b3", "manifest.db")
}

func workspaceArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func newLogger() *slog.Logger {
	return logging.New(logging.ParseLevel(flagLogLevel))
}
