package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/jward/embedload"
	"github.com/jward/embedload/internal/config"
)

var (
	flagConfig   string
	flagArchive  string
	flagFormat   string
	flagLogLevel string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "embedload",
	Short:         "Run Risor scripts from an embedded archive",
	Long:          "Resolves Risor imports against an embedded archive, a SQLite bundle or disk, loading each module at most once.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: embedload.toml in the working directory or a parent)")
	rootCmd.PersistentFlags().StringVar(&flagArchive, "archive", "", "SQLite archive bundle (default: embedded scripts)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(pathsCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(configCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a script from the archive (\":/path\") or disk",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	result, err := e.Eval(ctx, args[0], nil)
	if err != nil {
		return outputError("run", err)
	}
	return outputResult(CLIResult{
		Command: "run",
		Results: CLIRun{Script: args[0], Result: result.Inspect(), Loaded: e.Loaded()},
	})
}

// loadConfig reads the config file selected by --config, or embedload.toml
// found by walking up from the working directory, then applies flag overrides.
func loadConfig(ctx context.Context) (*config.Config, error) {
	opts := config.LoadOptions{ConfigFilePath: flagConfig}
	if flagConfig == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting cwd: %w", err)
		}
		opts.WorkDir = findConfigDir(cwd)
	}

	cfg, _, err := config.Load(ctx, opts)
	if err != nil {
		return nil, err
	}
	if flagArchive != "" {
		cfg.Archive = flagArchive
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func openEngine(ctx context.Context) (*embedload.Engine, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: config.AppName,
		Level:  cfg.Level(),
	})
	e, err := embedload.New(ctx, embedload.WithConfig(cfg), embedload.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return e, nil
}

// findConfigDir walks up from startDir looking for embedload.toml.
// Returns the directory containing it, or startDir if not found.
func findConfigDir(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, config.ConfigFileName)); err == nil && !info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding a config.
			return startDir
		}
		dir = parent
	}
}
