package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/embedload"
)

var (
	flagCaller   string
	flagRelative bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <request>",
	Short: "Show how a module request would be satisfied",
	Long:  "Runs the overlay's decision procedure for one request without evaluating anything.",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

var readCmd = &cobra.Command{
	Use:   "read <path>",
	Short: "Read a resource from the archive or disk",
	Long:  "Resolves path against --caller and prints the archive entry, or the file on disk. A miss prints nothing.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRead,
}

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "List the search roots in scan order",
	Args:  cobra.NoArgs,
	RunE:  runPaths,
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List archive entries",
	Args:  cobra.NoArgs,
	RunE:  runLs,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as TOML",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	resolveCmd.Flags().StringVar(&flagCaller, "caller", "", "identifier of the requesting file")
	resolveCmd.Flags().BoolVar(&flagRelative, "relative", false, "resolve the request relative to --caller")
	readCmd.Flags().StringVar(&flagCaller, "caller", "", "identifier of the requesting file")

	configCmd.AddCommand(configShowCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	req := embedload.Request{Path: args[0], Caller: flagCaller, Relative: flagRelative}
	res, err := e.Resolve(ctx, req)
	if err != nil {
		return outputError("resolve", err)
	}
	return outputResult(CLIResult{
		Command: "resolve",
		Results: CLIResolution{
			Request: args[0],
			Caller:  flagCaller,
			Kind:    res.Kind.String(),
			ID:      res.ID,
			Size:    len(res.Content),
		},
	})
}

func runRead(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	content := e.ReadResource(args[0], flagCaller)
	return outputResult(CLIResult{
		Command: "read",
		Results: CLIResource{
			Path:    args[0],
			Caller:  flagCaller,
			Found:   content != "",
			Content: content,
		},
	})
}

func runPaths(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	var out []CLILoadPathEntry
	for _, entry := range e.LoadPath() {
		out = append(out, CLILoadPathEntry{
			Root:       entry.Root,
			Virtual:    entry.Virtual,
			Discovered: entry.Discovered,
		})
	}
	return outputResult(CLIResult{Command: "paths", Results: out})
}

// lister is implemented by archives that can enumerate their entries.
type lister interface {
	List() ([]string, error)
}

func runLs(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	l, ok := e.Archive().(lister)
	if !ok {
		return outputError("ls", fmt.Errorf("archive %T cannot list entries", e.Archive()))
	}
	ids, err := l.List()
	if err != nil {
		return outputError("ls", err)
	}
	return outputResult(CLIResult{Command: "ls", Results: ids})
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}
	if flagFormat == "json" {
		return outputResult(CLIResult{Command: "config show", Results: cfg})
	}
	doc, err := cfg.TOML()
	if err != nil {
		return err
	}
	return outputResult(CLIResult{Command: "config show", Results: doc})
}
