package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

var validFormats = []string{"json", "text"}

func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

// outputResult writes result to stdout in the selected format.
func outputResult(result CLIResult) error {
	return writeResult(os.Stdout, flagFormat, result)
}

func writeResult(w io.Writer, format string, result CLIResult) error {
	if format == "text" {
		return writeResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

func writeResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIResolution:
		formatResolutionText(w, v)
	case CLIResource:
		// Raw content, so the output can be piped.
		fmt.Fprint(w, v.Content)
	case []CLILoadPathEntry:
		formatLoadPathText(w, v)
	case []string:
		for _, s := range v {
			fmt.Fprintln(w, s)
		}
	case CLIRun:
		fmt.Fprintln(w, v.Result)
	case string:
		fmt.Fprint(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// formatResolutionText formats a CLIResolution as aligned key/value lines.
func formatResolutionText(w io.Writer, r CLIResolution) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "REQUEST\t%s\n", r.Request)
	if r.Caller != "" {
		fmt.Fprintf(tw, "CALLER\t%s\n", r.Caller)
	}
	fmt.Fprintf(tw, "KIND\t%s\n", r.Kind)
	fmt.Fprintf(tw, "ID\t%s\n", r.ID)
	if r.Size > 0 {
		fmt.Fprintf(tw, "SIZE\t%d\n", r.Size)
	}
	tw.Flush()
}

// formatLoadPathText formats search roots as aligned columns.
func formatLoadPathText(w io.Writer, entries []CLILoadPathEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tROOT\tSPACE\tSOURCE")
	for i, e := range entries {
		space := "disk"
		if e.Virtual {
			space = "archive"
		}
		source := "fixed"
		if e.Discovered {
			source = "discovered"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, e.Root, space, source)
	}
	tw.Flush()
}
