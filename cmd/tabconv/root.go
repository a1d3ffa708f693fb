package main

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/tabconv/pkg/connector/core"
	"github.com/ajitpratap0/tabconv/pkg/connector/registry"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tabconv",
		Short: "Convert CSV and JSON files to Parquet and Arrow",
		Long: `tabconv converts row-oriented text tables (CSV, line-delimited JSON) into
columnar files (Apache Parquet, Apache Arrow IPC).

The schema is inferred from the input unless a schema document is given
with --schema-file. Use --dry to print the inferred schema without
writing any output.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newConvertCmd())
	for _, pair := range []struct{ source, destination string }{
		{"csv", "parquet"},
		{"csv", "arrow"},
		{"json", "parquet"},
		{"json", "arrow"},
	} {
		root.AddCommand(newPairCmd(pair.source, pair.destination))
	}
	root.AddCommand(newInspectCmd())

	return root
}

// listFormats prints the catalog entry of every registered format name.
func listFormats(out io.Writer, t core.ConnectorType, names []string) error {
	fmt.Fprintf(out, "Available %s formats:\n", t)
	for _, name := range names {
		info, err := registry.GetConnectorInfo(t, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  - %-8s %s (%s)\n", info.Name, info.Description, strings.Join(info.Extensions, ", "))
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tabconv v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available input and output formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if err := listFormats(out, core.ConnectorTypeSource, registry.ListSources()); err != nil {
				return err
			}
			fmt.Fprintln(out)
			return listFormats(out, core.ConnectorTypeDestination, registry.ListDestinations())
		},
	}
}
