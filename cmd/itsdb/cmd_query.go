package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andreyvit/itsdb"
)

var (
	selectMode string
	selectCast bool

	exportFormat string
	exportCast   bool
	exportOutput string
)

var selectCmd = &cobra.Command{
	Use:   "select [profile] spec",
	Short: "Print selected columns of a table",
	Long: `Prints the rows selected by a data specifier such as "item:i-id@i-input",
"item" (all columns), ":i-input" (table resolved from the column) or
"item+parse:i-id@readings" (joined tables).`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSelect,
}

var statsCmd = &cobra.Command{
	Use:   "stats [profile]",
	Short: "Show row counts and file sizes of every table",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStats,
}

var exportCmd = &cobra.Command{
	Use:   "export [profile] table",
	Short: "Export a table as JSON lines, MessagePack or BSON",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runExport,
}

func init() {
	selectCmd.Flags().StringVarP(&selectMode, "mode", "m", "list", "output mode: list, row, dict or record")
	selectCmd.Flags().BoolVar(&selectCast, "cast", false, "cast values to their datatypes")

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "json, msgpack or bson")
	exportCmd.Flags().BoolVar(&exportCast, "cast", true, "cast values to their datatypes")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")
}

func runSelect(cmd *cobra.Command, args []string) error {
	spec := args[len(args)-1]
	dir, err := profileDir(args[:len(args)-1])
	if err != nil {
		return err
	}
	mode, err := itsdb.ParseSelectMode(selectMode)
	if err != nil {
		return err
	}
	ts, err := openProfile(dir)
	if err != nil {
		return err
	}
	rows, err := ts.Select(spec, mode, selectCast)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	jenc := json.NewEncoder(out)
	for _, row := range rows {
		switch row := row.(type) {
		case []any:
			line, err := itsdb.EncodeRow(row, nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, line)
		case map[string]any:
			if err := jenc.Encode(row); err != nil {
				return err
			}
		default:
			fmt.Fprintln(out, row)
		}
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	dir, err := profileDir(args)
	if err != nil {
		return err
	}
	ts, err := openProfile(dir)
	if err != nil {
		return err
	}
	stats, err := ts.Stats(cmd.Context())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "table\trows\tbytes\tgzip\t")
	for _, st := range stats {
		gz := ""
		if st.Gzip {
			gz = "yes"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t\n", st.Name, st.Rows, st.Bytes, gz)
	}
	return tw.Flush()
}

func runExport(cmd *cobra.Command, args []string) error {
	name := args[len(args)-1]
	dir, err := profileDir(args[:len(args)-1])
	if err != nil {
		return err
	}
	format, err := itsdb.ParseExportFormat(exportFormat)
	if err != nil {
		return err
	}
	ts, err := openProfile(dir)
	if err != nil {
		return err
	}
	t, err := ts.Table(name)
	if err != nil {
		return err
	}

	if exportOutput == "" {
		return itsdb.ExportTable(cmd.OutOrStdout(), t, format, exportCast)
	}
	f, err := os.Create(exportOutput)
	if err != nil {
		return err
	}
	if err := itsdb.ExportTable(f, t, format, exportCast); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
