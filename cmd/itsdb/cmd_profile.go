package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andreyvit/itsdb"
	"github.com/andreyvit/itsdb/internal/procexec"
)

var (
	mkprofGzip     bool
	mkprofTables   []string
	mkprofSkeleton bool

	processCommand    string
	processArgs       []string
	processTask       string
	processSelector   string
	processSource     string
	processBufferSize int
	processGzip       bool
)

var mkprofCmd = &cobra.Command{
	Use:   "mkprof source destination",
	Short: "Create a profile from an existing one",
	Long: `Copies the relations file and tables of the source profile into a new
directory. With --skeleton only the item table is copied and every other
table is left empty.`,
	Args: cobra.ExactArgs(2),
	RunE: runMkprof,
}

var processCmd = &cobra.Command{
	Use:   "process [profile]",
	Short: "Run an external processor over a profile",
	Long: `Feeds the selected column of every row (i-input for parsing) to a
command, one process per item, and stores the output lines as results in
the parse, result and run tables.

Example:
  itsdb process ./profiles/mrs --command ./parse.sh --buffer-size 100`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProcess,
}

var indexCmd = &cobra.Command{
	Use:   "index [profile]",
	Short: "Build the line offset catalog for every plain-text table",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	mkprofCmd.Flags().BoolVar(&mkprofGzip, "gzip", false, "compress table files")
	mkprofCmd.Flags().StringSliceVar(&mkprofTables, "tables", nil, "tables to copy (default all)")
	mkprofCmd.Flags().BoolVar(&mkprofSkeleton, "skeleton", false, "copy only the item table")

	processCmd.Flags().StringVarP(&processCommand, "command", "c", "", "processor command")
	processCmd.Flags().StringArrayVar(&processArgs, "arg", nil, "argument passed to the command (repeatable)")
	processCmd.Flags().StringVar(&processTask, "task", "parse", "parse, generate or transfer")
	processCmd.Flags().StringVarP(&processSelector, "selector", "s", "", "input data specifier (default by task)")
	processCmd.Flags().StringVar(&processSource, "source", "", "profile to read inputs from (default the target)")
	processCmd.Flags().IntVar(&processBufferSize, "buffer-size", -1, "rows per table kept before committing (default from config)")
	processCmd.Flags().BoolVar(&processGzip, "gzip", false, "compress the written tables")
	processCmd.MarkFlagRequired("command")
}

func runMkprof(cmd *cobra.Command, args []string) error {
	src, err := openProfile(args[0])
	if err != nil {
		return err
	}
	dst := args[1]
	gz := mkprofGzip || cfg.Gzip

	if mkprofSkeleton {
		items, err := src.Table("item")
		if err != nil {
			return err
		}
		var rows []map[string]any
		for rec, err := range items.All() {
			if err != nil {
				return err
			}
			m, err := rec.Map(false)
			if err != nil {
				return err
			}
			rows = append(rows, m)
		}
		_, err = itsdb.MakeSkeleton(dst, src.Relations(), rows, itsdb.WriteOptions{
			Gzip:     gz,
			Encoding: cfg.Encoding,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
	} else {
		err := src.Write(itsdb.WriteSuiteOptions{
			Dir:    dst,
			Tables: mkprofTables,
			Gzip:   gz,
		})
		if err != nil {
			return err
		}
	}
	logger.Info("profile created", zap.String("source", args[0]), zap.String("destination", dst))
	return nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	dir, err := profileDir(args)
	if err != nil {
		return err
	}
	ts, err := openProfile(dir)
	if err != nil {
		return err
	}
	opt := itsdb.ProcessOptions{
		Selector:   processSelector,
		BufferSize: processBufferSize,
		Gzip:       processGzip || cfg.Gzip,
	}
	if opt.BufferSize < 0 {
		opt.BufferSize = cfg.BufferSize
	}
	if processSource != "" {
		if opt.Source, err = openProfile(processSource); err != nil {
			return err
		}
	}
	p := &procexec.CommandProcessor{
		Path:     processCommand,
		Args:     processArgs,
		TaskName: processTask,
		Logger:   logger,
	}
	return ts.Process(cmd.Context(), p, opt)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if catalog == nil {
		return fmt.Errorf("catalog_path is not configured")
	}
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
	for _, st := range stats {
		if st.Gzip || !ts.Exists(st.Name) {
			continue
		}
		off, err := catalog.Offsets(filepath.Join(dir, st.Name))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", st.Name, len(off)-1)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "catalog holds %d files\n", catalog.Len())
	return nil
}
