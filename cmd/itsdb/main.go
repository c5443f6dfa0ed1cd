package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/andreyvit/itsdb"
	"github.com/andreyvit/itsdb/internal/config"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg     *config.Config
	logger  *zap.Logger
	catalog *itsdb.Catalog
)

var rootCmd = &cobra.Command{
	Use:   "itsdb",
	Short: "Inspect and process [incr tsdb()] profiles",
	Long: `itsdb reads and writes [incr tsdb()] test-suite profiles: directories
with a relations file and one @-delimited table file per table.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		zcfg := zap.NewProductionConfig()
		lvl, err := cfg.Level()
		if err != nil {
			return err
		}
		if verbose {
			lvl = zapcore.DebugLevel
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if cfg.CatalogPath != "" {
			catalog, err = itsdb.OpenCatalog(cfg.CatalogPath, itsdb.CatalogOptions{Logger: logger})
			if err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("ITSDB_CONFIG"), "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(selectCmd, statsCmd, exportCmd, mkprofCmd, processCmd, indexCmd)
}

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// run executes the root command and releases the catalog and logger even
// when the command fails; cobra skips post-run hooks after an error.
func run() (err error) {
	defer func() {
		if catalog != nil {
			if cerr := catalog.Close(); cerr != nil && err == nil {
				err = cerr
			}
			catalog = nil
		}
		if logger != nil {
			_ = logger.Sync()
		}
	}()
	return rootCmd.Execute()
}

// profileDir returns the profile named by the first argument or the
// configured default.
func profileDir(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if cfg != nil && cfg.ProfileDir != "" {
		return cfg.ProfileDir, nil
	}
	return "", fmt.Errorf("no profile given and profile_dir is not configured")
}

func openProfile(dir string) (*itsdb.TestSuite, error) {
	return itsdb.Open(dir, itsdb.Options{
		Encoding: cfg.Encoding,
		Logger:   logger,
		Catalog:  catalog,
	})
}
