// Command gis2umi converts GIS building-footprint datasets into urban
// modeling project archives and works with the archives afterwards:
// street and point-of-interest enrichment, vector export and result
// series extraction.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose bool
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gis2umi",
	Short: "Convert GIS footprint datasets to urban modeling project archives",
	Long: `gis2umi reads building footprints from GeoJSON or shapefile datasets,
extrudes them to their attribute height, resolves energy templates and
assembles a ready-to-simulate project archive.

Existing archives can be enriched with OpenStreetMap streets and points
of interest, exported back to vector formats, and queried for simulation
result series.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(convertCmd, infoCmd, streetsCmd, poisCmd, exportCmd, resultsCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
