package main

import (
	"fmt"

	"github.com/spf13/cobra"

	umi "github.com/fakmalpradana/gis2umi"
)

var exportDriver string

var exportCmd = &cobra.Command{
	Use:   "export [project.umi] [output]",
	Short: "Export the building records to a vector file",
	Long: `Exports a project archive's building footprints and attributes.

Drivers:
  GeoJSON         footprints with attributes, world coordinates
  "ESRI Shapefile"  footprints with attributes, world coordinates
  CityGML         extruded solids, local coordinates`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	project, err := umi.Open(args[0], logger)
	if err != nil {
		return err
	}
	defer project.Close()

	if err := project.Export(args[1], exportDriver); err != nil {
		return err
	}
	fmt.Printf("Exported %d records to %s\n", len(project.Records), args[1])
	return nil
}

func init() {
	exportCmd.Flags().StringVar(&exportDriver, "driver", umi.DriverGeoJSON,
		"output driver: GeoJSON, 'ESRI Shapefile' or CityGML")
}
