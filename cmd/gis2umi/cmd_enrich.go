package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	umi "github.com/fakmalpradana/gis2umi"
)

var streetsFlags struct {
	networkType    string
	customFilter   string
	simplify       bool
	retainAll      bool
	truncateByEdge bool
	cleanPeriphery bool
	layer          string
}

var streetsCmd = &cobra.Command{
	Use:   "streets [project.umi]",
	Short: "Download the street network inside the site boundary",
	Long: `Downloads OpenStreetMap streets inside the project's site boundary
and adds them to the streets layer. The source dataset must have been
geographic, otherwise the site location is unknown.`,
	Args: cobra.ExactArgs(1),
	RunE: runStreets,
}

func runStreets(cmd *cobra.Command, args []string) error {
	project, err := umi.Open(args[0], logger)
	if err != nil {
		return err
	}
	defer project.Close()

	opts := umi.StreetOptions{
		NetworkType:    umi.NetworkType(streetsFlags.networkType),
		CustomFilter:   streetsFlags.customFilter,
		Simplify:       streetsFlags.simplify,
		RetainAll:      streetsFlags.retainAll,
		TruncateByEdge: streetsFlags.truncateByEdge,
		CleanPeriphery: streetsFlags.cleanPeriphery,
		Layer:          streetsFlags.layer,
	}
	if err := project.AddStreetGraph(cmd.Context(), nil, opts); err != nil {
		return err
	}
	if err := project.Save(args[0]); err != nil {
		return err
	}
	fmt.Printf("Added %d street edges to %s\n", len(project.StreetGraph.Edges), args[0])
	return nil
}

var poisFlags struct {
	tags  []string
	layer string
}

var poisCmd = &cobra.Command{
	Use:   "pois [project.umi]",
	Short: "Download points of interest inside the site boundary",
	Long: `Downloads OpenStreetMap points of interest matching the given tags
and adds them to a context layer.

Tags take three forms:
  --tag amenity                 any value
  --tag amenity=school          one value
  --tag leisure=park,garden     any of several values`,
	Args: cobra.ExactArgs(1),
	RunE: runPOIs,
}

func runPOIs(cmd *cobra.Command, args []string) error {
	if len(poisFlags.tags) == 0 {
		return fmt.Errorf("at least one --tag is required")
	}
	tags := make(map[string]interface{}, len(poisFlags.tags))
	for _, t := range poisFlags.tags {
		key, value, found := strings.Cut(t, "=")
		switch {
		case !found:
			tags[key] = true
		case strings.Contains(value, ","):
			tags[key] = strings.Split(value, ",")
		default:
			tags[key] = value
		}
	}

	project, err := umi.Open(args[0], logger)
	if err != nil {
		return err
	}
	defer project.Close()

	if err := project.AddPOIs(cmd.Context(), nil, tags, poisFlags.layer); err != nil {
		return err
	}
	return project.Save(args[0])
}

func init() {
	streetsCmd.Flags().StringVar(&streetsFlags.networkType, "network-type", "drive",
		"network preset: walk, bike, drive, drive_service, all, all_private")
	streetsCmd.Flags().StringVar(&streetsFlags.customFilter, "custom-filter", "",
		"raw Overpass way filter, replaces the preset")
	streetsCmd.Flags().BoolVar(&streetsFlags.simplify, "simplify", true,
		"merge edges between intersections")
	streetsCmd.Flags().BoolVar(&streetsFlags.retainAll, "retain-all", false,
		"keep disconnected network components")
	streetsCmd.Flags().BoolVar(&streetsFlags.truncateByEdge, "truncate-by-edge", false,
		"keep edges crossing the boundary")
	streetsCmd.Flags().BoolVar(&streetsFlags.cleanPeriphery, "clean-periphery", true,
		"query a buffered region before truncating")
	streetsCmd.Flags().StringVar(&streetsFlags.layer, "layer", "",
		"destination layer path")

	poisCmd.Flags().StringArrayVar(&poisFlags.tags, "tag", nil,
		"tag to match, repeatable")
	poisCmd.Flags().StringVar(&poisFlags.layer, "layer", "",
		"destination layer path")
}
