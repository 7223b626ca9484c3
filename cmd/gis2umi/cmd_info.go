package main

import (
	"fmt"

	"github.com/spf13/cobra"

	umi "github.com/fakmalpradana/gis2umi"
)

var infoCmd = &cobra.Command{
	Use:   "info [project.umi]",
	Short: "Summarize a project archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	project, err := umi.Open(args[0], logger)
	if err != nil {
		return err
	}
	defer project.Close()

	fmt.Printf("Name:      %s\n", project.Name)
	fmt.Printf("Records:   %d\n", len(project.Records))
	fmt.Printf("Objects:   %d\n", len(project.Objects))
	if project.Projection.Geographic {
		o := project.Projection.Origin
		fmt.Printf("Origin:    %.6f, %.6f (geographic)\n", o.Lon(), o.Lat())
	} else {
		o := project.Projection.Origin
		fmt.Printf("Origin:    %.2f, %.2f (projected)\n", o[0], o[1])
	}
	if project.EPW != nil {
		loc := project.EPW.Location
		fmt.Printf("Weather:   %s (%s, %s)\n", project.EPW.Name, loc.City, loc.Country)
	} else {
		fmt.Println("Weather:   none")
	}
	if project.TemplateLib != nil {
		fmt.Printf("Templates: %d bytes\n", len(project.TemplateLib))
	} else {
		fmt.Println("Templates: none")
	}

	fmt.Println("Layers:")
	counts := make(map[int]int)
	for _, obj := range project.Objects {
		counts[obj.LayerIndex]++
	}
	for _, layer := range project.Layers.All() {
		fmt.Printf("  %-40s %d\n", layer.FullPath, counts[layer.Index])
	}
	return nil
}
