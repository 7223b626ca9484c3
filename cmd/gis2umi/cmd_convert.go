package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	umi "github.com/fakmalpradana/gis2umi"
)

// convertJob is the YAML job description read by the convert command.
type convertJob struct {
	Input           string   `yaml:"input"`
	Name            string   `yaml:"name"`
	HeightColumn    string   `yaml:"height_column"`
	FIDColumn       string   `yaml:"fid_column"`
	EPW             string   `yaml:"epw"`
	FetchWeather    bool     `yaml:"fetch_weather"`
	TemplateLibrary string   `yaml:"template_library"`
	TemplateMap     string   `yaml:"template_map"`
	MapToColumns    []string `yaml:"map_to_columns"`
	TemplateColumn  string   `yaml:"template_column"`
	Output          string   `yaml:"output"`
}

var convertCmd = &cobra.Command{
	Use:   "convert [job.yaml]",
	Short: "Convert a footprint dataset to a project archive",
	Long: `Reads a YAML job description and writes a project archive.

A minimal job file:

  input: footprints.geojson
  height_column: Height
  template_map: map.json
  map_to_columns: [use_type]
  template_library: lib.json
  output: project.umi`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var job convertJob
	if err := yaml.Unmarshal(raw, &job); err != nil {
		return fmt.Errorf("parsing job file %s: %w", args[0], err)
	}
	if job.Input == "" {
		return fmt.Errorf("job file %s: input is required", args[0])
	}
	if job.Output == "" {
		return fmt.Errorf("job file %s: output is required", args[0])
	}

	opts := umi.ConvertOptions{
		Name:           job.Name,
		HeightColumn:   job.HeightColumn,
		FIDColumn:      job.FIDColumn,
		TemplateLib:    job.TemplateLibrary,
		TemplateColumn: job.TemplateColumn,
		EPW:            job.EPW,
		FetchWeather:   job.FetchWeather,
		Logger:         logger,
	}
	if job.TemplateMap != "" {
		m, err := umi.LoadTemplateMap(job.TemplateMap, job.MapToColumns)
		if err != nil {
			return err
		}
		opts.TemplateMap = m
	}

	project, err := umi.FromGIS(job.Input, opts)
	if err != nil {
		return err
	}
	defer project.Close()

	if err := project.Save(job.Output); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d objects)\n", job.Output, len(project.Objects))
	return nil
}
