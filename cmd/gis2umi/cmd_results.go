package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	umi "github.com/fakmalpradana/gis2umi"
)

var resultsDir string

var resultsCmd = &cobra.Command{
	Use:   "results [project.umi]",
	Short: "Extract simulation result series",
	Long: `Reads the result series written back into a simulated project archive
and either lists them or writes one CSV per series, with a column per
building name. Objects sharing a name are summed.`,
	Args: cobra.ExactArgs(1),
	RunE: runResults,
}

func runResults(cmd *cobra.Command, args []string) error {
	project, err := umi.Open(args[0], logger)
	if err != nil {
		return err
	}
	defer project.Close()

	series, err := project.ReadEnergySeries()
	if err != nil {
		return err
	}
	if resultsDir == "" {
		for _, s := range series {
			fmt.Printf("%s\t%s\t%s\t%d buildings\n", s.Name, s.Resolution, s.Units, len(s.Columns))
		}
		return nil
	}

	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		return err
	}
	for _, s := range series {
		path := filepath.Join(resultsDir, s.Key()+".csv")
		if err := writeSeriesCSV(path, s); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
	}
	return nil
}

func writeSeriesCSV(path string, s *umi.EnergySeries) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)

	names := make([]string, 0, len(s.Columns))
	rows := 0
	for name, values := range s.Columns {
		names = append(names, name)
		if len(values) > rows {
			rows = len(values)
		}
	}
	sort.Strings(names)

	if err := w.Write(names); err != nil {
		return err
	}
	record := make([]string, len(names))
	for i := 0; i < rows; i++ {
		for j, name := range names {
			record[j] = ""
			if values := s.Columns[name]; i < len(values) {
				record[j] = strconv.FormatFloat(values[i], 'g', -1, 64)
			}
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func init() {
	resultsCmd.Flags().StringVar(&resultsDir, "out", "",
		"directory for per-series CSV files; list series when empty")
}
