package umi

import (
	"database/sql"
	"fmt"
	"regexp"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// EnergySeries is one simulation result series, pivoted to a column of
// values per building name. Values of objects sharing a name, such as the
// parts of a split multi-part footprint, are summed element-wise.
type EnergySeries struct {
	Name       string
	Units      string
	Resolution string
	Columns    map[string][]float64
}

var nonAlnumPattern = regexp.MustCompile(`[^0-9A-Za-z]+`)

// Key is a filesystem and identifier friendly name for the series.
func (s *EnergySeries) Key() string {
	key := s.Name
	if s.Resolution != "" {
		key = s.Resolution + "_" + s.Name
	}
	return nonAlnumPattern.ReplaceAllString(key, "_")
}

type namedValues struct {
	Name   string
	Values []float64
}

// aggregateByName sums series values per building name, padding shorter
// value slices with zeros.
func aggregateByName(series []namedValues) map[string][]float64 {
	out := make(map[string][]float64)
	for _, s := range series {
		acc := out[s.Name]
		if len(s.Values) > len(acc) {
			grown := make([]float64, len(s.Values))
			copy(grown, acc)
			acc = grown
		}
		floats.Add(acc[:len(s.Values)], s.Values)
		out[s.Name] = acc
	}
	return out
}

// ReadEnergySeries reads the result series written back by the simulation
// engine and pivots them to per-building columns. Series that carry units
// but no resolution are engine-internal totals and are skipped.
func (p *Project) ReadEnergySeries() ([]*EnergySeries, error) {
	if p.db == nil {
		return nil, fmt.Errorf("project has no settings store")
	}
	rows, err := p.db.Query(`
		select s.id, s.name, s.units, s.resolution, a.name
		from series s
		join object_name_assignment a on a.id = s.object_id
		order by s.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type groupKey struct {
		name, units, resolution string
	}
	groups := make(map[groupKey][]namedValues)
	var order []groupKey
	for rows.Next() {
		var (
			id                int64
			name, building    string
			units, resolution sql.NullString
		)
		if err := rows.Scan(&id, &name, &units, &resolution, &building); err != nil {
			return nil, err
		}
		if units.Valid && !resolution.Valid {
			continue
		}
		values, err := p.seriesValues(id)
		if err != nil {
			return nil, err
		}
		key := groupKey{name: name, units: units.String, resolution: resolution.String}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], namedValues{Name: building, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*EnergySeries, 0, len(order))
	for _, key := range order {
		out = append(out, &EnergySeries{
			Name:       key.name,
			Units:      key.units,
			Resolution: key.resolution,
			Columns:    aggregateByName(groups[key]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (p *Project) seriesValues(seriesID int64) ([]float64, error) {
	rows, err := p.db.Query(
		"select value from data_point where series_id = ? order by index_in_series",
		seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
