package umi

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emptyProject(t *testing.T) *Project {
	t.Helper()
	p, err := NewProject("test", nil)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestAggregateByName(t *testing.T) {
	got := aggregateByName([]namedValues{
		{Name: "4", Values: []float64{1, 2}},
		{Name: "4", Values: []float64{3, 4}},
		{Name: "7", Values: []float64{10, 20}},
	})
	assert.Equal(t, []float64{4, 6}, got["4"])
	assert.Equal(t, []float64{10, 20}, got["7"])
}

func TestAggregateByNamePadsShortSeries(t *testing.T) {
	got := aggregateByName([]namedValues{
		{Name: "a", Values: []float64{1}},
		{Name: "a", Values: []float64{1, 2, 3}},
	})
	assert.Equal(t, []float64{2, 2, 3}, got["a"])
}

func TestEnergySeriesSumsSplitParts(t *testing.T) {
	p := emptyProject(t)

	// two objects sharing the building name, like parts of a split feature
	partA, partB := uuid.New().String(), uuid.New().String()
	require.NoError(t, p.db.AssignObjectName(partA, "4"))
	require.NoError(t, p.db.AssignObjectName(partB, "4"))

	idA, err := p.db.InsertSeries("Cooling", "Energy", partA, "kWh", "Monthly")
	require.NoError(t, err)
	idB, err := p.db.InsertSeries("Cooling", "Energy", partB, "kWh", "Monthly")
	require.NoError(t, err)
	require.NoError(t, p.db.InsertDataPoints(idA, []float64{1, 2}))
	require.NoError(t, p.db.InsertDataPoints(idB, []float64{3, 4}))

	series, err := p.ReadEnergySeries()
	require.NoError(t, err)
	require.Len(t, series, 1)

	s := series[0]
	assert.Equal(t, "Cooling", s.Name)
	assert.Equal(t, "kWh", s.Units)
	assert.Equal(t, "Monthly", s.Resolution)
	assert.Equal(t, []float64{4, 6}, s.Columns["4"])
}

func TestEnergySeriesSkipsUnitsWithoutResolution(t *testing.T) {
	p := emptyProject(t)

	obj := uuid.New().String()
	require.NoError(t, p.db.AssignObjectName(obj, "1"))

	id, err := p.db.InsertSeries("Total", "Energy", obj, "kWh", "")
	require.NoError(t, err)
	require.NoError(t, p.db.InsertDataPoints(id, []float64{100}))

	id, err = p.db.InsertSeries("Heating", "Energy", obj, "kWh", "Monthly")
	require.NoError(t, err)
	require.NoError(t, p.db.InsertDataPoints(id, []float64{5}))

	series, err := p.ReadEnergySeries()
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, "Heating", series[0].Name)
}

func TestEnergySeriesKey(t *testing.T) {
	s := &EnergySeries{Name: "SDL/Cooling", Resolution: "Monthly"}
	assert.Equal(t, "Monthly_SDL_Cooling", s.Key())

	s = &EnergySeries{Name: "Daylight Autonomy"}
	assert.Equal(t, "Daylight_Autonomy", s.Key())
}

func TestReplaceObjectSettings(t *testing.T) {
	p := emptyProject(t)
	obj := &Object{
		ID:   uuid.New(),
		Name: "1",
		Attrs: map[string]string{
			"CoreDepth":    "3",
			"TemplateName": "B_Off_0",
			"use_type":     "COMMERCIAL",
		},
	}
	require.NoError(t, p.db.ReplaceObjectSettings([]*Object{obj}))

	var count int
	require.NoError(t, p.db.QueryRow(
		"select count(*) from plottable_setting where object_id = ?",
		obj.ID.String()).Scan(&count))
	assert.Equal(t, 1, count)

	var template string
	require.NoError(t, p.db.QueryRow(
		"select value from nonplottable_setting where object_id = ? and name = 'TemplateName'",
		obj.ID.String()).Scan(&template))
	assert.Equal(t, "B_Off_0", template)

	var name string
	require.NoError(t, p.db.QueryRow(
		"select name from object_name_assignment where id = ?",
		obj.ID.String()).Scan(&name))
	assert.Equal(t, "1", name)
}
