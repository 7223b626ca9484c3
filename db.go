package umi

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"
)

// settingsDB is the umi.sqlite3 store carried inside a project archive.
// It keeps per-object simulation settings and the result series written
// back by the simulation engine.
type settingsDB struct {
	*sql.DB
	path string
}

var settingsSchema = []string{
	`create table if not exists nonplottable_setting (
		key       TEXT not null,
		object_id TEXT not null,
		name      TEXT not null,
		value     TEXT not null,
		primary key (key, object_id, name)
	);`,
	`create table if not exists object_name_assignment (
		id   TEXT primary key,
		name TEXT not null
	);`,
	`create table if not exists plottable_setting (
		key       TEXT not null,
		object_id TEXT not null,
		name      TEXT not null,
		value     REAL not null,
		primary key (key, object_id, name)
	);`,
	`create table if not exists series (
		id         INTEGER primary key,
		name       TEXT not null,
		module     TEXT not null,
		object_id  TEXT not null,
		units      TEXT,
		resolution TEXT,
		unique (name, module, object_id)
	);`,
	`create table if not exists data_point (
		series_id       INTEGER not null references series on delete cascade,
		index_in_series INTEGER not null,
		value           REAL    not null,
		primary key (series_id, index_in_series)
	);`,
}

func openSettingsDB(path string) (*settingsDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, stmt := range settingsSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating settings schema: %w", err)
		}
	}
	return &settingsDB{DB: db, path: path}, nil
}

// Setting names split into a plottable (numeric) and a non-plottable
// (textual) group, following the umi settings store convention.
var (
	plottableSettings = []string{
		"CoreDepth", "Envr", "Fdist", "FloorToFloorHeight", "PerimeterOffset",
		"RoomWidth", "WindowToWallRatioE", "WindowToWallRatioN",
		"WindowToWallRatioRoof", "WindowToWallRatioS", "WindowToWallRatioW",
	}
	nonplottableSettings = []string{
		"TemplateName", "EnergySimulatorName", "FloorToFloorStrict",
	}
)

// ReplaceObjectSettings rewrites the settings tables from the given
// objects' attribute maps, and refreshes the object-name assignment.
func (db *settingsDB) ReplaceObjectSettings(objects []*Object) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"plottable_setting", "nonplottable_setting", "object_name_assignment"} {
		if _, err := tx.Exec("delete from " + table); err != nil {
			return err
		}
	}
	for _, obj := range objects {
		id := obj.ID.String()
		if _, err := tx.Exec(
			"insert into object_name_assignment (id, name) values (?, ?)",
			id, obj.Name,
		); err != nil {
			return err
		}
		for _, name := range plottableSettings {
			raw, ok := obj.Attrs[name]
			if !ok {
				continue
			}
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			if _, err := tx.Exec(
				"insert into plottable_setting (key, object_id, name, value) values (?, ?, ?, ?)",
				"unused", id, name, value,
			); err != nil {
				return err
			}
		}
		for _, name := range nonplottableSettings {
			raw, ok := obj.Attrs[name]
			if !ok {
				continue
			}
			if _, err := tx.Exec(
				"insert into nonplottable_setting (key, object_id, name, value) values (?, ?, ?, ?)",
				"unused", id, name, raw,
			); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// InsertSeries registers a result series and returns its id. Used by the
// simulation engine's writer and by tests.
func (db *settingsDB) InsertSeries(name, module, objectID, units, resolution string) (int64, error) {
	res, err := db.Exec(
		"insert into series (name, module, object_id, units, resolution) values (?, ?, ?, ?, ?)",
		name, module, objectID, nullable(units), nullable(resolution),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertDataPoints appends values to a series starting at index 0.
func (db *settingsDB) InsertDataPoints(seriesID int64, values []float64) error {
	for i, v := range values {
		if _, err := db.Exec(
			"insert into data_point (series_id, index_in_series, value) values (?, ?, ?)",
			seriesID, i, v,
		); err != nil {
			return err
		}
	}
	return nil
}

// AssignObjectName maps an object id to a building name.
func (db *settingsDB) AssignObjectName(objectID, name string) error {
	_, err := db.Exec(
		"insert or replace into object_name_assignment (id, name) values (?, ?)",
		objectID, name,
	)
	return err
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
