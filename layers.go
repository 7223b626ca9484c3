package umi

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// LayerDelimiter separates parent and child layer names in a full path.
const LayerDelimiter = "::"

// Well-known layer paths of an umi project document.
const (
	LayerBuildings    = "umi::Buildings"
	LayerContext      = "umi::Context"
	LayerSiteBoundary = "umi::Context::Site boundary"
	LayerStreets      = "umi::Context::Streets"
	LayerParks        = "umi::Context::Parks"
	LayerBoundaryObjs = "umi::Context::Boundary objects"
	LayerShading      = "umi::Context::Shading"
	LayerTrees        = "umi::Context::Trees"
	LayerPOIs         = "umi::Context::POIs"
)

// Layer is a named partition of the project document.
type Layer struct {
	ID       uuid.UUID `json:"id"`
	ParentID uuid.UUID `json:"parent_id"`
	Name     string    `json:"name"`
	FullPath string    `json:"full_path"`
	Index    int       `json:"index"`
	Color    [4]uint8  `json:"color"`
}

// LayerTable holds the project's layers in creation order.
type LayerTable struct {
	layers []*Layer
	byPath map[string]*Layer
}

var baseLayerColors = map[string][4]uint8{
	LayerBuildings:    {0, 0, 0, 255},
	LayerContext:      {0, 0, 0, 255},
	LayerSiteBoundary: {255, 0, 255, 255},
	LayerStreets:      {0, 0, 0, 255},
	LayerParks:        {0, 127, 0, 255},
	LayerBoundaryObjs: {0, 0, 0, 255},
	LayerShading:      {191, 63, 63, 255},
	LayerTrees:        {63, 191, 127, 255},
}

var baseLayerOrder = []string{
	LayerBuildings,
	LayerContext,
	LayerSiteBoundary,
	LayerStreets,
	LayerParks,
	LayerBoundaryObjs,
	LayerShading,
	LayerTrees,
}

// NewLayerTable builds a table pre-populated with the base umi layer tree.
func NewLayerTable() *LayerTable {
	t := &LayerTable{byPath: make(map[string]*Layer)}
	for _, path := range baseLayerOrder {
		layer := t.Add(path)
		layer.Color = baseLayerColors[path]
	}
	return t
}

// Add creates the layer at fullPath, creating missing parent layers on the
// way. Adding an existing path returns the existing layer.
func (t *LayerTable) Add(fullPath string) *Layer {
	if layer, ok := t.byPath[fullPath]; ok {
		return layer
	}
	parts := strings.Split(fullPath, LayerDelimiter)
	parentID := uuid.Nil
	var layer *Layer
	for i := range parts {
		path := strings.Join(parts[:i+1], LayerDelimiter)
		if existing, ok := t.byPath[path]; ok {
			layer = existing
			parentID = existing.ID
			continue
		}
		layer = &Layer{
			ID:       uuid.New(),
			ParentID: parentID,
			Name:     parts[i],
			FullPath: path,
			Index:    len(t.layers),
			Color:    [4]uint8{0, 0, 0, 255},
		}
		t.layers = append(t.layers, layer)
		t.byPath[path] = layer
		parentID = layer.ID
	}
	return layer
}

// FindFullPath returns the layer at the given path, or nil.
func (t *LayerTable) FindFullPath(fullPath string) *Layer {
	return t.byPath[fullPath]
}

// FindName returns the layer with the given short name. It is an error if
// more than one layer shares the name; use FindFullPath in that case.
func (t *LayerTable) FindName(name string) (*Layer, error) {
	var found *Layer
	for _, layer := range t.layers {
		if layer.Name == name {
			if found != nil {
				return nil, fmt.Errorf("more than one layer named %q", name)
			}
			found = layer
		}
	}
	return found, nil
}

// FindIndex returns the layer with the given index, or nil.
func (t *LayerTable) FindIndex(index int) *Layer {
	if index < 0 || index >= len(t.layers) {
		return nil
	}
	return t.layers[index]
}

// All returns the layers in creation order.
func (t *LayerTable) All() []*Layer {
	return t.layers
}

// restoreLayers rebuilds a table from persisted layers, preserving their
// indices and ids.
func restoreLayers(layers []*Layer) *LayerTable {
	t := &LayerTable{byPath: make(map[string]*Layer, len(layers))}
	for _, layer := range layers {
		t.layers = append(t.layers, layer)
		t.byPath[layer.FullPath] = layer
	}
	return t
}
