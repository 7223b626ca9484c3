package umi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const depth2Map = `{
	"COMMERCIAL":  {"1948": "B_Off_0", "1970": "B_Off_1"},
	"RESIDENTIAL": {"1948": "B_Res_0_WoodFrame", "1970": "B_Res_1_WoodFrame"}
}`

func TestTemplateMapResolve(t *testing.T) {
	m, err := NewTemplateMap([]byte(depth2Map), []string{"use_type", "year_built"})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Depth())

	name, ok := m.Resolve(map[string]interface{}{"use_type": "COMMERCIAL", "year_built": 1948})
	require.True(t, ok)
	assert.Equal(t, "B_Off_0", name)

	// Whole floats read from attribute tables match integer keys.
	name, ok = m.Resolve(map[string]interface{}{"use_type": "RESIDENTIAL", "year_built": 1970.0})
	require.True(t, ok)
	assert.Equal(t, "B_Res_1_WoodFrame", name)
}

func TestTemplateMapUnresolved(t *testing.T) {
	m, err := NewTemplateMap([]byte(depth2Map), []string{"use_type", "year_built"})
	require.NoError(t, err)

	cases := []map[string]interface{}{
		{"use_type": "MIXEDUSE", "year_built": 1948},
		{"use_type": "COMMERCIAL", "year_built": 1899},
		{"use_type": "COMMERCIAL"},
		{"year_built": 1948},
		{"use_type": nil, "year_built": 1948},
	}
	for _, attrs := range cases {
		name, ok := m.Resolve(attrs)
		assert.False(t, ok, "attrs %v", attrs)
		assert.Empty(t, name)
	}
}

func TestTemplateMapEarlyLeaf(t *testing.T) {
	raw := `{
		"COMMERCIAL": {"1948": "B_Off_0"},
		"PARKING": "B_Shade_0"
	}`
	m, err := NewTemplateMap([]byte(raw), []string{"use_type", "year_built"})
	require.NoError(t, err)

	// A leaf above the deepest level wins without consuming more columns.
	name, ok := m.Resolve(map[string]interface{}{"use_type": "PARKING"})
	require.True(t, ok)
	assert.Equal(t, "B_Shade_0", name)
}

func TestTemplateMapDepth3(t *testing.T) {
	raw := `{
		"COMMERCIAL": {"1948": {"2": "B_Off_0_Low", "12": "B_Off_0_High"}}
	}`
	m, err := NewTemplateMap([]byte(raw), []string{"use_type", "year_built", "floors"})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Depth())

	name, ok := m.Resolve(map[string]interface{}{
		"use_type": "COMMERCIAL", "year_built": "1948", "floors": 12,
	})
	require.True(t, ok)
	assert.Equal(t, "B_Off_0_High", name)
}

func TestTemplateMapRejectsBareName(t *testing.T) {
	_, err := NewTemplateMap([]byte(`"B_Off_0"`), []string{"use_type"})
	assert.Error(t, err)

	_, err = NewTemplateMap([]byte(depth2Map), nil)
	assert.Error(t, err)
}

func TestColumnResolver(t *testing.T) {
	r := ColumnResolver{Column: "TemplateName"}

	name, ok := r.Resolve(map[string]interface{}{"TemplateName": "B_Res_0"})
	require.True(t, ok)
	assert.Equal(t, "B_Res_0", name)

	_, ok = r.Resolve(map[string]interface{}{"TemplateName": ""})
	assert.False(t, ok)
	_, ok = r.Resolve(map[string]interface{}{})
	assert.False(t, ok)
}

func TestAttributeKey(t *testing.T) {
	assert.Equal(t, "1948", attributeKey(1948.0))
	assert.Equal(t, "1948", attributeKey(1948))
	assert.Equal(t, "1948.5", attributeKey(1948.5))
	assert.Equal(t, "COMMERCIAL", attributeKey("COMMERCIAL"))
	assert.Equal(t, "true", attributeKey(true))
}
