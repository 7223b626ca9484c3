package umi

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
)

// TemplateResolver assigns a template name to a building record's
// attribute mapping. The second return value is false when the record
// stays unresolved; unresolved is never an error.
type TemplateResolver interface {
	Resolve(attrs map[string]interface{}) (string, bool)
}

// TemplateMap maps one or more attribute columns to template names through
// a recursive mapping. Columns are consumed in order: the value of the
// first column selects a branch, the value of the second column a
// sub-branch, and so on until a template-name leaf. A branch may terminate
// early with a leaf, in which case the remaining columns are not
// consulted.
type TemplateMap struct {
	Columns []string
	Root    TemplateNode
}

// TemplateNode is either a leaf carrying a template name or an inner node
// carrying children keyed by attribute value.
type TemplateNode struct {
	Template string
	Children map[string]TemplateNode
}

// UnmarshalJSON accepts the conventional nested-object form, e.g.
//
//	{"COMMERCIAL": {"1948": "B_Off_0"}, "RESIDENTIAL": "B_Res_0_WoodFrame"}
//
// where string values are template names and objects are further levels.
func (n *TemplateNode) UnmarshalJSON(data []byte) error {
	var leaf string
	if err := json.Unmarshal(data, &leaf); err == nil {
		n.Template = leaf
		n.Children = nil
		return nil
	}
	var children map[string]TemplateNode
	if err := json.Unmarshal(data, &children); err != nil {
		return fmt.Errorf("template map entries must be names or nested objects: %w", err)
	}
	n.Template = ""
	n.Children = children
	return nil
}

// MarshalJSON writes the node back in the nested-object form.
func (n TemplateNode) MarshalJSON() ([]byte, error) {
	if n.Children == nil {
		return json.Marshal(n.Template)
	}
	return json.Marshal(n.Children)
}

// IsLeaf reports whether the node carries a template name.
func (n TemplateNode) IsLeaf() bool {
	return n.Children == nil
}

// Depth returns the number of lookup levels in the map.
func (m *TemplateMap) Depth() int {
	return nodeDepth(m.Root)
}

func nodeDepth(n TemplateNode) int {
	if n.IsLeaf() {
		return 0
	}
	max := 0
	for _, child := range n.Children {
		if d := nodeDepth(child); d > max {
			max = d
		}
	}
	return max + 1
}

// Resolve walks the configured columns through the mapping. Any missing
// attribute or absent branch resolves to unresolved, never an error.
func (m *TemplateMap) Resolve(attrs map[string]interface{}) (string, bool) {
	node := m.Root
	for _, column := range m.Columns {
		if node.IsLeaf() {
			break
		}
		v, ok := attrs[column]
		if !ok || v == nil {
			return "", false
		}
		child, ok := node.Children[attributeKey(v)]
		if !ok {
			return "", false
		}
		node = child
	}
	if !node.IsLeaf() || node.Template == "" {
		return "", false
	}
	return node.Template, true
}

// NewTemplateMap parses a nested JSON mapping keyed by the given columns.
func NewTemplateMap(data []byte, columns []string) (*TemplateMap, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("template map needs at least one attribute column")
	}
	var root TemplateNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.IsLeaf() {
		return nil, fmt.Errorf("template map must be an object, not a bare name")
	}
	return &TemplateMap{Columns: columns, Root: root}, nil
}

// LoadTemplateMap reads a template map JSON file.
func LoadTemplateMap(path string, columns []string) (*TemplateMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template map %s: %w", path, err)
	}
	m, err := NewTemplateMap(data, columns)
	if err != nil {
		return nil, fmt.Errorf("parsing template map %s: %w", path, err)
	}
	return m, nil
}

// ColumnResolver takes the template name directly from a named attribute
// column instead of a mapping.
type ColumnResolver struct {
	Column string
}

// Resolve returns the column's value as the template name.
func (c ColumnResolver) Resolve(attrs map[string]interface{}) (string, bool) {
	v, ok := attrs[c.Column]
	if !ok || v == nil {
		return "", false
	}
	name := attributeKey(v)
	return name, name != ""
}

// attributeKey normalizes an attribute value to the string key used in
// template maps. Whole numbers read from GIS files as floats become their
// integer form ("1948"), matching the keys authors write in map files.
func attributeKey(v interface{}) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'g', -1, 64)
	case float32:
		return attributeKey(float64(n))
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case bool:
		return strconv.FormatBool(n)
	case json.Number:
		return n.String()
	default:
		return fmt.Sprint(v)
	}
}
