// Package annotations holds the dashboard annotation query model. It shares
// the defaults merge convention of template variables but has no options and
// no dependencies.
package annotations

import (
	"github.com/goliatone/go-templating/modelsync"
)

// DefaultIconColor is the marker color of a new annotation query.
const DefaultIconColor = "rgba(255, 96, 96, 1)"

// Fields are the persisted fields of an annotation query.
type Fields struct {
	Name       string `json:"name"`
	Datasource any    `json:"datasource"`
	IconColor  string `json:"iconColor"`
	Enable     bool   `json:"enable"`
	ShowIn     int    `json:"showIn"`
	Hide       bool   `json:"hide"`
}

// Model is a hydrated annotation query.
type Model struct {
	Fields

	source map[string]any
}

// Defaults returns the persisted keys of an annotation query and their
// default values.
func Defaults() map[string]any {
	return map[string]any{
		"name":       "",
		"datasource": nil,
		"iconColor":  DefaultIconColor,
		"enable":     true,
		"showIn":     0,
		"hide":       false,
	}
}

// New hydrates a model from def.
func New(def map[string]any) (*Model, error) {
	m := &Model{}
	if err := modelsync.Hydrate(&m.Fields, def, Defaults()); err != nil {
		return nil, err
	}
	m.source = modelsync.Clone(def)
	return m, nil
}

// SaveModel writes the model back onto a copy of the definition it was built
// from, so keys it does not own survive.
func (m *Model) SaveModel() (map[string]any, error) {
	dst := modelsync.Clone(m.source)
	if dst == nil {
		dst = map[string]any{}
	}
	return modelsync.Project(dst, &m.Fields, Defaults())
}

// LoadAll hydrates every definition in order.
func LoadAll(defs []map[string]any) ([]*Model, error) {
	out := make([]*Model, 0, len(defs))
	for _, def := range defs {
		m, err := New(def)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// SaveAll projects every model in order.
func SaveAll(models []*Model) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(models))
	for _, m := range models {
		def, err := m.SaveModel()
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}
