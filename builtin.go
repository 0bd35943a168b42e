package templating

import "context"

// RegisterBuiltins registers the custom, query, constant, textbox, global and
// expression kinds on r.
func RegisterBuiltins(r *Registry) {
	r.Register(Descriptor{
		Type:          "custom",
		Name:          "Custom",
		Description:   "Define variable values manually",
		SupportsMulti: true,
		Defaults:      customDefaults(),
		Construct: func(_ context.Context, def Definition, _ Collaborators) (Construction, error) {
			v, err := NewCustom(def)
			if err != nil {
				return Construction{}, err
			}
			return Built(v), nil
		},
	})
	r.Register(Descriptor{
		Type:          "query",
		Name:          "Query",
		Description:   "Variable values are fetched from a datasource query",
		SupportsMulti: true,
		Defaults:      queryDefaults(),
		Construct: func(_ context.Context, def Definition, collab Collaborators) (Construction, error) {
			v, err := NewQuery(def, collab.Datasources)
			if err != nil {
				return Construction{}, err
			}
			return Built(v), nil
		},
	})
	r.Register(Descriptor{
		Type:        "constant",
		Name:        "Constant",
		Description: "Define a hidden constant variable, useful for metric prefixes in dashboards you want to share",
		Defaults:    constantDefaults(),
		Construct: func(_ context.Context, def Definition, _ Collaborators) (Construction, error) {
			v, err := NewConstant(def)
			if err != nil {
				return Construction{}, err
			}
			return Built(v), nil
		},
	})
	r.Register(Descriptor{
		Type:        "textbox",
		Name:        "Text box",
		Description: "Define a textbox variable, where users can enter any arbitrary string",
		Defaults:    textboxDefaults(),
		Construct: func(_ context.Context, def Definition, _ Collaborators) (Construction, error) {
			v, err := NewTextbox(def)
			if err != nil {
				return Construction{}, err
			}
			return Built(v), nil
		},
	})
	r.Register(Descriptor{
		Type:          "global",
		Name:          "Global",
		Description:   "Global template variable",
		SupportsMulti: true,
		Defaults:      globalDefaults(),
		Construct:     constructGlobal,
	})
	r.Register(Descriptor{
		Type:          "expression",
		Name:          "Expression",
		Description:   "Variable values are computed by an expression over other variables",
		SupportsMulti: true,
		Defaults:      expressionDefaults(),
		Construct: func(_ context.Context, def Definition, collab Collaborators) (Construction, error) {
			v, err := NewExpression(def, collab.Engines)
			if err != nil {
				return Construction{}, err
			}
			return Built(v), nil
		},
	})
}

// NewDefaultRegistry returns a registry holding the built-in kinds.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}
