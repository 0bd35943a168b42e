package templating

import (
	"context"
	"strings"
)

type constantModel struct {
	Header
	Selection
	Query string `json:"query"`
}

// Constant is a hidden variable with a single fixed value.
type Constant struct {
	base
	persisted constantModel
}

func constantDefaults() Definition {
	return commonDefaults("constant", Definition{
		"hide":  int(HideVariable),
		"query": "",
	})
}

// NewConstant hydrates a constant variable from def.
func NewConstant(def Definition) (*Constant, error) {
	v := &Constant{}
	v.base = base{
		header:    &v.persisted.Header,
		selection: &v.persisted.Selection,
		model:     &v.persisted,
		defaults:  constantDefaults(),
	}
	if err := v.hydrate(def); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Constant) ResolveOptions(context.Context, Env) ([]Option, error) {
	value := strings.TrimSpace(v.persisted.Query)
	return []Option{{Text: value, Value: value}}, nil
}

func (v *Constant) UpdateOptions(ctx context.Context, env Env) error {
	return updateOptions(ctx, v, env)
}
