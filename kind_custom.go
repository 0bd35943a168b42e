package templating

import "context"

type customModel struct {
	Header
	Selection
	Query string `json:"query"`
}

// Custom is a variable whose options are a literal comma separated list.
type Custom struct {
	base
	persisted customModel
}

func customDefaults() Definition {
	return commonDefaults("custom", mergeDefinitions(selectionDefaults(), Definition{
		"query": "",
	}))
}

// NewCustom hydrates a custom variable from def.
func NewCustom(def Definition) (*Custom, error) {
	v := &Custom{}
	v.base = base{
		header:    &v.persisted.Header,
		selection: &v.persisted.Selection,
		model:     &v.persisted,
		defaults:  customDefaults(),
	}
	if err := v.hydrate(def); err != nil {
		return nil, err
	}
	return v, nil
}

// Query returns the literal option list.
func (v *Custom) Query() string {
	return v.persisted.Query
}

func (v *Custom) ResolveOptions(context.Context, Env) ([]Option, error) {
	return LiteralOptions(v.persisted.Query), nil
}

func (v *Custom) UpdateOptions(ctx context.Context, env Env) error {
	return updateOptions(ctx, v, env)
}
