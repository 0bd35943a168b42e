package templating

import (
	"context"
	"sync"
)

type textboxModel struct {
	Header
	Selection
	Query string `json:"query"`
}

// Textbox is a free form variable. Any value set on it, including one from a
// URL, becomes its only option.
type Textbox struct {
	base
	persisted textboxModel

	// mu guards persisted.Query, which ResolveOptions reads off the service
	// lock.
	mu sync.Mutex
}

func textboxDefaults() Definition {
	return commonDefaults("textbox", Definition{
		"query": "",
	})
}

// NewTextbox hydrates a textbox variable from def. A persisted current value
// seeds an empty query.
func NewTextbox(def Definition) (*Textbox, error) {
	v := &Textbox{}
	v.base = base{
		header:    &v.persisted.Header,
		selection: &v.persisted.Selection,
		model:     &v.persisted,
		defaults:  textboxDefaults(),
	}
	if err := v.hydrate(def); err != nil {
		return nil, err
	}
	if v.persisted.Query == "" && v.persisted.Current.Value != "" {
		v.persisted.Query = v.persisted.Current.Value
	}
	return v, nil
}

func (v *Textbox) ResolveOptions(context.Context, Env) ([]Option, error) {
	v.mu.Lock()
	query := v.persisted.Query
	v.mu.Unlock()
	return []Option{{Text: query, Value: query}}, nil
}

func (v *Textbox) UpdateOptions(ctx context.Context, env Env) error {
	return updateOptions(ctx, v, env)
}

// SetValue accepts any value.
func (v *Textbox) SetValue(option Option) error {
	v.set(option.Value)
	return nil
}

func (v *Textbox) SetValueFromURL(raw string) {
	v.set(raw)
}

func (v *Textbox) set(value string) {
	v.mu.Lock()
	v.persisted.Query = value
	v.mu.Unlock()
	v.persisted.Current = Current{Text: value, Value: value}
	v.persisted.SetOptions([]Option{{Text: value, Value: value}})
}

func (v *Textbox) SaveModel() (Definition, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.base.SaveModel()
}
