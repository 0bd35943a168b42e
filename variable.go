package templating

import (
	"context"

	"github.com/go-viper/mapstructure/v2"

	"github.com/goliatone/go-templating/modelsync"
)

// Variable is a hydrated template variable. Instances are owned by a Service,
// which serializes every call except ResolveOptions.
type Variable interface {
	Name() string
	Type() string
	// Snapshot returns a copy of the current selection and options.
	Snapshot() Selection
	// ResolveOptions computes the option list. It is the only call that may
	// block and it reads nothing but the persisted definition fields, so the
	// Service runs it without holding its lock.
	ResolveOptions(ctx context.Context, env Env) ([]Option, error)
	// ApplyOptions installs options, adds the wildcard when enabled and
	// validates the selection.
	ApplyOptions(options []Option)
	// UpdateOptions is ResolveOptions followed by ApplyOptions.
	UpdateOptions(ctx context.Context, env Env) error
	// Reset drops every option and clears the current value.
	Reset()
	SetValue(option Option) error
	SetValueFromURL(raw string)
	ValueForURL() string
	DependsOn(name string) bool
	// SaveModel projects the instance onto exactly the keys of its kind's
	// defaults.
	SaveModel() (Definition, error)
}

// RefreshPolicy is implemented by kinds whose options follow a refresh mode.
type RefreshPolicy interface {
	RefreshMode() Refresh
}

// PersistedOptions is implemented by kinds that can skip resolution on load
// and reuse the options stored in their definition.
type PersistedOptions interface {
	PersistedOptions() ([]Option, bool)
}

// Header holds the persisted fields every kind shares.
type Header struct {
	Kind    string `json:"type"`
	VarName string `json:"name"`
	Label   string `json:"label"`
	Hide    Hide   `json:"hide"`
}

// base implements the kind independent parts of Variable over pointers into a
// kind's persisted model.
type base struct {
	header    *Header
	selection *Selection
	model     any
	defaults  Definition
}

func (b *base) hydrate(def Definition) error {
	return modelsync.Hydrate(b.model, def, b.defaults, mapstructure.DecodeHookFuncType(flattenCurrent))
}

func (b *base) Name() string {
	return b.header.VarName
}

func (b *base) Type() string {
	return b.header.Kind
}

func (b *base) Snapshot() Selection {
	return b.selection.clone()
}

func (b *base) ApplyOptions(options []Option) {
	b.selection.SetOptions(options)
}

func (b *base) Reset() {
	b.selection.Options = []Option{}
	b.selection.Current = Current{}
}

func (b *base) SetValue(option Option) error {
	return b.selection.Select(option)
}

func (b *base) SetValueFromURL(raw string) {
	b.selection.SelectFromURL(raw)
}

func (b *base) ValueForURL() string {
	return b.selection.ValueForURL()
}

func (b *base) DependsOn(string) bool {
	return false
}

func (b *base) SaveModel() (Definition, error) {
	out, err := modelsync.Project(nil, b.model, b.defaults)
	if err != nil {
		return nil, err
	}
	return Definition(out), nil
}

func updateOptions(ctx context.Context, v Variable, env Env) error {
	options, err := v.ResolveOptions(ctx, env)
	if err != nil {
		return err
	}
	v.ApplyOptions(options)
	return nil
}

// commonDefaults returns the defaults shared by every built-in kind merged
// with extra.
func commonDefaults(kind string, extra Definition) Definition {
	defaults := Definition{
		"type":    kind,
		"name":    "",
		"label":   "",
		"hide":    int(HideNone),
		"current": map[string]any{"text": "", "value": ""},
		"options": []any{},
	}
	for key, value := range extra {
		defaults[key] = value
	}
	return defaults
}

func selectionDefaults() Definition {
	return Definition{
		"includeAll": false,
		"allValue":   "",
		"multi":      false,
	}
}

func mergeDefinitions(defs ...Definition) Definition {
	out := Definition{}
	for _, def := range defs {
		for key, value := range def {
			out[key] = value
		}
	}
	return out
}
