package templating

import (
	"context"
	"fmt"
)

type queryModel struct {
	Header
	Selection
	Query          string   `json:"query"`
	Datasource     any      `json:"datasource"`
	Regex          string   `json:"regex"`
	Sort           SortMode `json:"sort"`
	Refresh        Refresh  `json:"refresh"`
	Tags           []any    `json:"tags"`
	TagsQuery      string   `json:"tagsQuery"`
	TagValuesQuery string   `json:"tagValuesQuery"`
	UseTags        bool     `json:"useTags"`
}

// Query is a variable whose options come from a datasource query. The query
// and regex may reference other variables.
type Query struct {
	base
	persisted queryModel
	sources   DatasourceProvider
}

func queryDefaults() Definition {
	return commonDefaults("query", mergeDefinitions(selectionDefaults(), Definition{
		"query":          "",
		"datasource":     nil,
		"regex":          "",
		"sort":           int(SortDisabled),
		"refresh":        int(RefreshOnLoad),
		"tags":           []any{},
		"tagsQuery":      "",
		"tagValuesQuery": "",
		"useTags":        false,
	}))
}

// NewQuery hydrates a query variable from def. sources may be nil, in which
// case resolution fails with ErrNoDatasource.
func NewQuery(def Definition, sources DatasourceProvider) (*Query, error) {
	v := &Query{sources: sources}
	v.base = base{
		header:    &v.persisted.Header,
		selection: &v.persisted.Selection,
		model:     &v.persisted,
		defaults:  queryDefaults(),
	}
	if err := v.hydrate(def); err != nil {
		return nil, err
	}
	return v, nil
}

// DatasourceName returns the name of the datasource the query runs against.
func (v *Query) DatasourceName() string {
	return datasourceName(v.persisted.Datasource)
}

func (v *Query) ResolveOptions(ctx context.Context, env Env) ([]Option, error) {
	if v.sources == nil {
		return nil, ErrNoDatasource
	}
	ds, err := v.sources.Datasource(env.Interpolate(v.DatasourceName()))
	if err != nil {
		return nil, err
	}
	values, err := ds.Query(ctx, env.Interpolate(v.persisted.Query))
	if err != nil {
		return nil, fmt.Errorf("templating: query %q: %w", v.Name(), err)
	}
	options, err := FilterValues(values, env.Interpolate(v.persisted.Regex))
	if err != nil {
		return nil, err
	}
	return SortOptions(options, v.persisted.Sort), nil
}

func (v *Query) UpdateOptions(ctx context.Context, env Env) error {
	return updateOptions(ctx, v, env)
}

func (v *Query) DependsOn(name string) bool {
	return ReferencesVariable(v.persisted.Query, name) ||
		ReferencesVariable(v.persisted.Regex, name) ||
		ReferencesVariable(v.DatasourceName(), name)
}

func (v *Query) RefreshMode() Refresh {
	return v.persisted.Refresh
}

// PersistedOptions returns the stored options when the variable never
// refreshes and has options to reuse.
func (v *Query) PersistedOptions() ([]Option, bool) {
	if v.persisted.Refresh != RefreshNever || len(v.persisted.Options) == 0 {
		return nil, false
	}
	return withoutAllOption(v.persisted.Options), true
}
