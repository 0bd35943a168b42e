package templating

import (
	"context"
	"fmt"
	"strings"
)

// DefaultDatasource is the name used when a definition names none.
const DefaultDatasource = "default"

// Datasource runs option queries. Results are raw values in order.
type Datasource interface {
	Query(ctx context.Context, query string) ([]string, error)
}

// DatasourceFunc adapts a function to Datasource.
type DatasourceFunc func(ctx context.Context, query string) ([]string, error)

// Query implements Datasource.
func (f DatasourceFunc) Query(ctx context.Context, query string) ([]string, error) {
	return f(ctx, query)
}

// DatasourceProvider looks datasources up by name.
type DatasourceProvider interface {
	Datasource(name string) (Datasource, error)
}

// Datasources is a DatasourceProvider backed by a map. An empty name selects
// the DefaultDatasource entry.
type Datasources map[string]Datasource

// Datasource implements DatasourceProvider.
func (d Datasources) Datasource(name string) (Datasource, error) {
	name = strings.TrimSpace(name)
	if ds, ok := d[name]; ok && name != "" {
		return ds, nil
	}
	if ds, ok := d[DefaultDatasource]; ok && (name == "" || name == DefaultDatasource) {
		return ds, nil
	}
	if name == "" {
		name = DefaultDatasource
	}
	return nil, fmt.Errorf("%w: %q", ErrNoDatasource, name)
}

// TemplateFetcher loads a shared variable template by id.
type TemplateFetcher interface {
	FetchTemplate(ctx context.Context, id string) (Definition, error)
}

// TemplateFetcherFunc adapts a function to TemplateFetcher.
type TemplateFetcherFunc func(ctx context.Context, id string) (Definition, error)

// FetchTemplate implements TemplateFetcher.
func (f TemplateFetcherFunc) FetchTemplate(ctx context.Context, id string) (Definition, error) {
	return f(ctx, id)
}

// datasourceName extracts a datasource name from the persisted value, which
// is either a plain string, a {"uid": ...} or {"name": ...} reference, or nil.
func datasourceName(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		for _, key := range []string{"uid", "name", "type"} {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
		return ""
	}
	return fmt.Sprint(value)
}
