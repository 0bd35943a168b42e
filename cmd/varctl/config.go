package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	templating "github.com/goliatone/go-templating"
)

// Config is the varctl TOML configuration.
type Config struct {
	// TemplateServer is the base url global variables fetch templates from.
	TemplateServer string `toml:"template_server"`
	// NATSURL, when set, publishes variable activity to NATS.
	NATSURL    string `toml:"nats_url"`
	NATSPrefix string `toml:"nats_prefix"`
	// NATSVerbs limits the published events; empty publishes all of them.
	NATSVerbs   []string                    `toml:"nats_verbs"`
	Datasources map[string]DatasourceConfig `toml:"datasources"`
}

// DatasourceConfig is a static datasource answering queries from a table.
type DatasourceConfig struct {
	Queries map[string][]string `toml:"queries"`
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("reading %s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}

func (c Config) provider() templating.Datasources {
	out := make(templating.Datasources, len(c.Datasources))
	for name, ds := range c.Datasources {
		out[name] = staticDatasource{name: name, queries: ds.Queries}
	}
	return out
}

type staticDatasource struct {
	name    string
	queries map[string][]string
}

func (s staticDatasource) Query(_ context.Context, query string) ([]string, error) {
	values, ok := s.queries[strings.TrimSpace(query)]
	if !ok {
		return nil, fmt.Errorf("datasource %s: no result for query %q", s.name, query)
	}
	return append([]string(nil), values...), nil
}
