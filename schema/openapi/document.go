// Package openapi describes the persisted definitions of registered variable
// kinds as OpenAPI component schemas.
package openapi

import (
	"fmt"
	"regexp"
	"sort"

	templating "github.com/goliatone/go-templating"
	"github.com/goliatone/go-templating/modelsync"
)

// Generate returns an OpenAPI document with one component per descriptor and
// a oneOf union discriminated by the "type" key.
func Generate(descs []templating.Descriptor, opts ...GeneratorOption) (map[string]any, error) {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	sorted := append([]templating.Descriptor(nil), descs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Type < sorted[j].Type })

	names := newNameRegistry()
	names.reserve(cfg.unionComponent)
	schemas := map[string]any{}
	refs := make([]any, 0, len(sorted))
	mapping := map[string]any{}
	for _, desc := range sorted {
		if desc.Type == "" {
			continue
		}
		schema, err := kindSchema(desc)
		if err != nil {
			return nil, err
		}
		name := names.unique(desc.Type + "_variable")
		ref := "#/components/schemas/" + name
		schemas[name] = schema
		refs = append(refs, map[string]any{"$ref": ref})
		mapping[desc.Type] = ref
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("openapi: no variable kinds to describe")
	}
	schemas[cfg.unionComponent] = map[string]any{
		"oneOf": refs,
		"discriminator": map[string]any{
			"propertyName": "type",
			"mapping":      mapping,
		},
	}

	info := map[string]any{
		"title":   cfg.info.Title,
		"version": cfg.info.Version,
	}
	if cfg.info.Description != "" {
		info["description"] = cfg.info.Description
	}
	return map[string]any{
		"openapi":    cfg.openAPIVersion,
		"info":       info,
		"paths":      map[string]any{},
		"components": map[string]any{"schemas": schemas},
	}, nil
}

// kindSchema builds the object schema of one kind from its defaults. Every
// default becomes the property default, and type is pinned to the tag.
func kindSchema(desc templating.Descriptor) (map[string]any, error) {
	defaults := map[string]any(modelsync.Clone(desc.Defaults))
	if defaults == nil {
		defaults = map[string]any{}
	}
	defaults["type"] = desc.Type

	schema, err := objectSchema(defaults)
	if err != nil {
		return nil, fmt.Errorf("openapi: kind %q: %w", desc.Type, err)
	}
	properties := schema["properties"].(map[string]any)
	for key, value := range defaults {
		prop := properties[key].(map[string]any)
		if value != nil {
			prop["default"] = value
		}
	}
	properties["type"].(map[string]any)["enum"] = []any{desc.Type}

	schema["required"] = []any{"type", "name"}
	if desc.Name != "" {
		schema["title"] = desc.Name
	}
	if desc.Description != "" {
		schema["description"] = desc.Description
	}
	if desc.SupportsMulti {
		schema["x-supports-multi"] = true
	}
	return schema, nil
}

type nameRegistry struct {
	used map[string]struct{}
}

func newNameRegistry() *nameRegistry {
	return &nameRegistry{used: map[string]struct{}{}}
}

func (r *nameRegistry) reserve(name string) {
	r.used[name] = struct{}{}
}

func (r *nameRegistry) unique(name string) string {
	safe := sanitizeComponentName(name)
	if safe == "" {
		safe = "Schema"
	}
	if _, exists := r.used[safe]; !exists {
		r.used[safe] = struct{}{}
		return safe
	}
	suffix := 1
	for {
		candidate := fmt.Sprintf("%s%d", safe, suffix)
		if _, exists := r.used[candidate]; !exists {
			r.used[candidate] = struct{}{}
			return candidate
		}
		suffix++
	}
}

var componentNameRegexp = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

func sanitizeComponentName(name string) string {
	name = componentNameRegexp.ReplaceAllString(name, "_")
	name = trimUnderscores(name)
	if name == "" {
		return ""
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

func trimUnderscores(input string) string {
	start := 0
	for start < len(input) && input[start] == '_' {
		start++
	}
	end := len(input)
	for end > start && input[end-1] == '_' {
		end--
	}
	return input[start:end]
}
