package openapi

import (
	"fmt"
	"reflect"
	"strings"

	templating "github.com/goliatone/go-templating"
	"github.com/goliatone/go-templating/modelsync"
)

// defaultSchema describes the JSON shape of a definition default. Built-in
// kinds only use JSON shapes plus int; typed Go values registered by custom
// kinds fall through to reflectedSchema.
func defaultSchema(value any) (map[string]any, error) {
	switch v := value.(type) {
	case nil:
		return map[string]any{"nullable": true}, nil
	case bool:
		return typed("boolean"), nil
	case string:
		return typed("string"), nil
	case int, int32, int64, uint, uint32, uint64:
		return typed("integer"), nil
	case float32, float64:
		return typed("number"), nil
	case map[string]any:
		return objectSchema(v)
	case templating.Definition:
		return objectSchema(v)
	case []any:
		return arraySchema(len(v), func(i int) any { return v[i] })
	}
	return reflectedSchema(reflect.ValueOf(value))
}

func typed(name string) map[string]any {
	return map[string]any{"type": name}
}

// objectSchema walks properties in key order so the first failing key is
// stable across runs.
func objectSchema(props map[string]any) (map[string]any, error) {
	properties := make(map[string]any, len(props))
	for _, key := range modelsync.Keys(props) {
		child, err := defaultSchema(props[key])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		properties[key] = child
	}
	return map[string]any{"type": "object", "properties": properties}, nil
}

// arraySchema takes its item schema from the first element; an empty default
// list leaves items open.
func arraySchema(n int, at func(int) any) (map[string]any, error) {
	items := map[string]any{}
	if n > 0 {
		var err error
		if items, err = defaultSchema(at(0)); err != nil {
			return nil, fmt.Errorf("[0]: %w", err)
		}
	}
	return map[string]any{"type": "array", "items": items}, nil
}

func reflectedSchema(rv reflect.Value) (map[string]any, error) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return map[string]any{"nullable": true}, nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Bool:
		return typed("boolean"), nil
	case reflect.String:
		return typed("string"), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return typed("integer"), nil
	case reflect.Float32, reflect.Float64:
		return typed("number"), nil
	case reflect.Slice, reflect.Array:
		return arraySchema(rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key type %s unsupported", rv.Type().Key())
		}
		props := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			props[iter.Key().String()] = iter.Value().Interface()
		}
		return objectSchema(props)
	case reflect.Struct:
		return objectSchema(structFields(rv))
	}
	return nil, fmt.Errorf("unsupported default of type %s", rv.Type())
}

// structFields maps exported fields by their json names, the way defaults of
// a typed model are persisted.
func structFields(rv reflect.Value) map[string]any {
	rt := rv.Type()
	props := map[string]any{}
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = field.Name
		}
		props[name] = rv.Field(i).Interface()
	}
	return props
}
