// Package modelsync reconciles sparse persisted models with fully populated
// runtime structs. A defaults map names every field that belongs to a model:
// Hydrate fills a struct from a model falling back to the defaults, Project
// writes the struct back using the same key set.
//
// Keys are matched against `json` struct tags. Embedded structs are squashed,
// so shared state can live in an embedded struct and still map onto top level
// keys.
package modelsync

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"
)

// Hydrate sets every key in defaults on instance. The value comes from model
// when the key is present there, otherwise from defaults. Keys of model that
// are not listed in defaults are not read. instance must be a non-nil pointer.
// hooks run in order on every value before it is decoded.
func Hydrate(instance any, model, defaults map[string]any, hooks ...mapstructure.DecodeHookFunc) error {
	merged := make(map[string]any, len(defaults))
	for key, fallback := range defaults {
		if value, ok := model[key]; ok {
			merged[key] = Clone(value)
			continue
		}
		merged[key] = Clone(fallback)
	}

	config := &mapstructure.DecoderConfig{
		TagName:          "json",
		Squash:           true,
		WeaklyTypedInput: true,
		Result:           instance,
	}
	if len(hooks) > 0 {
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(hooks...)
	}
	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return fmt.Errorf("modelsync: decoder: %w", err)
	}
	if err := decoder.Decode(merged); err != nil {
		return fmt.Errorf("modelsync: hydrate: %w", err)
	}
	return nil
}

// Project writes the value of every key in defaults from instance into dst and
// returns dst. A nil dst allocates a new map, which then holds exactly the
// keys of defaults. Values are normalised to JSON shapes (maps, []any,
// float64, string, bool) so projected models compare equal to decoded ones.
func Project(dst map[string]any, instance any, defaults map[string]any) (map[string]any, error) {
	encoded := map[string]any{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Squash:  true,
		Result:  &encoded,
	})
	if err != nil {
		return nil, fmt.Errorf("modelsync: encoder: %w", err)
	}
	if err := decoder.Decode(instance); err != nil {
		return nil, fmt.Errorf("modelsync: project: %w", err)
	}

	normalized, err := normalize(encoded)
	if err != nil {
		return nil, fmt.Errorf("modelsync: normalize: %w", err)
	}

	if dst == nil {
		dst = make(map[string]any, len(defaults))
	}
	for key, fallback := range defaults {
		if value, ok := normalized[key]; ok {
			dst[key] = value
			continue
		}
		dst[key] = Clone(fallback)
	}
	return dst, nil
}

// Keys returns the sorted key set of defaults.
func Keys(defaults map[string]any) []string {
	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func normalize(payload map[string]any) (map[string]any, error) {
	buffer, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(buffer, &out); err != nil {
		return nil, err
	}
	return out, nil
}
