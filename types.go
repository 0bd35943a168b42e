// Package templating implements dashboard template variables: named,
// user selectable values substituted into queries and URLs.
//
// A Registry maps type tags to Descriptors. A Service loads persisted
// Definitions through the Registry, resolves each variable's options in
// dependency order, tracks the current selection, and projects everything
// back into Definitions on save.
package templating

import (
	"fmt"
	"reflect"

	"github.com/goliatone/go-templating/modelsync"
)

// Reserved wildcard option.
const (
	AllValue = "$__all"
	AllText  = "All"
)

// Definition is the sparse persisted form of a variable. Only the keys listed
// in a kind's defaults are read.
type Definition map[string]any

// Type returns the type tag of the definition.
func (d Definition) Type() string {
	value, _ := d["type"].(string)
	return value
}

// Name returns the variable name of the definition.
func (d Definition) Name() string {
	value, _ := d["name"].(string)
	return value
}

// Clone returns a deep copy of the definition.
func (d Definition) Clone() Definition {
	return modelsync.Clone(d)
}

// Option is one selectable value of a variable.
type Option struct {
	Text     string `json:"text"`
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
}

// IsAll reports whether the option is the wildcard.
func (o Option) IsAll() bool {
	return o.Value == AllValue
}

// Current is the selection of a variable.
type Current struct {
	Text  string `json:"text"`
	Value string `json:"value"`
}

// IsAll reports whether the current selection is the wildcard.
func (c Current) IsAll() bool {
	return c.Value == AllValue
}

// IsZero reports whether nothing is selected.
func (c Current) IsZero() bool {
	return c.Text == "" && c.Value == ""
}

var currentType = reflect.TypeOf(Current{})

// flattenCurrent accepts a current saved by a multi-value editor, where text
// and value are parallel lists, and keeps the wildcard when listed or the
// first entry otherwise.
func flattenCurrent(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != currentType {
		return data, nil
	}
	raw, ok := data.(map[string]any)
	if !ok {
		return data, nil
	}
	values, valueList := raw["value"].([]any)
	texts, textList := raw["text"].([]any)
	if !valueList && !textList {
		return data, nil
	}

	pick := 0
	for i, value := range values {
		if fmt.Sprint(value) == AllValue {
			pick = i
			break
		}
	}
	flat := make(map[string]any, len(raw))
	for key, value := range raw {
		flat[key] = value
	}
	if valueList {
		flat["value"] = entryAt(values, pick)
	}
	if textList {
		flat["text"] = entryAt(texts, pick)
	}
	return flat, nil
}

func entryAt(list []any, i int) string {
	switch {
	case i < len(list):
		return fmt.Sprint(list[i])
	case len(list) > 0:
		return fmt.Sprint(list[0])
	}
	return ""
}

// Hide controls how a variable is displayed.
type Hide int

const (
	HideNone Hide = iota
	HideLabel
	HideVariable
)

// Refresh controls when query options are recomputed.
type Refresh int

const (
	// RefreshNever keeps the persisted options on load.
	RefreshNever Refresh = iota
	RefreshOnLoad
	RefreshOnTimeRangeChange
)

// SortMode orders resolved option values.
type SortMode int

const (
	SortDisabled SortMode = iota
	SortAlphaAsc
	SortAlphaDesc
	SortNumericAsc
	SortNumericDesc
	SortAlphaInsensitiveAsc
	SortAlphaInsensitiveDesc
)

// Status is the resolution state of a loaded variable. It is runtime only and
// never persisted.
type Status int

const (
	StatusPending Status = iota
	StatusReady
	StatusNoData
	StatusStale
	StatusDisabled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusNoData:
		return "no-data"
	case StatusStale:
		return "stale"
	case StatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}
