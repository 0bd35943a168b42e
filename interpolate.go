package templating

import (
	"regexp"
	"strings"
)

// Interpolation formats accepted in ${name:format} and [[name:format]].
const (
	FormatGlob  = "glob"
	FormatCSV   = "csv"
	FormatPipe  = "pipe"
	FormatRegex = "regex"
	FormatRaw   = "raw"
)

// Env is an immutable snapshot of variable selections used to expand
// references while options resolve.
type Env struct {
	selections map[string]Selection
}

// NewEnv snapshots the selections of vars.
func NewEnv(vars ...Variable) Env {
	selections := make(map[string]Selection, len(vars))
	for _, v := range vars {
		if v == nil {
			continue
		}
		selections[v.Name()] = v.Snapshot()
	}
	return Env{selections: selections}
}

// Lookup returns the current selection of name.
func (e Env) Lookup(name string) (Current, bool) {
	selection, ok := e.selections[name]
	return selection.Current, ok
}

// Interpolate replaces references to known variables with their current
// value. Unknown references are left as written.
func (e Env) Interpolate(text string) string {
	return replaceReferences(text, func(ref reference, match string) string {
		selection, ok := e.selections[ref.name]
		if !ok {
			return match
		}
		return formatSelection(selection, ref.format)
	})
}

// Values maps every variable name to its current value. A wildcard selection
// maps to the custom all value when one is set, otherwise to the list of
// option values.
func (e Env) Values() map[string]any {
	values := make(map[string]any, len(e.selections))
	for name, selection := range e.selections {
		if !selection.Current.IsAll() {
			values[name] = selection.Current.Value
			continue
		}
		if selection.AllValue != "" {
			values[name] = selection.AllValue
			continue
		}
		all := selection.Values()
		list := make([]any, len(all))
		for i, value := range all {
			list[i] = value
		}
		values[name] = list
	}
	return values
}

func formatSelection(selection Selection, format string) string {
	if !selection.Current.IsAll() {
		if format == FormatRegex {
			return regexp.QuoteMeta(selection.Current.Value)
		}
		return selection.Current.Value
	}
	if format == FormatRaw {
		return AllValue
	}
	if selection.AllValue != "" {
		return selection.AllValue
	}

	values := selection.Values()
	switch format {
	case FormatCSV:
		return strings.Join(values, ",")
	case FormatPipe:
		return strings.Join(values, "|")
	case FormatRegex:
		quoted := make([]string, len(values))
		for i, value := range values {
			quoted[i] = regexp.QuoteMeta(value)
		}
		return "(" + strings.Join(quoted, "|") + ")"
	default:
		if len(values) == 1 {
			return values[0]
		}
		return "{" + strings.Join(values, ",") + "}"
	}
}
