package templating

import (
	"context"
	"regexp"
	"strconv"

	"github.com/goliatone/go-templating/expression"
)

type expressionModel struct {
	Header
	Selection
	Query  string   `json:"query"`
	Engine string   `json:"engine"`
	Regex  string   `json:"regex"`
	Sort   SortMode `json:"sort"`
}

// Expression is a variable whose options are computed by an expression over
// the other variables. The query may reference variables with the usual
// syntax or read them from the vars map.
type Expression struct {
	base
	persisted expressionModel
	engines   *expression.Engines
}

var varsIndexPattern = regexp.MustCompile(`vars\s*(?:\[\s*"(\w+)"\s*\]|\.(\w+))`)

func expressionDefaults() Definition {
	return commonDefaults("expression", mergeDefinitions(selectionDefaults(), Definition{
		"query":  "",
		"engine": "",
		"regex":  "",
		"sort":   int(SortDisabled),
	}))
}

// NewExpression hydrates an expression variable from def.
func NewExpression(def Definition, engines *expression.Engines) (*Expression, error) {
	v := &Expression{engines: engines}
	v.base = base{
		header:    &v.persisted.Header,
		selection: &v.persisted.Selection,
		model:     &v.persisted,
		defaults:  expressionDefaults(),
	}
	if err := v.hydrate(def); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Expression) ResolveOptions(_ context.Context, env Env) ([]Option, error) {
	if v.engines == nil {
		return nil, ErrNoEngines
	}
	result, err := v.engines.Evaluate(v.persisted.Engine, rewriteReferences(v.persisted.Query), expression.Context{
		Variable: v.Name(),
		Vars:     env.Values(),
	})
	if err != nil {
		return nil, err
	}
	values, err := expression.ToStrings(result)
	if err != nil {
		return nil, err
	}
	options, err := FilterValues(values, env.Interpolate(v.persisted.Regex))
	if err != nil {
		return nil, err
	}
	return SortOptions(options, v.persisted.Sort), nil
}

func (v *Expression) UpdateOptions(ctx context.Context, env Env) error {
	return updateOptions(ctx, v, env)
}

func (v *Expression) DependsOn(name string) bool {
	if name == "" {
		return false
	}
	if ReferencesVariable(v.persisted.Query, name) || ReferencesVariable(v.persisted.Regex, name) {
		return true
	}
	for _, groups := range varsIndexPattern.FindAllStringSubmatch(v.persisted.Query, -1) {
		if groups[1] == name || groups[2] == name {
			return true
		}
	}
	return false
}

// rewriteReferences turns $name, ${name} and [[name]] into vars["name"] so
// every engine sees the same binding.
func rewriteReferences(query string) string {
	return replaceReferences(query, func(ref reference, _ string) string {
		return "vars[" + strconv.Quote(ref.name) + "]"
	})
}
