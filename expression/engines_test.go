package expression

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEnginesEvaluateOptionLists(t *testing.T) {
	engines := NewEngines()
	ctx := Context{Variable: "servers", Vars: map[string]any{"env": "prod"}}

	cases := []struct {
		name   string
		engine string
		expr   string
		want   []string
	}{
		{name: "expr default engine", engine: "", expr: `vars["env"] == "prod" ? ["a", "b"] : ["c"]`, want: []string{"a", "b"}},
		{name: "expr top level binding", engine: EngineExpr, expr: `env + "-1"`, want: []string{"prod-1"}},
		{name: "expr registry function", engine: EngineExpr, expr: `seq(1, 3)`, want: []string{"1", "2", "3"}},
		{name: "cel ternary", engine: EngineCEL, expr: `vars["env"] == "prod" ? ["a", "b"] : ["c"]`, want: []string{"a", "b"}},
		{name: "cel call", engine: EngineCEL, expr: `call("csv", ["x, y"])`, want: []string{"x", "y"}},
		{name: "cel scalar", engine: "CEL", expr: `vars["env"] + "-east"`, want: []string{"prod-east"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			value, err := engines.Evaluate(tc.engine, tc.expr, ctx)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			got, err := ToStrings(value)
			if err != nil {
				t.Fatalf("to strings: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("values mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEnginesUnknownAndUnavailable(t *testing.T) {
	engines := NewEngines()

	if _, err := engines.Evaluate("lua", "1", Context{}); !errors.Is(err, ErrUnknownEngine) {
		t.Fatalf("expected ErrUnknownEngine, got %v", err)
	}
	if jsAvailable() {
		return
	}
	if _, err := engines.Evaluate(EngineJS, "1", Context{}); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
}

func TestEnginesLogsEvaluations(t *testing.T) {
	var events []LogEvent
	engines := NewEngines(WithLogger(LoggerFunc(func(event LogEvent) {
		events = append(events, event)
	})))

	if _, err := engines.Evaluate(EngineExpr, `"ok"`, Context{Variable: "region"}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if _, err := engines.Evaluate(EngineExpr, `vars[`, Context{Variable: "region"}); err == nil {
		t.Fatalf("expected compile error")
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 log events, got %d", len(events))
	}
	if events[0].Engine != EngineExpr || events[0].Variable != "region" || events[0].Err != nil {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	var evalErr *EvaluationError
	if !errors.As(events[1].Err, &evalErr) || evalErr.Engine != EngineExpr {
		t.Fatalf("expected EvaluationError on second event, got %v", events[1].Err)
	}
}

func TestEnginesShareNamespacedCache(t *testing.T) {
	cache := NewMemoryCache()
	engines := NewEngines(WithProgramCache(cache))
	expr := `"same"`

	for i := 0; i < 2; i++ {
		if _, err := engines.Evaluate(EngineExpr, expr, Context{}); err != nil {
			t.Fatalf("expr: %v", err)
		}
		if _, err := engines.Evaluate(EngineCEL, expr, Context{}); err != nil {
			t.Fatalf("cel: %v", err)
		}
	}
	if cache.Len() != 2 {
		t.Fatalf("expected one cached program per engine, got %d", cache.Len())
	}
}

func TestEnginesCustomEvaluatorOverride(t *testing.T) {
	stub := evaluatorFunc(func(ctx Context, expr string) (any, error) {
		return []string{expr, ctx.Variable}, nil
	})
	engines := NewEngines(WithEvaluator("stub", stub), WithDefaultEngine("stub"))

	value, err := engines.Evaluate("", "q", Context{Variable: "v"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if diff := cmp.Diff([]string{"q", "v"}, value); diff != "" {
		t.Fatalf("value mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"cel", "expr", "stub"}, withoutJS(engines.Names())); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestToStrings(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  []string
		err   bool
	}{
		{name: "nil", value: nil, want: nil},
		{name: "string", value: "a", want: []string{"a"}},
		{name: "strings", value: []string{"a", "b"}, want: []string{"a", "b"}},
		{name: "mixed list", value: []any{"a", int64(2), 1.5, true, nil}, want: []string{"a", "2", "1.5", "true", ""}},
		{name: "number", value: 42, want: []string{"42"}},
		{name: "map", value: map[string]any{}, err: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToStrings(tc.value)
			if tc.err {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompiledRulesReuseProgram(t *testing.T) {
	for _, evaluator := range []Evaluator{NewExprEvaluator(), NewCELEvaluator()} {
		rule, err := evaluator.Compile(`vars["n"] + "!"`)
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		for _, n := range []string{"a", "b"} {
			value, err := rule.Evaluate(Context{Vars: map[string]any{"n": n}})
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if value != n+"!" {
				t.Fatalf("expected %q, got %#v", n+"!", value)
			}
		}
	}
}

func TestEmptyExpressionRejected(t *testing.T) {
	for _, evaluator := range []Evaluator{NewExprEvaluator(), NewCELEvaluator()} {
		if _, err := evaluator.Evaluate(Context{}, ""); !errors.Is(err, ErrEmptyExpression) {
			t.Fatalf("expected ErrEmptyExpression, got %v", err)
		}
	}
}

type evaluatorFunc func(ctx Context, expr string) (any, error)

func (f evaluatorFunc) Evaluate(ctx Context, expr string) (any, error) {
	return f(ctx, expr)
}

func (f evaluatorFunc) Compile(expr string) (CompiledRule, error) {
	return nil, errors.New("not supported")
}

func withoutJS(names []string) []string {
	out := names[:0:0]
	for _, name := range names {
		if name != EngineJS {
			out = append(out, name)
		}
	}
	return out
}
