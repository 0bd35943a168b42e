package expression

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/cel-go/common/types/ref"
)

// Option configures Engines.
type Option func(*enginesConfig)

type enginesConfig struct {
	cache      ProgramCache
	functions  *FunctionRegistry
	logger     Logger
	fallback   string
	evaluators map[string]Evaluator
}

// WithProgramCache shares cache between the built-in engines. Keys are
// namespaced per engine.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *enginesConfig) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry exposes registry to the built-in engines.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *enginesConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithLogger records every evaluation through logger.
func WithLogger(logger Logger) Option {
	return func(cfg *enginesConfig) {
		cfg.logger = logger
	}
}

// WithDefaultEngine selects the engine used when a variable names none.
func WithDefaultEngine(name string) Option {
	return func(cfg *enginesConfig) {
		cfg.fallback = strings.ToLower(strings.TrimSpace(name))
	}
}

// WithEvaluator registers (or replaces) the evaluator used for name.
func WithEvaluator(name string, evaluator Evaluator) Option {
	return func(cfg *enginesConfig) {
		if evaluator == nil {
			return
		}
		if cfg.evaluators == nil {
			cfg.evaluators = map[string]Evaluator{}
		}
		cfg.evaluators[strings.ToLower(strings.TrimSpace(name))] = evaluator
	}
}

// Engines routes evaluations to named evaluators.
type Engines struct {
	evaluators map[string]Evaluator
	fallback   string
	logger     Logger
}

// NewEngines builds the expr and cel engines, plus js when compiled with the
// js_eval tag, then applies any evaluators registered through options.
func NewEngines(opts ...Option) *Engines {
	cfg := enginesConfig{fallback: EngineExpr}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	functions := cfg.functions
	if functions == nil {
		functions = DefaultFunctions()
	}

	evaluators := map[string]Evaluator{
		EngineExpr: NewExprEvaluator(
			ExprWithProgramCache(withPrefix(EngineExpr, cfg.cache)),
			ExprWithFunctionRegistry(functions),
		),
		EngineCEL: NewCELEvaluator(
			CELWithProgramCache(withPrefix(EngineCEL, cfg.cache)),
			CELWithFunctionRegistry(functions),
		),
	}
	if jsAvailable() {
		evaluators[EngineJS] = NewJSEvaluator(
			JSWithProgramCache(withPrefix(EngineJS, cfg.cache)),
			JSWithFunctionRegistry(functions),
		)
	}
	for name, evaluator := range cfg.evaluators {
		evaluators[name] = evaluator
	}

	logger := cfg.logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engines{
		evaluators: evaluators,
		fallback:   cfg.fallback,
		logger:     logger,
	}
}

// Names returns the available engine names sorted alphabetically.
func (e *Engines) Names() []string {
	names := make([]string, 0, len(e.evaluators))
	for name := range e.evaluators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evaluate runs expr on the named engine. An empty name selects the default
// engine.
func (e *Engines) Evaluate(engine, expr string, ctx Context) (any, error) {
	name := strings.ToLower(strings.TrimSpace(engine))
	if name == "" {
		name = e.fallback
	}
	evaluator, ok := e.evaluators[name]
	if !ok {
		if name == EngineJS {
			return nil, fmt.Errorf("%w: %s requires the js_eval build tag", ErrEngineUnavailable, name)
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
	}

	start := time.Now()
	value, err := evaluator.Evaluate(ctx, expr)
	err = wrapEvaluationError(name, expr, ctx.label(), err)
	e.logger.LogEvaluation(LogEvent{
		Engine:   name,
		Expr:     expr,
		Variable: ctx.label(),
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// ToStrings flattens an evaluation result into option values. Lists become
// one value per element, scalars a single value and nil no values.
func ToStrings(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, scalarString(item))
		}
		return out, nil
	case []ref.Val:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, scalarString(item.Value()))
		}
		return out, nil
	case bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return []string{scalarString(v)}, nil
	default:
		return nil, fmt.Errorf("expression: cannot use %T as option values", value)
	}
}

func scalarString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case ref.Val:
		return scalarString(v.Value())
	default:
		return fmt.Sprint(v)
	}
}
