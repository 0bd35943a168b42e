// Package expression evaluates option expressions for expression-driven
// template variables. Three engines are available: expr-lang (the default),
// cel-go, and goja when built with the js_eval tag. Engines is the dispatcher
// the templating service holds; it routes by engine name, logs every
// evaluation and wraps failures in *EvaluationError.
package expression

import (
	"sync"
	"time"
)

// Engine names understood by Engines.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// Context carries the inputs bound while evaluating an expression. Vars holds
// the current values of the sibling variables, keyed by variable name.
type Context struct {
	Variable string
	Vars     map[string]any
	Args     map[string]any
	Now      *time.Time
}

func (ctx Context) withDefaults() Context {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Vars == nil {
		ctx.Vars = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	return ctx
}

func (ctx Context) timestamp() time.Time {
	return *ctx.withDefaults().Now
}

func (ctx Context) label() string {
	if ctx.Variable != "" {
		return ctx.Variable
	}
	return "unknown"
}

// Evaluator executes expressions against a Context.
type Evaluator interface {
	Evaluate(ctx Context, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx Context) (any, error)
}

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MemoryCache is an unbounded ProgramCache safe for concurrent use.
type MemoryCache struct {
	mu       sync.RWMutex
	programs map[string]any
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{programs: map[string]any{}}
}

// Get implements ProgramCache.
func (c *MemoryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.programs[key]
	return value, ok
}

// Set implements ProgramCache.
func (c *MemoryCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.programs == nil {
		c.programs = map[string]any{}
	}
	c.programs[key] = value
}

// Len reports the number of cached programs.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

// prefixedCache namespaces a shared cache per engine so programs compiled by
// one engine are never handed to another.
type prefixedCache struct {
	prefix string
	cache  ProgramCache
}

func withPrefix(prefix string, cache ProgramCache) ProgramCache {
	if cache == nil {
		return nil
	}
	return prefixedCache{prefix: prefix + ":", cache: cache}
}

func (c prefixedCache) Get(key string) (any, bool) {
	return c.cache.Get(c.prefix + key)
}

func (c prefixedCache) Set(key string, value any) {
	c.cache.Set(c.prefix+key, value)
}
