package templating

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/goliatone/go-templating/expression"
	"github.com/goliatone/go-templating/pkg/activity"
)

// errSuperseded marks a refresh whose result lost to a newer one.
var errSuperseded = errors.New("templating: refresh superseded")

// VariableState is a read only view of one variable owned by a Service.
type VariableState struct {
	Name      string
	Type      string
	Status    Status
	Selection Selection
	// Err is the load error of a disabled variable or the last refresh
	// failure.
	Err error
}

type entry struct {
	name     string
	def      Definition
	variable Variable
	status   Status
	err      error
	// resolved is set once a resolution attempt has settled.
	resolved bool
	token    uint64
}

// Service owns the variables of one dashboard session. It constructs them
// through a Registry, refreshes them in dependency order and projects them
// back to definitions on save.
//
// Every instance mutation happens under mu. Option resolution is the only
// call made without it, and its result is applied only when no newer refresh
// of the same variable started in the meantime.
type Service struct {
	registry  *Registry
	collab    Collaborators
	logger    hclog.Logger
	activity  *activity.Emitter
	dashboard string

	mu      sync.Mutex
	entries []*entry
	byName  map[string]*entry
	seq     uint64
}

// NewService returns a Service constructing variables through registry.
func NewService(registry *Registry, opts ...ServiceOption) *Service {
	cfg := serviceConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if registry == nil {
		registry = NewDefaultRegistry()
	}
	logger := cfg.logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if cfg.dashboard != "" {
		logger = logger.With("dashboard", cfg.dashboard)
	}
	engines := cfg.engines
	if engines == nil {
		engines = expression.NewEngines(expression.WithLogger(evaluationLogger(logger.Named("expression"))))
	}
	return &Service{
		registry: registry,
		collab: Collaborators{
			Datasources: cfg.datasources,
			Templates:   cfg.templates,
			Engines:     engines,
			Logger:      logger.Named("registry"),
		},
		logger:    logger,
		activity:  cfg.activity,
		dashboard: cfg.dashboard,
		byName:    map[string]*entry{},
	}
}

// Load replaces the session's variables with defs. A definition that cannot
// be constructed is disabled and kept verbatim for save; the others load
// normally. The returned error aggregates the per variable failures.
func (s *Service) Load(ctx context.Context, defs []Definition) error {
	var result *multierror.Error
	entries := make([]*entry, 0, len(defs))
	byName := make(map[string]*entry, len(defs))

	for i, def := range defs {
		def = def.Clone()
		name := strings.TrimSpace(def.Name())
		e := &entry{name: name, def: def, status: StatusPending}
		entries = append(entries, e)

		var err error
		switch {
		case name == "":
			err = fmt.Errorf("templating: variable at index %d has no name", i)
		case byName[name] != nil:
			err = fmt.Errorf("templating: duplicate variable %q", name)
		default:
			e.variable, err = s.registry.Construct(ctx, def, s.collab)
		}
		if err != nil {
			e.variable = nil
			e.status = StatusDisabled
			e.err = err
			result = multierror.Append(result, err)
			s.logger.Warn("variable disabled", "variable", name, "type", def.Type(), "error", err)
			continue
		}
		byName[name] = e
	}

	s.mu.Lock()
	s.entries = entries
	s.byName = byName
	s.mu.Unlock()

	s.logger.Debug("variables loaded", "count", len(entries), "disabled", len(result.WrappedErrors()))
	return result.ErrorOrNil()
}

// Init resolves every variable in dependency order. Variables carrying
// persisted options they are not meant to refresh keep them.
func (s *Service) Init(ctx context.Context) error {
	s.mu.Lock()
	graph := s.graphLocked()
	s.mu.Unlock()
	order, err := graph.Order()
	if err != nil {
		s.logger.Error("refresh aborted", "error", err)
		return err
	}

	pending := order[:0:0]
	s.mu.Lock()
	for _, name := range order {
		e := s.byName[name]
		persisted, ok := e.variable.(PersistedOptions)
		if !ok {
			pending = append(pending, name)
			continue
		}
		options, ok := persisted.PersistedOptions()
		if !ok {
			pending = append(pending, name)
			continue
		}
		e.variable.ApplyOptions(options)
		e.status = StatusReady
		e.resolved = true
		s.logger.Trace("reusing persisted options", "variable", name, "options", len(options))
	}
	s.mu.Unlock()

	return s.runChain(ctx, pending, graph)
}

// Refresh re-resolves names and everything depending on them, one variable
// at a time in dependency order.
func (s *Service) Refresh(ctx context.Context, names ...string) error {
	if err := s.checkNames(names...); err != nil {
		return err
	}
	return s.refresh(ctx, names, true)
}

// TimeRangeChanged refreshes the variables set to follow the time range and
// their dependents.
func (s *Service) TimeRangeChanged(ctx context.Context) error {
	s.mu.Lock()
	var roots []string
	for _, e := range s.entries {
		if e.variable == nil {
			continue
		}
		if policy, ok := e.variable.(RefreshPolicy); ok && policy.RefreshMode() == RefreshOnTimeRangeChange {
			roots = append(roots, e.name)
		}
	}
	s.mu.Unlock()
	if len(roots) == 0 {
		return nil
	}
	return s.refresh(ctx, roots, true)
}

// SetValue selects option on name and refreshes its dependents when the
// current value changed.
func (s *Service) SetValue(ctx context.Context, name string, option Option) error {
	changed, err := s.mutate(ctx, name, func(v Variable) error {
		return v.SetValue(option)
	})
	if err != nil || !changed {
		return err
	}
	return s.refresh(ctx, []string{name}, false)
}

// SetValueFromURL applies a URL value to name and refreshes its dependents
// when the current value changed.
func (s *Service) SetValueFromURL(ctx context.Context, name, raw string) error {
	changed, err := s.mutate(ctx, name, func(v Variable) error {
		v.SetValueFromURL(raw)
		return nil
	})
	if err != nil || !changed {
		return err
	}
	return s.refresh(ctx, []string{name}, false)
}

// UpdateDefinition rebuilds name from def and refreshes it and its
// dependents. Any refresh of the old instance still in flight is discarded.
func (s *Service) UpdateDefinition(ctx context.Context, name string, def Definition) error {
	def = def.Clone()
	if def == nil {
		def = Definition{}
	}
	if def.Name() == "" {
		def["name"] = name
	}
	if def.Name() != name {
		return fmt.Errorf("templating: definition for %q is named %q", name, def.Name())
	}
	if err := s.checkNames(name); err != nil {
		return err
	}

	v, err := s.registry.Construct(ctx, def, s.collab)
	if err != nil {
		return err
	}

	s.mu.Lock()
	e, ok := s.byName[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownVariable, name)
	}
	s.seq++
	e.token = s.seq
	e.def = def
	e.variable = v
	e.status = StatusPending
	e.err = nil
	e.resolved = false
	s.mu.Unlock()

	s.logger.Debug("variable definition updated", "variable", name, "type", v.Type())
	return s.refresh(ctx, []string{name}, true)
}

// Variables returns the state of every variable in dashboard order.
func (s *Service) Variables() []VariableState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]VariableState, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.state())
	}
	return out
}

// Variable returns the state of name.
func (s *Service) Variable(name string) (VariableState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.name == name {
			return e.state(), true
		}
	}
	return VariableState{}, false
}

// Status returns the refresh status of name.
func (s *Service) Status(name string) (Status, error) {
	state, ok := s.Variable(name)
	if !ok {
		return StatusDisabled, fmt.Errorf("%w: %q", ErrUnknownVariable, name)
	}
	return state.Status, nil
}

// Env snapshots the current selections of the enabled variables.
func (s *Service) Env() Env {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.envLocked()
}

// SaveModel projects every variable back to its definition in dashboard
// order. Disabled variables are returned as they were loaded.
func (s *Service) SaveModel(ctx context.Context) ([]Definition, error) {
	s.mu.Lock()
	out := make([]Definition, 0, len(s.entries))
	for _, e := range s.entries {
		if e.variable == nil {
			out = append(out, e.def.Clone())
			continue
		}
		def, err := e.variable.SaveModel()
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("templating: save %q: %w", e.name, err)
		}
		out = append(out, def)
	}
	s.mu.Unlock()

	s.emit(ctx, activity.BuildDashboardSavedEvent(activity.VariableEventInput{
		Dashboard: s.dashboard,
		Metadata:  map[string]any{"variables": len(out)},
	}))
	return out, nil
}

// refresh runs roots and their dependents, or only the dependents when
// includeRoots is false. A cycle aborts before anything resolves.
func (s *Service) refresh(ctx context.Context, roots []string, includeRoots bool) error {
	s.mu.Lock()
	graph := s.graphLocked()
	var (
		order []string
		err   error
	)
	if includeRoots {
		order, err = graph.Closure(roots...)
	} else {
		order, err = graph.Downstream(roots...)
	}
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("refresh aborted", "roots", roots, "error", err)
		return err
	}
	return s.runChain(ctx, order, graph)
}

// runChain refreshes order one variable at a time. A superseded refresh
// abandons everything below it; a failure stops the chain.
func (s *Service) runChain(ctx context.Context, order []string, graph *Graph) error {
	abandoned := map[string]bool{}
	for _, name := range order {
		if abandoned[name] {
			s.abandon(graph, name, abandoned)
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.refreshOne(ctx, name)
		if errors.Is(err, errSuperseded) {
			s.abandon(graph, name, abandoned)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) abandon(graph *Graph, name string, abandoned map[string]bool) {
	if graph == nil {
		return
	}
	for _, dependent := range graph.Dependents(name) {
		abandoned[dependent] = true
	}
}

// refreshOne resolves the options of name off the lock and applies them if
// the refresh is still the latest one for that variable.
func (s *Service) refreshOne(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.byName[name]
	if !ok || e.variable == nil {
		s.mu.Unlock()
		return nil
	}
	s.seq++
	token := s.seq
	e.token = token
	v := e.variable
	env := s.envLocked()
	s.mu.Unlock()

	s.logger.Trace("resolving options", "variable", name)
	options, resolveErr := v.ResolveOptions(ctx, env)

	s.mu.Lock()
	if s.byName[name] != e || e.token != token || e.variable != v {
		s.mu.Unlock()
		s.logger.Debug("discarding superseded refresh", "variable", name)
		return errSuperseded
	}
	if resolveErr != nil && ctx.Err() != nil {
		s.mu.Unlock()
		return ctx.Err()
	}

	input := activity.VariableEventInput{
		Dashboard:    s.dashboard,
		Variable:     name,
		VariableType: v.Type(),
	}
	before := v.Snapshot().Current

	var result error
	switch {
	case resolveErr == nil:
		v.ApplyOptions(options)
		e.status = StatusReady
		e.err = nil
		input.Options = len(options)
	case !e.resolved:
		v.Reset()
		e.status = StatusNoData
		e.err = resolveErr
		input.Err = resolveErr
	default:
		e.status = StatusStale
		e.err = resolveErr
		input.Err = resolveErr
		result = &RefreshError{Variable: name, Err: resolveErr}
	}
	e.resolved = true
	after := v.Snapshot().Current
	status := e.status
	s.mu.Unlock()

	switch status {
	case StatusReady:
		s.logger.Debug("options refreshed", "variable", name, "options", len(options))
		s.emit(ctx, activity.BuildVariableOptionsRefreshedEvent(input))
	case StatusNoData:
		s.logger.Warn("no data for variable", "variable", name, "error", resolveErr)
		s.emit(ctx, activity.BuildVariableRefreshFailedEvent(input))
	default:
		s.logger.Error("refresh failed, keeping previous options", "variable", name, "error", resolveErr)
		s.emit(ctx, activity.BuildVariableRefreshFailedEvent(input))
	}
	if before != after {
		s.emitValueChanged(ctx, v, before, after)
	}
	return result
}

// mutate applies fn to name under the lock and reports whether the current
// value changed.
func (s *Service) mutate(ctx context.Context, name string, fn func(Variable) error) (bool, error) {
	s.mu.Lock()
	e, ok := s.byName[name]
	if !ok || e.variable == nil {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %q", ErrUnknownVariable, name)
	}
	v := e.variable
	before := v.Snapshot().Current
	if err := fn(v); err != nil {
		s.mu.Unlock()
		return false, err
	}
	after := v.Snapshot().Current
	s.mu.Unlock()

	if before == after {
		return false, nil
	}
	s.logger.Debug("variable value changed", "variable", name, "value", after.Value)
	s.emitValueChanged(ctx, v, before, after)
	return true, nil
}

func (s *Service) checkNames(names ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		if e, ok := s.byName[name]; !ok || e.variable == nil {
			return fmt.Errorf("%w: %q", ErrUnknownVariable, name)
		}
	}
	return nil
}

func (s *Service) graphLocked() *Graph {
	return BuildGraph(s.enabledLocked())
}

func (s *Service) envLocked() Env {
	return NewEnv(s.enabledLocked()...)
}

func (s *Service) enabledLocked() []Variable {
	vars := make([]Variable, 0, len(s.entries))
	for _, e := range s.entries {
		if e.variable != nil {
			vars = append(vars, e.variable)
		}
	}
	return vars
}

func (s *Service) emitValueChanged(ctx context.Context, v Variable, before, after Current) {
	s.emit(ctx, activity.BuildVariableValueChangedEvent(activity.VariableEventInput{
		Dashboard:    s.dashboard,
		Variable:     v.Name(),
		VariableType: v.Type(),
		OldValue:     before.Value,
		NewValue:     after.Value,
	}))
}

func (s *Service) emit(ctx context.Context, event activity.Event) {
	if !s.activity.Enabled() {
		return
	}
	if err := s.activity.Emit(ctx, event); err != nil {
		s.logger.Warn("activity hook failed", "verb", event.Verb, "error", err)
	}
}

func (e *entry) state() VariableState {
	state := VariableState{
		Name:   e.name,
		Type:   e.def.Type(),
		Status: e.status,
		Err:    e.err,
	}
	if e.variable != nil {
		state.Type = e.variable.Type()
		state.Selection = e.variable.Snapshot()
	}
	return state
}
