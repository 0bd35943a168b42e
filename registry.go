package templating

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/goliatone/go-templating/expression"
)

// maxDelegation bounds chains of Delegated constructions.
const maxDelegation = 4

// Collaborators are the external services a kind may use while constructing
// or resolving options.
type Collaborators struct {
	Datasources DatasourceProvider
	Templates   TemplateFetcher
	Engines     *expression.Engines
	Logger      hclog.Logger
}

// ConstructFunc builds a variable from a definition.
type ConstructFunc func(ctx context.Context, def Definition, collab Collaborators) (Construction, error)

// Construction is the outcome of a ConstructFunc: either a built variable or
// a delegation asking the registry to build the definition as another kind.
type Construction struct {
	variable Variable
	delegate string
	def      Definition
}

// Built returns a Construction holding v.
func Built(v Variable) Construction {
	return Construction{variable: v}
}

// Delegated returns a Construction asking the registry to construct def with
// the kind registered under tag. Kinds that only specialize another kind use
// it instead of constructing that kind themselves.
func Delegated(tag string, def Definition) Construction {
	return Construction{delegate: tag, def: def}
}

// Descriptor describes a variable kind.
type Descriptor struct {
	Type          string
	Name          string
	Description   string
	SupportsMulti bool
	Defaults      Definition
	Construct     ConstructFunc
}

// Registry maps type tags to descriptors. It is populated once and then only
// read.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: map[string]Descriptor{}}
}

// Register inserts or overwrites the descriptor for desc.Type. The last
// registration wins.
func (r *Registry) Register(desc Descriptor) {
	tag := strings.TrimSpace(desc.Type)
	if tag == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.descriptors == nil {
		r.descriptors = map[string]Descriptor{}
	}
	desc.Type = tag
	r.descriptors[tag] = desc
}

// Resolve returns the descriptor registered for tag.
func (r *Registry) Resolve(tag string) (Descriptor, error) {
	r.mu.RLock()
	desc, ok := r.descriptors[tag]
	r.mu.RUnlock()
	if !ok {
		return Descriptor{}, &UnknownVariableTypeError{Type: tag}
	}
	return desc, nil
}

// Types returns the registered tags sorted alphabetically.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.descriptors))
	for tag := range r.descriptors {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Descriptors returns every descriptor ordered by tag.
func (r *Registry) Descriptors() []Descriptor {
	tags := r.Types()
	out := make([]Descriptor, 0, len(tags))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tag := range tags {
		out = append(out, r.descriptors[tag])
	}
	return out
}

// Construct builds def with the descriptor registered for its type, following
// delegations.
func (r *Registry) Construct(ctx context.Context, def Definition, collab Collaborators) (Variable, error) {
	if collab.Logger == nil {
		collab.Logger = hclog.NewNullLogger()
	}
	tag := def.Type()
	current := def
	var origin *Descriptor
	for depth := 0; depth <= maxDelegation; depth++ {
		desc, err := r.Resolve(tag)
		if err != nil {
			return nil, &UnknownVariableTypeError{Type: tag, Name: def.Name()}
		}
		if desc.Construct == nil {
			return nil, fmt.Errorf("templating: kind %q has no constructor", tag)
		}
		if origin == nil {
			origin = &desc
		}
		construction, err := desc.Construct(ctx, current, collab)
		if err != nil {
			return nil, fmt.Errorf("templating: construct %q (%s): %w", def.Name(), tag, err)
		}
		if construction.variable != nil {
			if depth == 0 {
				return construction.variable, nil
			}
			return specialize(construction.variable, *origin, def), nil
		}
		if construction.delegate == "" {
			return nil, fmt.Errorf("templating: kind %q returned an empty construction", tag)
		}
		tag = construction.delegate
		if construction.def != nil {
			current = construction.def
		}
	}
	return nil, fmt.Errorf("templating: construct %q: delegation deeper than %d", def.Name(), maxDelegation)
}

// specialized wraps a variable built through delegation. Keys of the
// delegating kind's defaults that the target kind does not persist are kept
// from the original definition on save.
type specialized struct {
	Variable
	own Definition
}

func specialize(v Variable, origin Descriptor, def Definition) Variable {
	own := Definition{}
	for key, fallback := range origin.Defaults {
		if value, ok := def[key]; ok {
			own[key] = value
			continue
		}
		own[key] = fallback
	}
	return &specialized{Variable: v, own: own.Clone()}
}

func (s *specialized) SaveModel() (Definition, error) {
	out, err := s.Variable.SaveModel()
	if err != nil {
		return nil, err
	}
	for key, value := range s.own {
		if _, ok := out[key]; ok {
			continue
		}
		out[key] = value
	}
	return out, nil
}

func (s *specialized) RefreshMode() Refresh {
	if policy, ok := s.Variable.(RefreshPolicy); ok {
		return policy.RefreshMode()
	}
	return RefreshOnLoad
}

func (s *specialized) PersistedOptions() ([]Option, bool) {
	if persisted, ok := s.Variable.(PersistedOptions); ok {
		return persisted.PersistedOptions()
	}
	return nil, false
}
