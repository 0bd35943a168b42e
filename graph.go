package templating

// Graph holds the dependency edges between variables. An edge A -> B exists
// when B references A, so B must refresh after A.
type Graph struct {
	names      []string
	position   map[string]int
	dependents map[string][]string
}

// BuildGraph derives the dependency graph of vars. Dashboard order is kept as
// the tie breaker for the topological order.
func BuildGraph(vars []Variable) *Graph {
	g := &Graph{
		position:   make(map[string]int, len(vars)),
		dependents: make(map[string][]string, len(vars)),
	}
	for _, v := range vars {
		if _, exists := g.position[v.Name()]; exists {
			continue
		}
		g.position[v.Name()] = len(g.names)
		g.names = append(g.names, v.Name())
	}
	for _, upstream := range vars {
		for _, downstream := range vars {
			if downstream.DependsOn(upstream.Name()) {
				g.dependents[upstream.Name()] = append(g.dependents[upstream.Name()], downstream.Name())
			}
		}
	}
	return g
}

// Dependents returns the variables that reference name directly.
func (g *Graph) Dependents(name string) []string {
	return append([]string(nil), g.dependents[name]...)
}

// Order returns every variable in a dependency respecting order.
func (g *Graph) Order() ([]string, error) {
	return g.Closure(g.names...)
}

// Downstream returns the transitive dependents of roots in refresh order. The
// roots themselves are excluded unless one depends on another.
func (g *Graph) Downstream(roots ...string) ([]string, error) {
	order, err := g.Closure(roots...)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]bool, len(roots))
	for _, root := range roots {
		excluded[root] = true
	}
	for _, name := range order {
		for _, dependent := range g.dependents[name] {
			delete(excluded, dependent)
		}
	}
	out := order[:0:0]
	for _, name := range order {
		if excluded[name] {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

// Closure returns roots plus their transitive dependents in refresh order.
// Unknown roots are ignored. A cycle reachable from roots is reported as a
// *CyclicDependencyError before any order is produced.
func (g *Graph) Closure(roots ...string) ([]string, error) {
	reachable, err := g.reach(roots)
	if err != nil {
		return nil, err
	}

	indegree := make(map[string]int, len(reachable))
	for name := range reachable {
		for _, dependent := range g.dependents[name] {
			indegree[dependent]++
		}
	}

	order := make([]string, 0, len(reachable))
	done := make(map[string]bool, len(reachable))
	for len(order) < len(reachable) {
		next := ""
		for _, name := range g.names {
			if reachable[name] && !done[name] && indegree[name] == 0 {
				next = name
				break
			}
		}
		if next == "" {
			break
		}
		done[next] = true
		order = append(order, next)
		for _, dependent := range g.dependents[next] {
			indegree[dependent]--
		}
	}
	return order, nil
}

// reach walks dependents depth first from roots. Nodes on the current path are
// temporary; meeting one again closes a cycle.
func (g *Graph) reach(roots []string) (map[string]bool, error) {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		if permanent[name] {
			return nil
		}
		if temporary[name] {
			return &CyclicDependencyError{Path: cyclePath(stack, name)}
		}
		temporary[name] = true
		stack = append(stack, name)
		for _, dependent := range g.dependents[name] {
			if err := visit(dependent); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		delete(temporary, name)
		permanent[name] = true
		return nil
	}

	for _, root := range roots {
		if _, ok := g.position[root]; !ok {
			continue
		}
		if err := visit(root); err != nil {
			return nil, err
		}
	}
	return permanent, nil
}

func cyclePath(stack []string, name string) []string {
	start := 0
	for i, entry := range stack {
		if entry == name {
			start = i
			break
		}
	}
	path := append([]string(nil), stack[start:]...)
	return append(path, name)
}
