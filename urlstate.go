package templating

import (
	"context"
	"net/url"
	"strings"
)

// URLParamPrefix prefixes the variable name in URL query parameters.
const URLParamPrefix = "var-"

// URLParam returns the query parameter carrying name.
func URLParam(name string) string {
	return URLParamPrefix + name
}

// URLValues encodes the current value of every enabled variable, hidden ones
// included.
func (s *Service) URLValues() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := url.Values{}
	for _, e := range s.entries {
		if e.variable == nil {
			continue
		}
		values.Set(URLParam(e.name), e.variable.ValueForURL())
	}
	return values
}

// ApplyURL sets every variable that has a parameter in values, then refreshes
// the dependents of those that changed. Parameters naming unknown variables
// are ignored.
func (s *Service) ApplyURL(ctx context.Context, values url.Values) error {
	s.mu.Lock()
	type change struct{ name, raw string }
	var changes []change
	for _, e := range s.entries {
		if e.variable == nil {
			continue
		}
		raw, ok := values[URLParam(e.name)]
		if !ok || len(raw) == 0 {
			continue
		}
		changes = append(changes, change{name: e.name, raw: raw[0]})
	}
	s.mu.Unlock()

	var roots []string
	for _, c := range changes {
		changed, err := s.mutate(ctx, c.name, func(v Variable) error {
			v.SetValueFromURL(c.raw)
			return nil
		})
		if err != nil {
			return err
		}
		if changed {
			roots = append(roots, c.name)
		}
	}
	if len(roots) == 0 {
		return nil
	}
	s.logger.Debug("applied url state", "variables", strings.Join(roots, ","))
	return s.refresh(ctx, roots, false)
}
