package templating

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownVariableType = errors.New("templating: unknown variable type")
	ErrCyclicDependency    = errors.New("templating: cyclic dependency")
	ErrUnknownVariable     = errors.New("templating: unknown variable")
	ErrUnknownOption       = errors.New("templating: unknown option")
	ErrNoDatasource        = errors.New("templating: datasource not configured")
	ErrNoTemplateFetcher   = errors.New("templating: template fetcher not configured")
	ErrNoEngines           = errors.New("templating: expression engines not configured")
)

// UnknownVariableTypeError reports a definition whose type tag has no
// registered descriptor.
type UnknownVariableTypeError struct {
	Type string
	Name string
}

func (e *UnknownVariableTypeError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("templating: unknown variable type %q", e.Type)
	}
	return fmt.Sprintf("templating: unknown variable type %q for %q", e.Type, e.Name)
}

func (e *UnknownVariableTypeError) Is(target error) bool {
	return target == ErrUnknownVariableType
}

// CyclicDependencyError reports a dependency cycle. Path starts and ends with
// the same variable.
type CyclicDependencyError struct {
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("templating: cyclic dependency: %s", strings.Join(e.Path, " -> "))
}

func (e *CyclicDependencyError) Is(target error) bool {
	return target == ErrCyclicDependency
}

// RefreshError reports an option resolution failure for a variable that had
// resolved before. Its previous options are kept.
type RefreshError struct {
	Variable string
	Err      error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("templating: refresh %q: %v", e.Variable, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}
