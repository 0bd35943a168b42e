package expression

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyExpression is returned when an expression is blank.
	ErrEmptyExpression = errors.New("expression: expression must not be empty")
	// ErrUnknownEngine is returned when no evaluator is registered for a name.
	ErrUnknownEngine = errors.New("expression: unknown engine")
	// ErrEngineUnavailable is returned for engines compiled out of the binary.
	ErrEngineUnavailable = errors.New("expression: engine unavailable")
)

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine   string
	Expr     string
	Variable string
	Err      error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("expression: %s evaluator %s variable=%s: %v", e.Engine, describeExpression(e.Expr), e.Variable, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "expression:") {
		return err
	}
	return fmt.Errorf("expression: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, variable string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Variable == "" {
			evalErr.Variable = variable
		}
		return evalErr
	}

	return &EvaluationError{
		Engine:   engine,
		Expr:     expr,
		Variable: variable,
		Err:      err,
	}
}
