package validation

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// Rule is a named CEL predicate over the decoded JSON document bound to `content`
type Rule struct {
	Name       string
	Expression string
	Message    string
}

// Violation reports the first rule a document failed
type Violation struct {
	Rule    string
	Message string
	Cause   error
}

func (v *Violation) Error() string {
	if v.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", v.Rule, v.Message, v.Cause)
	}
	return fmt.Sprintf("%s: %s", v.Rule, v.Message)
}

func (v *Violation) Unwrap() error { return v.Cause }

// Evaluator compiles rules once and evaluates them against documents
type Evaluator struct {
	env   *cel.Env
	cache map[string]cel.Program
	mu    sync.RWMutex
}

// NewEvaluator creates a new rule evaluator with a program cache
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("content", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	return &Evaluator{
		env:   env,
		cache: make(map[string]cel.Program),
	}, nil
}

// Check evaluates rules in order and returns a *Violation for the first failure
func (e *Evaluator) Check(rules []Rule, content map[string]interface{}) error {
	for _, rule := range rules {
		ok, err := e.evaluate(rule.Expression, content)
		if err != nil {
			return &Violation{Rule: rule.Name, Message: rule.Message, Cause: err}
		}
		if !ok {
			return &Violation{Rule: rule.Name, Message: rule.Message}
		}
	}
	return nil
}

func (e *Evaluator) evaluate(expr string, content map[string]interface{}) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"content": content,
	})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return boolean, got %T", out.Value())
	}

	return result, nil
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, exists := e.cache[expr]
	e.mu.RUnlock()
	if exists {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()

	return prg, nil
}

// CacheSize returns the number of cached programs
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
