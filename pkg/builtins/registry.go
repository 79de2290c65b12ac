// Package builtins provides the Zeal builtin function registry.
package builtins

import (
	"io"

	"github.com/thomasrohde/zeal/pkg/evaluator"
)

// Fn represents a builtin function.
type Fn struct {
	Name    string
	Execute func(out io.Writer, args []evaluator.ZValue) (evaluator.ZValue, error)
}

// Registry holds registered builtin functions.
type Registry struct {
	fns map[string]*Fn
}

// NewRegistry creates a new empty builtin registry.
func NewRegistry() *Registry {
	return &Registry{
		fns: make(map[string]*Fn),
	}
}

// Register adds a builtin function to the registry, replacing any function
// of the same name.
func (r *Registry) Register(fn Fn) {
	r.fns[fn.Name] = &fn
}

// EvaluatorMap converts the registry into the form evaluator.Options expects.
func (r *Registry) EvaluatorMap() map[string]*evaluator.BuiltinFn {
	out := make(map[string]*evaluator.BuiltinFn, len(r.fns))
	for name, fn := range r.fns {
		out[name] = &evaluator.BuiltinFn{
			Name:    fn.Name,
			Execute: fn.Execute,
		}
	}
	return out
}
