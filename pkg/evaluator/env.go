package evaluator

import "sort"

// Env is a scoped environment for variable bindings.
// It supports parent-chained lookup for lexical scoping. Closures hold a
// pointer to the Env they were created in, so a scope stays alive as long as
// any frame or closure references it.
type Env struct {
	bindings map[string]ZValue
	parent   *Env
}

// NewEnv creates a new environment with an optional parent scope.
func NewEnv(parent *Env) *Env {
	return &Env{
		bindings: make(map[string]ZValue),
		parent:   parent,
	}
}

// Child creates a new child scope whose parent is this environment.
func (e *Env) Child() *Env {
	return NewEnv(e)
}

// Parent returns the enclosing scope, or nil for a root scope.
func (e *Env) Parent() *Env {
	return e.parent
}

// Get looks up a variable by name, traversing parent scopes.
func (e *Env) Get(name string) (ZValue, bool) {
	for scope := e; scope != nil; scope = scope.parent {
		if val, ok := scope.bindings[name]; ok {
			return val, true
		}
	}
	return nil, false
}

// Define binds a variable in this scope, shadowing any binding of the same
// name in enclosing scopes.
func (e *Env) Define(name string, val ZValue) {
	e.bindings[name] = val
}

// Assign rebinds the nearest existing binding of name. It reports false when
// no scope in the chain defines name.
func (e *Env) Assign(name string, val ZValue) bool {
	for scope := e; scope != nil; scope = scope.parent {
		if _, ok := scope.bindings[name]; ok {
			scope.bindings[name] = val
			return true
		}
	}
	return false
}

// Names returns the names bound directly in this scope, sorted.
func (e *Env) Names() []string {
	names := make([]string, 0, len(e.bindings))
	for name := range e.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
