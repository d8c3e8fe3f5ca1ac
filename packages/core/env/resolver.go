package env

import (
	"os"
	"regexp"
	"sync"
)

var (
	variablePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	callPattern     = regexp.MustCompile(`\$\{\$(\w+\([^)]*\))\}`)
)

// FuncCaller evaluates ${$name(args)} expressions. The boolean is false for
// unknown functions.
type FuncCaller interface {
	Call(expr string) (string, bool, error)
}

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Resolver expands ${NAME} references. Explicit variables take precedence
// over the process environment. Unknown names are left untouched.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]string
	warnFunc  WarnFunc
	funcs     FuncCaller
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]string),
	}
}

// SetWarnFunc sets a function to be called for unresolved variables.
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

// SetFuncs enables ${$name(args)} calls.
func (r *Resolver) SetFuncs(f FuncCaller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs = f
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

func (r *Resolver) SetVariables(vars map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

func (r *Resolver) Lookup(name string) (string, bool) {
	r.mu.RLock()
	v, ok := r.variables[name]
	r.mu.RUnlock()
	if ok {
		return v, true
	}
	return os.LookupEnv(name)
}

// Resolve expands function calls and then variables. Anything that cannot be
// expanded is left in place and reported to the warn function.
func (r *Resolver) Resolve(input string) string {
	r.mu.RLock()
	funcs := r.funcs
	r.mu.RUnlock()

	if funcs != nil {
		input = callPattern.ReplaceAllStringFunc(input, func(match string) string {
			expr := match[3 : len(match)-1]
			v, ok, err := funcs.Call(expr)
			switch {
			case err != nil:
				r.warn("function ${$%s} failed: %v", expr, err)
				return match
			case !ok:
				r.warn("unknown function: ${$%s}", expr)
				return match
			}
			return v
		})
	}

	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := r.Lookup(name); ok {
			return val
		}
		r.warn("unresolved variable: ${%s}", name)
		return match
	})
}

func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

// ExpandEnv expands ${NAME} references against the process environment.
func ExpandEnv(input string) string {
	return NewResolver().Resolve(input)
}

// GetUnresolvedVariables lists, in order of appearance, the names that
// Resolve would leave untouched.
func (r *Resolver) GetUnresolvedVariables(input string) []string {
	var names []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		if _, ok := r.Lookup(m[1]); !ok {
			names = append(names, m[1])
		}
	}
	return names
}

func (r *Resolver) HasUnresolvedVariables(input string) bool {
	return len(r.GetUnresolvedVariables(input)) > 0
}
