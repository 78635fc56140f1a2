package hostfuncs

import (
	"context"
	"fmt"
	"sort"
)

// Registry is an immutable collection of host functions.
// Once created via NewRegistry, functions cannot be added or removed, so
// one registry can be shared by every module instance.
type Registry struct {
	functions map[string]Function
	names     []string // sorted for consistent iteration
}

type registryBuilder struct {
	functions  map[string]Function
	middleware []Middleware
	errors     []error
}

// RegistryOption is a functional option for configuring a Registry.
type RegistryOption func(*registryBuilder)

// NewRegistry creates an immutable Registry with the given options.
// Returns an error if any function name is registered twice.
//
// Example usage:
//
//	registry, err := NewRegistry(
//	    WithMiddleware(LoggingMiddleware(logger)),
//	    WithBundle(CoreBundle()),
//	    WithFunction("eea_fn_custom", 2, customHandler),
//	)
func NewRegistry(opts ...RegistryOption) (*Registry, error) {
	b := &registryBuilder{
		functions: make(map[string]Function),
	}

	for _, opt := range opts {
		opt(b)
	}

	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	names := make([]string, 0, len(b.functions))
	for name := range b.functions {
		names = append(names, name)
	}
	sort.Strings(names)

	wrapped := make(map[string]Function, len(b.functions))
	for name, fn := range b.functions {
		h := fn.Handler
		// Apply middleware in reverse order so first middleware wraps outermost
		for i := len(b.middleware) - 1; i >= 0; i-- {
			h = b.middleware[i](h)
		}
		fn.Handler = h
		wrapped[name] = fn
	}

	return &Registry{
		functions: wrapped,
		names:     names,
	}, nil
}

// Invoke calls the named function with env and args.
func (r *Registry) Invoke(ctx context.Context, name string, env *Env, args []uint32) (int32, error) {
	fn, ok := r.functions[name]
	if !ok {
		return 0, fmt.Errorf("unknown host function %q", name)
	}
	if len(args) != fn.Params {
		return 0, &ArgCountError{Function: name, Want: fn.Params, Got: len(args)}
	}
	return fn.Handler(HostContextFrom(ctx, name), env, args)
}

// Lookup returns the named function.
func (r *Registry) Lookup(name string) (Function, bool) {
	fn, ok := r.functions[name]
	return fn, ok
}

// Has returns true if a function with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.functions[name]
	return ok
}

// Names returns a sorted list of all registered function names.
func (r *Registry) Names() []string {
	result := make([]string, len(r.names))
	copy(result, r.names)
	return result
}

func (b *registryBuilder) add(fn Function) error {
	if fn.Name == "" {
		return fmt.Errorf("function name cannot be empty")
	}
	if fn.Handler == nil {
		return fmt.Errorf("function %q has no handler", fn.Name)
	}
	if fn.Params < 0 {
		return fmt.Errorf("function %q has negative parameter count", fn.Name)
	}
	if _, exists := b.functions[fn.Name]; exists {
		return fmt.Errorf("duplicate function name: %q", fn.Name)
	}
	b.functions[fn.Name] = fn
	return nil
}

// WithFunction registers a single host function taking params i32 arguments.
func WithFunction(name string, params int, h Handler) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.add(Function{Name: name, Params: params, Handler: h}); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithMiddleware adds middleware to the registry.
// Middleware executes in FIFO order (first added wraps first).
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
