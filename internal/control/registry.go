package control

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
)

// Handler executes a method. The returned value is encoded as the result.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Method describes one control method.
type Method struct {
	Name    string
	Aliases []string
	Summary string

	// Params is a zero value of the params struct, used for the schema.
	Params any

	// Serial methods run one at a time per connection, in arrival order.
	Serial bool

	Handler Handler
}

// Registry is the method table shared by every transport.
type Registry struct {
	mu      sync.RWMutex
	methods map[string]*Method
	aliases map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		methods: make(map[string]*Method),
		aliases: make(map[string]string),
	}
}

// Register adds a method. Names and aliases share one namespace.
func (r *Registry) Register(m Method) error {
	if m.Name == "" || m.Handler == nil {
		return fmt.Errorf("%w: method needs a name and handler", ErrInvalidMethod)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	names := append([]string{m.Name}, m.Aliases...)
	for _, n := range names {
		if _, ok := r.methods[n]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateMethod, n)
		}
		if _, ok := r.aliases[n]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateMethod, n)
		}
	}

	method := m
	r.methods[m.Name] = &method
	for _, a := range m.Aliases {
		r.aliases[a] = m.Name
	}
	return nil
}

// MustRegister is Register that panics on error, for static tables.
func (r *Registry) MustRegister(m Method) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

// Lookup finds a method by name or alias.
func (r *Registry) Lookup(name string) (*Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	m, ok := r.methods[name]
	return m, ok
}

// Names returns the canonical method names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.methods))
	for n := range r.methods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of methods.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.methods)
}

// IsSerial reports whether a request must run in connection order. Unknown
// methods are not serial; they fail fast.
func (r *Registry) IsSerial(name string) bool {
	m, ok := r.Lookup(name)
	return ok && m.Serial
}

// Dispatch runs a decoded request and builds its response.
func (r *Registry) Dispatch(ctx context.Context, req *Request) (resp *Response) {
	id := responseID(req)
	m, ok := r.Lookup(req.Method)
	if !ok {
		return Failure(id, NewError(CodeMethodNotFound, "method not found: %s", req.Method))
	}

	defer func() {
		if p := recover(); p != nil {
			resp = Failure(id, NewError(CodeInternalError, "method %s panicked: %v", m.Name, p))
		}
	}()

	result, err := m.Handler(ctx, req.Params)
	if err != nil {
		return Failure(id, err)
	}
	return Success(id, result)
}

// Schema returns the JSON Schema of every method's params, keyed by name.
func (r *Registry) Schema() map[string]*jsonschema.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reflector := jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}
	out := make(map[string]*jsonschema.Schema, len(r.methods))
	for name, m := range r.methods {
		var sch *jsonschema.Schema
		if m.Params != nil && reflect.TypeOf(m.Params).Kind() == reflect.Struct {
			sch = reflector.Reflect(m.Params)
			sch.Version = ""
		} else {
			sch = &jsonschema.Schema{Type: "object"}
		}
		sch.Title = name
		sch.Description = m.Summary
		out[name] = sch
	}
	return out
}

// MethodInfo describes a method for introspection.
type MethodInfo struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
	Summary string   `json:"summary,omitempty"`
	Serial  bool     `json:"serial,omitempty"`
}

// Describe returns every method, sorted by name.
func (r *Registry) Describe() []MethodInfo {
	names := r.Names()
	out := make([]MethodInfo, 0, len(names))
	for _, n := range names {
		m, _ := r.Lookup(n)
		out = append(out, MethodInfo{Name: m.Name, Aliases: m.Aliases, Summary: m.Summary, Serial: m.Serial})
	}
	return out
}

type pingResult struct {
	Pong bool `json:"pong"`
}

type capabilitiesResult struct {
	Methods []string     `json:"methods"`
	Details []MethodInfo `json:"details"`
}

type schemaResult struct {
	Methods map[string]*jsonschema.Schema `json:"methods"`
}

// RegisterSystem adds system.ping, system.capabilities and system.schema.
func (r *Registry) RegisterSystem() {
	r.MustRegister(Method{
		Name:    "system.ping",
		Aliases: []string{"ping"},
		Summary: "Check that the session is alive.",
		Handler: func(context.Context, json.RawMessage) (any, error) {
			return pingResult{Pong: true}, nil
		},
	})
	r.MustRegister(Method{
		Name:    "system.capabilities",
		Aliases: []string{"capabilities"},
		Summary: "List supported methods.",
		Handler: func(context.Context, json.RawMessage) (any, error) {
			return capabilitiesResult{Methods: r.Names(), Details: r.Describe()}, nil
		},
	})
	r.MustRegister(Method{
		Name:    "system.schema",
		Summary: "JSON Schema of every method's params.",
		Handler: func(context.Context, json.RawMessage) (any, error) {
			return schemaResult{Methods: r.Schema()}, nil
		},
	})
}
