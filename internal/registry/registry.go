package registry

import (
	"reflect"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"inferd/pkg/pluginapi"
)

// Loader produces a plugin for an identifier on a registry miss. Load runs
// with the registry lock held and must not call back into the registry.
type Loader interface {
	Load(name string) (pluginapi.Plugin, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(name string) (pluginapi.Plugin, error)

func (f LoaderFunc) Load(name string) (pluginapi.Plugin, error) { return f(name) }

// Registry maps plugin identifiers to validated plugins. It is created
// explicitly and shared by reference; there is no package-level instance.
type Registry struct {
	// mu is held across a load so concurrent resolvers of one name are
	// serialized: the first loads, the rest observe the cached entry.
	mu      sync.Mutex
	plugins map[string]pluginapi.Plugin
	loader  Loader
	log     zerolog.Logger
}

// New creates a registry. loader may be nil, in which case only explicitly
// registered plugins resolve.
func New(loader Loader, logger *zerolog.Logger) *Registry {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Registry{
		plugins: make(map[string]pluginapi.Plugin),
		loader:  loader,
		log:     l.With().Str("component", "registry").Logger(),
	}
}

// Resolve returns the plugin for name, loading it on first use.
func (r *Registry) Resolve(name string) (pluginapi.Plugin, error) {
	if name == "" {
		return nil, notFoundError{name: name}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.plugins[name]; ok {
		return p, nil
	}
	if r.loader == nil {
		return nil, notFoundError{name: name}
	}
	p, err := r.loader.Load(name)
	if err != nil {
		r.log.Error().Str("plugin", name).Err(err).Msg("plugin load failed")
		return nil, notFoundError{name: name, err: err}
	}
	if err := pluginapi.Validate(p); err != nil {
		r.log.Error().Str("plugin", name).Err(err).Msg("plugin rejected")
		return nil, invalidContractError{name: name, err: err}
	}
	r.plugins[name] = p
	r.log.Info().Str("plugin", name).Str("reported_name", p.Name()).Int("version", p.Version()).Msg("plugin loaded")
	return p, nil
}

// Register adds p under its own name. Registering the same plugin twice is
// a no-op; a different plugin under a taken name is rejected.
func (r *Registry) Register(p pluginapi.Plugin) error {
	if err := pluginapi.Validate(p); err != nil {
		name := ""
		if !pluginapi.IsNil(p) {
			name = p.Name()
		}
		return invalidContractError{name: name, err: err}
	}
	name := p.Name()
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.plugins[name]; ok {
		if sameHandle(cur, p) {
			return nil
		}
		return alreadyRegisteredError{name: name}
	}
	r.plugins[name] = p
	r.log.Debug().Str("plugin", name).Msg("plugin registered")
	return nil
}

// Unregister removes name. Unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[name]; !ok {
		return
	}
	delete(r.plugins, name)
	r.log.Debug().Str("plugin", name).Msg("plugin unregistered")
}

// Names lists registered plugin identifiers in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.plugins))
	for n := range r.plugins {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// sameHandle reports whether a and b are the same plugin value. Values of
// non-comparable dynamic types are never the same handle.
func sameHandle(a, b pluginapi.Plugin) (same bool) {
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	// A comparable struct can still hold a non-comparable value in an
	// interface field; == panics on it.
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
