package providers

import (
	"fmt"

	"github.com/tellowai/admin-api-sub001/pkg/config"
	"github.com/tellowai/admin-api-sub001/pkg/enums"
	pkgerrors "github.com/tellowai/admin-api-sub001/pkg/errors"
)

// Registry resolves adapters by provider name and resource kind, and routes
// each kind to its configured provider. Every adapter is bound to the model
// that serves its kind. It is built once and read-only afterwards.
type Registry struct {
	adapters map[bindingKey]Adapter
	routes   map[enums.ResourceKind]enums.ProviderName
}

type bindingKey struct {
	provider enums.ProviderName
	kind     enums.ResourceKind
}

// Binding attaches an adapter to the resource kind it serves.
type Binding struct {
	Kind    enums.ResourceKind
	Adapter Adapter
}

// NewRegistry validates that every route points at an adapter bound to the
// routed kind.
func NewRegistry(routes map[enums.ResourceKind]enums.ProviderName, bindings ...Binding) (*Registry, error) {
	r := &Registry{
		adapters: make(map[bindingKey]Adapter, len(bindings)),
		routes:   make(map[enums.ResourceKind]enums.ProviderName, len(routes)),
	}
	for _, b := range bindings {
		if b.Adapter == nil {
			continue
		}
		key := bindingKey{provider: b.Adapter.Name(), kind: b.Kind}
		if _, dup := r.adapters[key]; dup {
			return nil, fmt.Errorf("provider %q bound twice for resource kind %s", key.provider, key.kind)
		}
		r.adapters[key] = b.Adapter
	}
	for kind, name := range routes {
		if _, ok := r.adapters[bindingKey{provider: name, kind: kind}]; !ok {
			return nil, fmt.Errorf("resource kind %s routed to provider %q with no model configured for it", kind, name)
		}
		r.routes[kind] = name
	}
	return r, nil
}

// NewRegistryFromConfig builds one adapter per resource kind for every
// provider with credentials, then applies the per-kind routing table.
func NewRegistryFromConfig(cfg config.ProvidersConfig, opts ...Option) (*Registry, error) {
	var bindings []Binding
	if cfg.Fal.APIKey != "" {
		falOpts := append([]Option{WithBaseURL(cfg.Fal.BaseURL), WithDefaults(cfg.Fal.Defaults)}, opts...)
		for rawKind, model := range cfg.Fal.Models() {
			if model == "" {
				continue
			}
			kind, err := enums.ParseResourceKind(rawKind)
			if err != nil {
				return nil, err
			}
			fal, err := NewFalAdapter(cfg.Fal.APIKey, model, cfg.HTTPTimeout, falOpts...)
			if err != nil {
				return nil, fmt.Errorf("fal %s: %w", kind, err)
			}
			bindings = append(bindings, Binding{Kind: kind, Adapter: fal})
		}
	}
	if cfg.Replicate.APIToken != "" {
		replicateOpts := append([]Option{WithBaseURL(cfg.Replicate.BaseURL), WithDefaults(cfg.Replicate.Defaults)}, opts...)
		for rawKind, version := range cfg.Replicate.Versions() {
			if version == "" {
				continue
			}
			kind, err := enums.ParseResourceKind(rawKind)
			if err != nil {
				return nil, err
			}
			replicate, err := NewReplicateAdapter(cfg.Replicate.APIToken, version, cfg.HTTPTimeout, replicateOpts...)
			if err != nil {
				return nil, fmt.Errorf("replicate %s: %w", kind, err)
			}
			bindings = append(bindings, Binding{Kind: kind, Adapter: replicate})
		}
	}

	routes := map[enums.ResourceKind]enums.ProviderName{}
	for rawKind, rawProvider := range cfg.Routes() {
		if rawProvider == "" {
			continue
		}
		kind, err := enums.ParseResourceKind(rawKind)
		if err != nil {
			return nil, err
		}
		provider, err := enums.ParseProviderName(rawProvider)
		if err != nil {
			return nil, fmt.Errorf("route for %s: %w", kind, err)
		}
		routes[kind] = provider
	}
	return NewRegistry(routes, bindings...)
}

// ForKind returns the adapter routed for a resource kind.
func (r *Registry) ForKind(kind enums.ResourceKind) (Adapter, error) {
	if r == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "provider registry not configured")
	}
	name, ok := r.routes[kind]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("no provider configured for resource kind %q", kind))
	}
	return r.adapters[bindingKey{provider: name, kind: kind}], nil
}

// ByName returns the adapter recorded on an existing generation. The kind
// selects the model, so a generation keeps its provider after routes change.
func (r *Registry) ByName(name enums.ProviderName, kind enums.ResourceKind) (Adapter, error) {
	if r == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "provider registry not configured")
	}
	a, ok := r.adapters[bindingKey{provider: name, kind: kind}]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("provider %q not configured for resource kind %q", name, kind))
	}
	return a, nil
}
