package adapters

import (
	"strings"

	"github.com/smallbiznis/streamgate/internal/webhook/domain"
)

type Registry struct {
	factories map[string]domain.AdapterFactory
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	registry := &Registry{factories: map[string]domain.AdapterFactory{}}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		gateway := strings.ToLower(strings.TrimSpace(factory.Gateway()))
		if gateway == "" {
			continue
		}
		registry.factories[gateway] = factory
	}
	return registry
}

func (r *Registry) GatewayExists(gateway string) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[strings.ToLower(strings.TrimSpace(gateway))]
	return ok
}

func (r *Registry) NewAdapter(gateway string, cfg domain.AdapterConfig) (domain.Adapter, error) {
	if r == nil {
		return nil, domain.ErrUnknownGateway
	}
	factory, ok := r.factories[strings.ToLower(strings.TrimSpace(gateway))]
	if !ok {
		return nil, domain.ErrUnknownGateway
	}
	return factory.NewAdapter(cfg)
}
