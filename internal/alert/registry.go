package alert

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ChannelFactory creates a channel from its configuration
type ChannelFactory func(cfg ChannelConfig) (Channel, error)

// Registry maps channel types to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ChannelFactory
}

// NewRegistry creates an empty channel registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ChannelFactory)}
}

// RegisterFactory adds or replaces the factory for a channel type
func (r *Registry) RegisterFactory(channelType string, factory ChannelFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[channelType] = factory
}

// Build creates the channel described by cfg
func (r *Registry) Build(cfg ChannelConfig) (Channel, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown channel type %q (available: %s)", cfg.Type, strings.Join(r.Types(), ", "))
	}
	ch, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create channel %s: %w", cfg.Name, err)
	}
	return ch, nil
}

// Types lists the registered channel types
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
