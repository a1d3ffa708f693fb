package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tabconv/pkg/config"
	"github.com/ajitpratap0/tabconv/pkg/connector/core"
	"github.com/ajitpratap0/tabconv/pkg/errors"
	"github.com/ajitpratap0/tabconv/pkg/logger"
)

// Registry manages format adapter registration and instantiation
type Registry struct {
	sources      map[string]SourceFactory
	destinations map[string]DestinationFactory
	mu           sync.RWMutex
}

// SourceFactory builds an input adapter from the run configuration.
type SourceFactory func(cfg *config.Config) (core.Source, error)

// DestinationFactory builds an output adapter from the run configuration.
// Option validation that does not depend on the schema happens here.
type DestinationFactory func(cfg *config.Config) (core.Destination, error)

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new registry
func NewRegistry() *Registry {
	return &Registry{
		sources:      make(map[string]SourceFactory),
		destinations: make(map[string]DestinationFactory),
	}
}

// RegisterSource registers an input adapter factory
func (r *Registry) RegisterSource(name string, factory SourceFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "source format %s already registered", name)
	}

	r.sources[name] = factory
	logger.Debug("source format registered", zap.String("name", name))
	return nil
}

// RegisterDestination registers an output adapter factory
func (r *Registry) RegisterDestination(name string, factory DestinationFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.destinations[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "destination format %s already registered", name)
	}

	r.destinations[name] = factory
	logger.Debug("destination format registered", zap.String("name", name))
	return nil
}

// CreateSource creates an input adapter
func (r *Registry) CreateSource(name string, cfg *config.Config) (core.Source, error) {
	r.mu.RLock()
	factory, exists := r.sources[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "source format %s not found", name)
	}

	source, err := factory(cfg)
	if err != nil {
		return nil, errors.WrapUntyped(err, errors.ErrorTypeConfig, "failed to create source "+name)
	}
	return source, nil
}

// CreateDestination creates an output adapter
func (r *Registry) CreateDestination(name string, cfg *config.Config) (core.Destination, error) {
	r.mu.RLock()
	factory, exists := r.destinations[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "destination format %s not found", name)
	}

	destination, err := factory(cfg)
	if err != nil {
		return nil, errors.WrapUntyped(err, errors.ErrorTypeConfig, "failed to create destination "+name)
	}
	return destination, nil
}

// ListSources returns the registered input formats in sorted order
func (r *Registry) ListSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]string, 0, len(r.sources))
	for name := range r.sources {
		sources = append(sources, name)
	}
	sort.Strings(sources)
	return sources
}

// ListDestinations returns the registered output formats in sorted order
func (r *Registry) ListDestinations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	destinations := make([]string, 0, len(r.destinations))
	for name := range r.destinations {
		destinations = append(destinations, name)
	}
	sort.Strings(destinations)
	return destinations
}

// HasSource checks if an input format is registered
func (r *Registry) HasSource(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.sources[name]
	return exists
}

// HasDestination checks if an output format is registered
func (r *Registry) HasDestination(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.destinations[name]
	return exists
}

// Global registry functions

// RegisterSource registers an input adapter in the global registry
func RegisterSource(name string, factory SourceFactory) error {
	return globalRegistry.RegisterSource(name, factory)
}

// RegisterDestination registers an output adapter in the global registry
func RegisterDestination(name string, factory DestinationFactory) error {
	return globalRegistry.RegisterDestination(name, factory)
}

// CreateSource creates an input adapter from the global registry
func CreateSource(name string, cfg *config.Config) (core.Source, error) {
	return globalRegistry.CreateSource(name, cfg)
}

// CreateDestination creates an output adapter from the global registry
func CreateDestination(name string, cfg *config.Config) (core.Destination, error) {
	return globalRegistry.CreateDestination(name, cfg)
}

// ListSources returns registered input formats from the global registry
func ListSources() []string {
	return globalRegistry.ListSources()
}

// ListDestinations returns registered output formats from the global registry
func ListDestinations() []string {
	return globalRegistry.ListDestinations()
}

// HasSource reports whether an input format is registered globally
func HasSource(name string) bool {
	return globalRegistry.HasSource(name)
}

// HasDestination reports whether an output format is registered globally
func HasDestination(name string) bool {
	return globalRegistry.HasDestination(name)
}

// ConnectorInfo describes a format adapter for the list command
type ConnectorInfo struct {
	Name         string             `json:"name"`
	Type         core.ConnectorType `json:"type"`
	Description  string             `json:"description"`
	Extensions   []string           `json:"extensions"`
	Capabilities []string           `json:"capabilities"`
}

// ConnectorCatalog manages adapter metadata
type ConnectorCatalog struct {
	connectors map[string]*ConnectorInfo
	mu         sync.RWMutex
}

// NewConnectorCatalog creates a new catalog
func NewConnectorCatalog() *ConnectorCatalog {
	return &ConnectorCatalog{
		connectors: make(map[string]*ConnectorInfo),
	}
}

func catalogKey(t core.ConnectorType, name string) string {
	return string(t) + "/" + name
}

// Register adds an adapter to the catalog
func (c *ConnectorCatalog) Register(info *ConnectorInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := catalogKey(info.Type, info.Name)
	if _, exists := c.connectors[key]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "%s %s already in catalog", info.Type, info.Name)
	}

	c.connectors[key] = info
	return nil
}

// Get retrieves adapter information
func (c *ConnectorCatalog) Get(t core.ConnectorType, name string) (*ConnectorInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, exists := c.connectors[catalogKey(t, name)]
	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "%s %s not found in catalog", t, name)
	}
	return info, nil
}

// List returns all catalog entries, sources first, then by name
func (c *ConnectorCatalog) List() []*ConnectorInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]*ConnectorInfo, 0, len(c.connectors))
	for _, info := range c.connectors {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Type != infos[j].Type {
			return infos[i].Type == core.ConnectorTypeSource
		}
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// Global catalog instance
var globalCatalog = NewConnectorCatalog()

// RegisterConnectorInfo registers adapter information in the global catalog
func RegisterConnectorInfo(info *ConnectorInfo) error {
	return globalCatalog.Register(info)
}

// GetConnectorInfo retrieves adapter information from the global catalog
func GetConnectorInfo(t core.ConnectorType, name string) (*ConnectorInfo, error) {
	return globalCatalog.Get(t, name)
}

// ListConnectorInfo lists all adapters in the global catalog
func ListConnectorInfo() []*ConnectorInfo {
	return globalCatalog.List()
}
