package arrow

import (
	"github.com/ajitpratap0/tabconv/pkg/connector/core"
	"github.com/ajitpratap0/tabconv/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterDestination("arrow", NewArrowDestination)

	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:         "arrow",
		Type:         core.ConnectorTypeDestination,
		Description:  "Apache Arrow IPC files",
		Extensions:   []string{".arrow", ".feather"},
		Capabilities: []string{"compression"},
	})
}
