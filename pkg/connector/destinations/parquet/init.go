package parquet

import (
	"github.com/ajitpratap0/tabconv/pkg/connector/core"
	"github.com/ajitpratap0/tabconv/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterDestination("parquet", NewParquetDestination)

	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:        "parquet",
		Type:        core.ConnectorTypeDestination,
		Description: "Apache Parquet columnar files",
		Extensions:  []string{".parquet"},
		Capabilities: []string{
			"compression",
			"encodings",
			"dictionary",
			"statistics",
			"row_groups",
		},
	})
}
