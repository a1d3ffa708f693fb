package csv

import (
	"github.com/ajitpratap0/tabconv/pkg/connector/core"
	"github.com/ajitpratap0/tabconv/pkg/connector/registry"
)

func init() {
	// Register CSV source factory
	_ = registry.RegisterSource("csv", NewCSVSource)

	// Register connector info
	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:        "csv",
		Type:        core.ConnectorTypeSource,
		Description: "Delimited text with an optional header row",
		Extensions:  []string{".csv", ".tsv"},
		Capabilities: []string{
			"schema_inference",
			"header_detection",
			"custom_delimiter",
			"compressed_input",
		},
	})
}
