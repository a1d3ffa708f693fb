package json

import (
	"github.com/ajitpratap0/tabconv/pkg/connector/core"
	"github.com/ajitpratap0/tabconv/pkg/connector/registry"
)

func init() {
	// Register JSON source factory
	_ = registry.RegisterSource("json", NewJSONSource)

	// Register connector info
	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:        "json",
		Type:        core.ConnectorTypeSource,
		Description: "Line-delimited JSON objects, one record per line",
		Extensions:  []string{".json", ".ndjson", ".jsonl"},
		Capabilities: []string{
			"schema_inference",
			"nested_objects",
			"json_lines",
			"compressed_input",
		},
	})
}
