// Package sources provides factory functions for all input format adapters
package sources

import (
	"github.com/ajitpratap0/tabconv/pkg/config"
	"github.com/ajitpratap0/tabconv/pkg/connector/core"

	// Import all input adapters to trigger init() registration
	"github.com/ajitpratap0/tabconv/pkg/connector/sources/csv"
	"github.com/ajitpratap0/tabconv/pkg/connector/sources/json"
)

// NewCSVSource creates a CSV input adapter
func NewCSVSource(cfg *config.Config) (core.Source, error) {
	return csv.NewCSVSource(cfg)
}

// NewJSONSource creates a line-delimited JSON input adapter
func NewJSONSource(cfg *config.Config) (core.Source, error) {
	return json.NewJSONSource(cfg)
}
