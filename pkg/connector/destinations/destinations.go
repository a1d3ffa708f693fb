// Package destinations provides factory functions for all output format adapters
package destinations

import (
	"github.com/ajitpratap0/tabconv/pkg/config"
	"github.com/ajitpratap0/tabconv/pkg/connector/core"

	// Import all output adapters to trigger init() registration
	"github.com/ajitpratap0/tabconv/pkg/connector/destinations/arrow"
	"github.com/ajitpratap0/tabconv/pkg/connector/destinations/parquet"
)

// NewParquetDestination creates a Parquet file output adapter
func NewParquetDestination(cfg *config.Config) (core.Destination, error) {
	return parquet.NewParquetDestination(cfg)
}

// NewArrowDestination creates an Arrow IPC file output adapter
func NewArrowDestination(cfg *config.Config) (core.Destination, error) {
	return arrow.NewArrowDestination(cfg)
}
