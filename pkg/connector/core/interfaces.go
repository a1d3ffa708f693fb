package core

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/tabconv/pkg/errors"
)

// ConnectorType represents the type of connector
type ConnectorType string

const (
	ConnectorTypeSource      ConnectorType = "source"
	ConnectorTypeDestination ConnectorType = "destination"
)

// Source is the interface that all input format adapters must implement.
type Source interface {
	// Name returns the input format name, e.g. "csv".
	Name() string

	// InferSchema samples up to maxRecords records from r and returns a
	// schema that can decode them. A nil cap samples the whole stream.
	InferSchema(ctx context.Context, r io.Reader, maxRecords *int) (*arrow.Schema, error)

	// Open starts decoding r against schema. Every batch produced carries
	// exactly that schema.
	Open(ctx context.Context, schema *arrow.Schema, r io.Reader) (BatchStream, error)
}

// BatchStream yields record batches in input order.
//
//	for stream.Next() {
//	    rec := stream.Record() // valid until the next call to Next
//	}
//	if err := stream.Err(); err != nil { ... }
type BatchStream interface {
	Next() bool
	Record() arrow.Record
	Err() error
	Release()
}

// Destination is the interface that all output format adapters must
// implement.
type Destination interface {
	// Name returns the output format name, e.g. "parquet".
	Name() string

	// Open validates the writer options against schema and starts a file on
	// w. Invalid option combinations fail here, before any row is read.
	Open(ctx context.Context, w io.Writer, schema *arrow.Schema) (Writer, error)
}

// Writer encodes batches into an open output file.
type Writer interface {
	// Write appends rec. Its schema must equal the schema given to Open.
	Write(rec arrow.Record) error
	// Close finalizes the footer. It must be called exactly once, also on
	// failure paths.
	Close() error
	RowsWritten() int64
}

// CheckSchema returns a schema_mismatch error when rec does not carry the
// expected field names and types.
func CheckSchema(expected *arrow.Schema, rec arrow.Record) error {
	got := rec.Schema()
	if got.NumFields() != expected.NumFields() {
		return errors.Newf(errors.ErrorTypeSchemaMismatch,
			"batch has %d columns, schema has %d", got.NumFields(), expected.NumFields())
	}
	for i := 0; i < expected.NumFields(); i++ {
		want, have := expected.Field(i), got.Field(i)
		if want.Name != have.Name || !arrow.TypeEqual(want.Type, have.Type) {
			return errors.New(errors.ErrorTypeSchemaMismatch, "batch schema differs from the output schema").
				WithDetail("column", i).
				WithDetail("expected", fmt.Sprintf("%s: %s", want.Name, want.Type)).
				WithDetail("actual", fmt.Sprintf("%s: %s", have.Name, have.Type))
		}
	}
	return nil
}
