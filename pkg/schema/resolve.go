package schema

import (
	"context"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tabconv/pkg/errors"
	"github.com/ajitpratap0/tabconv/pkg/logger"
)

// Options controls how the schema of a run is obtained.
type Options struct {
	// SchemaFile, when set, is used verbatim and no input is sampled.
	SchemaFile string
	// MaxReadRecords caps the records sampled for inference. Nil samples the
	// whole input; zero yields all-Utf8 columns.
	MaxReadRecords *int
}

// Inferrer derives a schema by sampling an input stream.
type Inferrer interface {
	InferSchema(ctx context.Context, r io.Reader, maxRecords *int) (*arrow.Schema, error)
}

// Opener returns a fresh reader positioned at the start of the input.
type Opener func() (io.ReadCloser, error)

// Resolve returns the schema for a run. A schema file takes precedence over
// inference; otherwise a dedicated pass over the input is opened and handed
// to inf. The inference pass is closed before Resolve returns.
func Resolve(ctx context.Context, opts Options, inf Inferrer, open Opener) (*arrow.Schema, error) {
	log := logger.WithContext(ctx)

	if opts.SchemaFile != "" {
		s, err := ReadFile(opts.SchemaFile)
		if err != nil {
			return nil, err
		}
		log.Debug("loaded schema from file",
			zap.String("path", opts.SchemaFile),
			zap.Int("fields", s.NumFields()))
		return s, nil
	}

	if opts.MaxReadRecords != nil && *opts.MaxReadRecords < 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "max-read-records must not be negative, got %d", *opts.MaxReadRecords)
	}

	rc, err := open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	s, err := inf.InferSchema(ctx, rc, opts.MaxReadRecords)
	if err != nil {
		return nil, errors.WrapUntyped(err, errors.ErrorTypeSchemaInference, "schema inference failed")
	}

	fields := []zap.Field{zap.Int("fields", s.NumFields())}
	if opts.MaxReadRecords != nil {
		fields = append(fields, zap.Int("max_read_records", *opts.MaxReadRecords))
	}
	log.Debug("inferred schema", fields...)
	return s, nil
}
