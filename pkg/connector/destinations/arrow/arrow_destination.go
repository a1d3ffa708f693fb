// Package arrow writes record batches to Arrow IPC files. Batches are
// passed through unchanged once their shape matches the bound schema.
package arrow

import (
	"context"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tabconv/pkg/config"
	"github.com/ajitpratap0/tabconv/pkg/connector/core"
	"github.com/ajitpratap0/tabconv/pkg/errors"
	"github.com/ajitpratap0/tabconv/pkg/logger"
)

// ArrowDestination holds the IPC options of a run.
type ArrowDestination struct {
	opts []ipc.Option
	mem  memory.Allocator
}

// NewArrowDestination validates the writer options. Only the buffer
// compression applies to IPC files; Parquet page and row group settings
// are rejected rather than silently ignored.
func NewArrowDestination(cfg *config.Config) (core.Destination, error) {
	w := cfg.Writer
	mem := memory.NewGoAllocator()
	opts := []ipc.Option{ipc.WithAllocator(mem)}

	switch w.Compression {
	case "", config.CompressionUncompressed:
	case config.CompressionLZ4:
		opts = append(opts, ipc.WithLZ4())
	case config.CompressionZstd:
		opts = append(opts, ipc.WithZstd())
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"compression %s is not supported for arrow output (use UNCOMPRESSED, LZ4 or ZSTD)", w.Compression).
			WithDetail("option", "compression")
	}

	if name := parquetOnlyOption(w); name != "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "%s only applies to parquet output", name).
			WithDetail("option", name)
	}

	return &ArrowDestination{opts: opts, mem: mem}, nil
}

// parquetOnlyOption returns the flag name of the first set option that the
// IPC writer has no equivalent for.
func parquetOnlyOption(w config.WriterConfig) string {
	switch {
	case w.Encoding != "":
		return "encoding"
	case w.DataPageSizeLimit != nil:
		return "data-pagesize-limit"
	case w.DictionaryPageSizeLimit != nil:
		return "dictionary-pagesize-limit"
	case w.WriteBatchSize != nil:
		return "write-batch-size"
	case w.MaxRowGroupSize != nil:
		return "max-row-group-size"
	case w.CreatedBy != nil:
		return "created-by"
	case w.Dictionary:
		return "dictionary"
	case w.Statistics != "":
		return "statistics"
	case w.MaxStatisticsSize != nil:
		return "max-statistics-size"
	}
	return ""
}

// Name returns the output format name
func (d *ArrowDestination) Name() string {
	return "arrow"
}

// Open starts an IPC file on w. The header is written with the first batch
// or on Close, whichever comes first.
func (d *ArrowDestination) Open(ctx context.Context, w io.Writer, schema *arrow.Schema) (core.Writer, error) {
	opts := append([]ipc.Option{ipc.WithSchema(schema)}, d.opts...)
	fw, err := ipc.NewFileWriter(w, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncode, "failed to start arrow file")
	}
	logger.WithContext(ctx).Debug("opened arrow writer", zap.Int("columns", schema.NumFields()))
	return &ipcWriter{fw: fw, schema: schema}, nil
}

type ipcWriter struct {
	fw     *ipc.FileWriter
	schema *arrow.Schema
	rows   int64
	closed bool
}

func (iw *ipcWriter) Write(rec arrow.Record) error {
	if err := core.CheckSchema(iw.schema, rec); err != nil {
		return err
	}
	if !rec.Schema().Equal(iw.schema) {
		rec = array.NewRecord(iw.schema, rec.Columns(), rec.NumRows())
		defer rec.Release()
	}
	if err := iw.fw.Write(rec); err != nil {
		return errors.Wrap(err, errors.ErrorTypeEncode, "failed to write batch").
			WithDetail("rows_written", iw.rows)
	}
	iw.rows += rec.NumRows()
	return nil
}

// Close writes the footer. Calling it more than once is a no-op.
func (iw *ipcWriter) Close() error {
	if iw.closed {
		return nil
	}
	iw.closed = true
	if err := iw.fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeEncode, "failed to finalize arrow file")
	}
	return nil
}

func (iw *ipcWriter) RowsWritten() int64 {
	return iw.rows
}
