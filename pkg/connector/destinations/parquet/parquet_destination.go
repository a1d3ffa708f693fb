// Package parquet writes record batches to Apache Parquet files.
package parquet

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tabconv/pkg/config"
	"github.com/ajitpratap0/tabconv/pkg/connector/core"
	"github.com/ajitpratap0/tabconv/pkg/errors"
	"github.com/ajitpratap0/tabconv/pkg/logger"
)

var codecs = map[config.Compression]compress.Compression{
	config.CompressionUncompressed: compress.Codecs.Uncompressed,
	config.CompressionSnappy:       compress.Codecs.Snappy,
	config.CompressionGzip:         compress.Codecs.Gzip,
	config.CompressionLZO:          compress.Codecs.Lzo,
	config.CompressionBrotli:       compress.Codecs.Brotli,
	config.CompressionLZ4:          compress.Codecs.Lz4Raw,
	config.CompressionZstd:         compress.Codecs.Zstd,
}

var encodings = map[config.Encoding]parquet.Encoding{
	config.EncodingPlain:                parquet.Encodings.Plain,
	config.EncodingRLE:                  parquet.Encodings.RLE,
	config.EncodingBitPacked:            parquet.Encodings.BitPacked,
	config.EncodingDeltaBinaryPacked:    parquet.Encodings.DeltaBinaryPacked,
	config.EncodingDeltaLengthByteArray: parquet.Encodings.DeltaLengthByteArray,
	config.EncodingDeltaByteArray:       parquet.Encodings.DeltaByteArray,
}

// ParquetDestination holds the validated writer properties of a run.
type ParquetDestination struct {
	opts []parquet.WriterProperty
	mem  memory.Allocator
}

// NewParquetDestination validates the writer options and builds the
// property list. Unknown or unavailable codecs fail here.
func NewParquetDestination(cfg *config.Config) (core.Destination, error) {
	mem := memory.NewGoAllocator()
	opts, err := propertyOptions(cfg.Writer)
	if err != nil {
		return nil, err
	}
	opts = append(opts, parquet.WithAllocator(mem))
	return &ParquetDestination{opts: opts, mem: mem}, nil
}

// propertyOptions maps the writer configuration onto parquet writer
// properties in a single pass. Unset options keep the library defaults.
func propertyOptions(w config.WriterConfig) ([]parquet.WriterProperty, error) {
	opts := []parquet.WriterProperty{
		parquet.WithDictionaryDefault(w.Dictionary || w.Encoding == config.EncodingRLEDictionary),
	}

	if w.Compression != "" {
		codec, ok := codecs[w.Compression]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression %q", w.Compression)
		}
		if _, err := compress.GetCodec(codec); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig,
				fmt.Sprintf("compression %s is not available for parquet output", w.Compression))
		}
		opts = append(opts, parquet.WithCompression(codec))
	}

	if w.Encoding != "" && w.Encoding != config.EncodingRLEDictionary {
		enc, ok := encodings[w.Encoding]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported encoding %q", w.Encoding)
		}
		opts = append(opts, parquet.WithEncoding(enc))
	}

	if w.DataPageSizeLimit != nil {
		opts = append(opts, parquet.WithDataPageSize(int64(w.DataPageSizeLimit.Bytes())))
	}
	if w.DictionaryPageSizeLimit != nil {
		opts = append(opts, parquet.WithDictionaryPageSizeLimit(int64(w.DictionaryPageSizeLimit.Bytes())))
	}
	if w.WriteBatchSize != nil {
		opts = append(opts, parquet.WithBatchSize(*w.WriteBatchSize))
	}
	if w.MaxRowGroupSize != nil {
		opts = append(opts, parquet.WithMaxRowGroupLength(*w.MaxRowGroupSize))
	}
	if w.CreatedBy != nil {
		opts = append(opts, parquet.WithCreatedBy(*w.CreatedBy))
	}
	if w.MaxStatisticsSize != nil {
		opts = append(opts, parquet.WithMaxStatsSize(int64(w.MaxStatisticsSize.Bytes())))
	}

	switch w.Statistics {
	case "":
	case config.StatisticsNone:
		opts = append(opts, parquet.WithStats(false))
	case config.StatisticsChunk:
		opts = append(opts, parquet.WithStats(true))
	case config.StatisticsPage:
		opts = append(opts, parquet.WithStats(true), parquet.WithPageIndexEnabled(true))
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported statistics level %q", w.Statistics)
	}

	return opts, nil
}

// Name returns the output format name
func (d *ParquetDestination) Name() string {
	return "parquet"
}

func (d *ParquetDestination) newFileWriter(w io.Writer, schema *arrow.Schema) (fw *pqarrow.FileWriter, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%v", p)
		}
	}()
	props := parquet.NewWriterProperties(d.opts...)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(d.mem),
		pqarrow.WithStoreSchema(),
	)
	return pqarrow.NewFileWriter(schema, w, props, arrowProps)
}

// probe pushes an empty batch through a throwaway writer so that encoders
// are constructed for every column before the real output is touched.
func (d *ParquetDestination) probe(schema *arrow.Schema) (err error) {
	fw, err := d.newFileWriter(io.Discard, schema)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%v", p)
		}
	}()

	empty := array.NewRecordBuilder(d.mem, schema)
	defer empty.Release()
	rec := empty.NewRecord()
	defer rec.Release()

	if err := fw.WriteBuffered(rec); err != nil {
		return err
	}
	return fw.Close()
}

// Open checks that the configured encoding and codec can encode schema and
// starts a Parquet file on w.
func (d *ParquetDestination) Open(ctx context.Context, w io.Writer, schema *arrow.Schema) (core.Writer, error) {
	if err := d.probe(schema); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "writer options cannot encode this schema")
	}

	fw, err := d.newFileWriter(w, schema)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncode, "failed to start parquet file")
	}

	logger.WithContext(ctx).Debug("opened parquet writer", zap.Int("columns", schema.NumFields()))
	return &parquetWriter{fw: fw, schema: schema}, nil
}

type parquetWriter struct {
	fw     *pqarrow.FileWriter
	schema *arrow.Schema
	rows   int64
	closed bool
}

// Write appends rec to the current row group, starting a new one when the
// configured row group length is reached.
func (pw *parquetWriter) Write(rec arrow.Record) (err error) {
	if err := core.CheckSchema(pw.schema, rec); err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			err = errors.Newf(errors.ErrorTypeEncode, "parquet writer failed: %v", p)
		}
	}()
	// field metadata is compared strictly by the library writer
	if !rec.Schema().Equal(pw.schema) {
		rec = array.NewRecord(pw.schema, rec.Columns(), rec.NumRows())
		defer rec.Release()
	}
	if err := pw.fw.WriteBuffered(rec); err != nil {
		return errors.Wrap(err, errors.ErrorTypeEncode, "failed to write batch").
			WithDetail("rows_written", pw.rows)
	}
	pw.rows += rec.NumRows()
	return nil
}

// Close writes the footer. Calling it more than once is a no-op.
func (pw *parquetWriter) Close() error {
	if pw.closed {
		return nil
	}
	pw.closed = true
	if err := pw.fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeEncode, "failed to finalize parquet file")
	}
	return nil
}

func (pw *parquetWriter) RowsWritten() int64 {
	return pw.rows
}
