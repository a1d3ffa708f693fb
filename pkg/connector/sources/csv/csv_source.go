package csv

import (
	"context"
	stdcsv "encoding/csv"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	arrowcsv "github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tabconv/pkg/config"
	"github.com/ajitpratap0/tabconv/pkg/connector/core"
	"github.com/ajitpratap0/tabconv/pkg/errors"
	"github.com/ajitpratap0/tabconv/pkg/logger"
	"github.com/ajitpratap0/tabconv/pkg/schema"
)

// ctxCheckInterval is how many sampled rows pass between cancellation checks.
const ctxCheckInterval = 4096

// CSVSource decodes delimited text into record batches.
type CSVSource struct {
	header    bool
	comma     rune
	batchSize int
	mem       memory.Allocator
}

// NewCSVSource creates a CSV source from the run configuration
func NewCSVSource(cfg *config.Config) (core.Source, error) {
	batchSize := cfg.Input.BatchSize
	if batchSize <= 0 {
		batchSize = config.DefaultBatchSize
	}
	return &CSVSource{
		header:    cfg.CSV.HasHeader(),
		comma:     cfg.CSV.Comma(),
		batchSize: batchSize,
		mem:       memory.NewGoAllocator(),
	}, nil
}

// Name returns the input format name
func (s *CSVSource) Name() string {
	return "csv"
}

func (s *CSVSource) tokenizer(r io.Reader) *stdcsv.Reader {
	cr := stdcsv.NewReader(r)
	cr.Comma = s.comma
	cr.ReuseRecord = true
	return cr
}

// InferSchema samples up to maxRecords data rows and widens each column to
// the narrowest type that holds every sampled value.
func (s *CSVSource) InferSchema(ctx context.Context, r io.Reader, maxRecords *int) (*arrow.Schema, error) {
	log := logger.WithContext(ctx)
	src := &trackingReader{r: r}
	cr := s.tokenizer(src)

	var names []string
	row, err := cr.Read()
	switch {
	case err == io.EOF:
		log.Debug("empty csv input, inferred an empty schema")
		return arrow.NewSchema(nil, nil), nil
	case err != nil:
		return nil, s.inferError(src, err, 1)
	}

	width := len(row)
	pending := row
	if s.header {
		names = schema.UniqueNames(append([]string(nil), row...))
		pending = nil
	} else {
		names = schema.PositionalNames(width)
		pending = append([]string(nil), row...)
	}

	if maxRecords != nil && *maxRecords == 0 {
		return schema.Utf8Schema(names), nil
	}

	nodes := make([]*schema.Node, width)
	for i := range nodes {
		nodes[i] = schema.NewNode()
	}
	observe := func(values []string) {
		for i, v := range values {
			if isNull(v) {
				continue
			}
			nodes[i].ObserveText(v)
		}
	}

	sampled := 0
	if pending != nil {
		observe(pending)
		sampled++
	}

	for maxRecords == nil || sampled < *maxRecords {
		if sampled%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, s.inferError(src, err, sampled+1)
		}
		observe(row)
		sampled++
	}

	fields := make([]arrow.Field, width)
	for i, n := range nodes {
		fields[i] = arrow.Field{Name: names[i], Type: n.DataType(), Nullable: true}
	}
	log.Debug("sampled csv rows for inference", zap.Int("rows", sampled), zap.Int("columns", width))
	return arrow.NewSchema(fields, nil), nil
}

func (s *CSVSource) inferError(src *trackingReader, err error, row int) error {
	if src.err != nil && errors.Is(err, src.err) {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to read csv input")
	}
	e := errors.Wrap(err, errors.ErrorTypeSchemaInference, "failed to sample csv input").
		WithDetail("row", row)
	var pe *stdcsv.ParseError
	if errors.As(err, &pe) {
		e.WithDetail("line", pe.Line)
	}
	return e
}

// Open starts decoding r against sch in batches of the configured size.
func (s *CSVSource) Open(ctx context.Context, sch *arrow.Schema, r io.Reader) (stream core.BatchStream, err error) {
	src := &trackingReader{r: r}
	defer func() {
		if p := recover(); p != nil {
			err = errors.Newf(errors.ErrorTypeConfig, "schema cannot be read from csv: %v", p)
		}
	}()

	reader := arrowcsv.NewReader(src, sch,
		arrowcsv.WithHeader(s.header),
		arrowcsv.WithComma(s.comma),
		arrowcsv.WithChunk(s.batchSize),
		arrowcsv.WithAllocator(s.mem),
		arrowcsv.WithNullReader(false, arrowcsv.DefaultNullValues...),
	)

	logger.WithContext(ctx).Debug("opened csv stream",
		zap.Bool("header", s.header),
		zap.String("delimiter", string(s.comma)),
		zap.Int("batch_size", s.batchSize))

	return &batchStream{reader: reader, schema: sch, src: src, header: s.header}, nil
}

func isNull(v string) bool {
	for _, n := range arrowcsv.DefaultNullValues {
		if v == n {
			return true
		}
	}
	return false
}

// trackingReader remembers the first error returned by the wrapped reader,
// so that failures of the underlying stream can be told apart from parse
// errors raised by the tokenizer.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}
