package json

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tabconv/pkg/config"
	"github.com/ajitpratap0/tabconv/pkg/connector/core"
	"github.com/ajitpratap0/tabconv/pkg/errors"
	"github.com/ajitpratap0/tabconv/pkg/logger"
	"github.com/ajitpratap0/tabconv/pkg/schema"
)

// readBufferSize is the line reader buffer. Longer lines are still read.
const readBufferSize = 64 * 1024

// JSONSource reads line-delimited JSON objects (NDJSON).
type JSONSource struct {
	batchSize int
	mem       memory.Allocator
}

// NewJSONSource creates a JSON source from the run configuration
func NewJSONSource(cfg *config.Config) (core.Source, error) {
	batchSize := cfg.Input.BatchSize
	if batchSize <= 0 {
		batchSize = config.DefaultBatchSize
	}
	return &JSONSource{
		batchSize: batchSize,
		mem:       memory.NewGoAllocator(),
	}, nil
}

// Name returns the input format name
func (s *JSONSource) Name() string {
	return "json"
}

// lineReader yields the non-blank lines of an NDJSON stream with their
// 1-based line numbers.
type lineReader struct {
	r    *bufio.Reader
	line int
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, readBufferSize)}
}

func (l *lineReader) next() ([]byte, error) {
	for {
		b, err := l.r.ReadBytes('\n')
		if len(b) == 0 && err != nil {
			return nil, err
		}
		l.line++
		if trimmed := bytes.TrimSpace(b); len(trimmed) > 0 {
			return trimmed, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func decodeError(err error, line int, msg string) *errors.Error {
	return errors.Wrap(err, errors.ErrorTypeDecode, msg).WithDetail("line", line)
}

// InferSchema unions the keys of up to maxRecords objects in first-seen
// order. Nested objects become structs and arrays become lists.
func (s *JSONSource) InferSchema(ctx context.Context, r io.Reader, maxRecords *int) (*arrow.Schema, error) {
	lines := newLineReader(r)
	root := schema.NewNode()
	root.EnsureStruct()

	sampled := 0
	for maxRecords == nil || sampled < *maxRecords {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, err := lines.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to read json input")
		}
		if err := observeObject(root, line); err != nil {
			return nil, decodeError(err, lines.line, "malformed json record")
		}
		sampled++
	}

	if maxRecords != nil && *maxRecords == 0 {
		return s.namesFromFirstRecord(lines)
	}

	logger.WithContext(ctx).Debug("sampled json records for inference",
		zap.Int("records", sampled),
		zap.Int("columns", len(root.Names())))
	return root.Schema(), nil
}

// namesFromFirstRecord builds an all-Utf8 schema from the keys of the first
// record, which is what a zero sample cap produces.
func (s *JSONSource) namesFromFirstRecord(lines *lineReader) (*arrow.Schema, error) {
	line, err := lines.next()
	if err == io.EOF {
		return arrow.NewSchema(nil, nil), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to read json input")
	}
	first := schema.NewNode()
	first.EnsureStruct()
	if err := observeObject(first, line); err != nil {
		return nil, decodeError(err, lines.line, "malformed json record")
	}
	return schema.Utf8Schema(first.Names()), nil
}

func observeObject(root *schema.Node, line []byte) error {
	dec := gojson.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(gojson.Delim); !ok || d != '{' {
		return errors.New(errors.ErrorTypeDecode, "record is not a json object")
	}
	return observeMembers(root, dec)
}

// observeMembers walks the members of an object whose '{' was consumed.
func observeMembers(n *schema.Node, dec *gojson.Decoder) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errors.New(errors.ErrorTypeDecode, "object key is not a string")
		}
		if err := observeValue(n.Field(key), dec); err != nil {
			return err
		}
	}
	_, err := dec.Token() // '}'
	return err
}

func observeValue(n *schema.Node, dec *gojson.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch v := tok.(type) {
	case gojson.Delim:
		switch v {
		case '{':
			n.EnsureStruct()
			return observeMembers(n, dec)
		case '[':
			elem := n.Elem()
			for dec.More() {
				if err := observeValue(elem, dec); err != nil {
					return err
				}
			}
			_, err := dec.Token() // ']'
			return err
		}
		return errors.Newf(errors.ErrorTypeDecode, "unexpected delimiter %q", v)
	case nil:
	case bool:
		n.Observe(schema.KindBoolean)
	case gojson.Number:
		if isInteger(v) {
			n.Observe(schema.KindInt64)
		} else {
			n.Observe(schema.KindFloat64)
		}
	case string:
		n.Observe(schema.KindUtf8)
	}
	return nil
}

// isInteger reports whether n is an integer literal that fits in int64.
// Larger integers are inferred as float64.
func isInteger(n gojson.Number) bool {
	if bytes.ContainsAny([]byte(n), ".eE") {
		return false
	}
	_, err := strconv.ParseInt(string(n), 10, 64)
	return err == nil
}

// Open starts decoding r against sch.
func (s *JSONSource) Open(ctx context.Context, sch *arrow.Schema, r io.Reader) (core.BatchStream, error) {
	logger.WithContext(ctx).Debug("opened json stream", zap.Int("batch_size", s.batchSize))
	return newBatchStream(sch, newLineReader(r), s.mem, s.batchSize), nil
}
