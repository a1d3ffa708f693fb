package json

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/tabconv/pkg/errors"
)

// batchStream materializes up to batchSize lines per record. Each line is
// decoded with number literals preserved, coerced towards the column types
// and then handed to the column builders in schema order.
type batchStream struct {
	schema    *arrow.Schema
	lines     *lineReader
	builder   *array.RecordBuilder
	batchSize int

	cur  arrow.Record
	err  error
	done bool
}

func newBatchStream(sch *arrow.Schema, lines *lineReader, mem memory.Allocator, batchSize int) *batchStream {
	return &batchStream{
		schema:    sch,
		lines:     lines,
		builder:   array.NewRecordBuilder(mem, sch),
		batchSize: batchSize,
	}
}

func (s *batchStream) Next() bool {
	if s.cur != nil {
		s.cur.Release()
		s.cur = nil
	}
	if s.done {
		return false
	}

	n := 0
	for n < s.batchSize {
		line, err := s.lines.next()
		if err == io.EOF {
			s.done = true
			break
		}
		if err != nil {
			s.fail(errors.Wrap(err, errors.ErrorTypeIO, "failed to read json input"))
			return false
		}
		if err := s.appendLine(line); err != nil {
			s.fail(err)
			return false
		}
		n++
	}
	if n == 0 {
		return false
	}

	rec, err := s.newRecord()
	if err != nil {
		s.fail(err)
		return false
	}
	s.cur = rec
	return true
}

func (s *batchStream) fail(err error) {
	s.err = err
	s.done = true
}

func (s *batchStream) newRecord() (rec arrow.Record, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Newf(errors.ErrorTypeDecode, "records do not fill every column: %v", p).
				WithDetail("line", s.lines.line)
		}
	}()
	return s.builder.NewRecord(), nil
}

func (s *batchStream) appendLine(line []byte) error {
	dec := gojson.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return decodeError(err, s.lines.line, "malformed json record")
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return errors.New(errors.ErrorTypeDecode, "record is not a json object").
			WithDetail("line", s.lines.line)
	}

	row := make([]interface{}, s.schema.NumFields())
	for i, f := range s.schema.Fields() {
		val, err := coerce(obj[f.Name], f.Type)
		if err != nil {
			return decodeError(err, s.lines.line, "invalid value").WithDetail("column", f.Name)
		}
		if val == nil && !f.Nullable {
			return errors.Newf(errors.ErrorTypeDecode, "column %q is not nullable", f.Name).
				WithDetail("line", s.lines.line)
		}
		row[i] = val
	}

	encoded, err := gojson.Marshal(row)
	if err != nil {
		return decodeError(err, s.lines.line, "failed to re-encode json record")
	}

	rowDec := gojson.NewDecoder(bytes.NewReader(encoded))
	rowDec.UseNumber()
	if _, err := rowDec.Token(); err != nil { // '['
		return decodeError(err, s.lines.line, "failed to re-read json record")
	}
	for i, f := range s.schema.Fields() {
		if err := s.builder.Field(i).UnmarshalOne(rowDec); err != nil {
			return decodeError(err, s.lines.line, "value does not match column type").
				WithDetail("column", f.Name).
				WithDetail("type", f.Type.String())
		}
	}
	return nil
}

// coerce adapts a decoded JSON value to what the builder for dt accepts.
// Non-string values bound to text columns are kept as their JSON text;
// fractional numbers bound to integer columns are rejected instead of being
// truncated.
func coerce(v interface{}, dt arrow.DataType) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch t := dt.(type) {
	case *arrow.StringType, *arrow.LargeStringType:
		if _, ok := v.(string); ok {
			return v, nil
		}
		text, err := gojson.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(text), nil
	case *arrow.Int8Type, *arrow.Int16Type, *arrow.Int32Type, *arrow.Int64Type,
		*arrow.Uint8Type, *arrow.Uint16Type, *arrow.Uint32Type, *arrow.Uint64Type:
		if n, ok := v.(gojson.Number); ok {
			if _, err := strconv.ParseInt(string(n), 10, 64); err != nil {
				if _, err := strconv.ParseUint(string(n), 10, 64); err != nil {
					return nil, fmt.Errorf("%s is not an integer", n)
				}
			}
		}
		return v, nil
	case *arrow.StructType:
		obj, ok := v.(map[string]interface{})
		if !ok {
			return v, nil
		}
		for _, f := range t.Fields() {
			child, present := obj[f.Name]
			if !present {
				continue
			}
			c, err := coerce(child, f.Type)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name, err)
			}
			obj[f.Name] = c
		}
		return obj, nil
	case arrow.ListLikeType:
		items, ok := v.([]interface{})
		if !ok {
			return v, nil
		}
		elem := t.Elem()
		for i, item := range items {
			c, err := coerce(item, elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = c
		}
		return items, nil
	}
	return v, nil
}

func (s *batchStream) Record() arrow.Record {
	return s.cur
}

func (s *batchStream) Err() error {
	return s.err
}

func (s *batchStream) Release() {
	if s.cur != nil {
		s.cur.Release()
		s.cur = nil
	}
	s.builder.Release()
}
