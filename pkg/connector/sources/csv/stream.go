package csv

import (
	stdcsv "encoding/csv"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowcsv "github.com/apache/arrow-go/v18/arrow/csv"

	"github.com/ajitpratap0/tabconv/pkg/errors"
)

// batchStream adapts an arrow/csv reader to core.BatchStream. Records are
// re-wrapped with the bound schema because the reader renames fields after
// the header row.
type batchStream struct {
	reader *arrowcsv.Reader
	schema *arrow.Schema
	src    *trackingReader
	header bool

	cur  arrow.Record
	err  error
	done bool
	rows int64
}

func (s *batchStream) Next() bool {
	if s.cur != nil {
		s.cur.Release()
		s.cur = nil
	}
	if s.done {
		return false
	}
	if !s.advance() {
		s.done = true
		return false
	}
	return true
}

func (s *batchStream) advance() (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			s.err = errors.Newf(errors.ErrorTypeSchemaMismatch,
				"csv row width does not match the %d-column schema", s.schema.NumFields()).
				WithDetail("row", s.firstRow()).
				WithDetail("panic", fmt.Sprint(p))
			ok = false
		}
	}()

	if !s.reader.Next() {
		s.err = s.mapError(s.reader.Err())
		return false
	}
	// a conversion failure still yields a record; it must not be written
	if err := s.reader.Err(); err != nil {
		s.err = s.mapError(err)
		return false
	}

	rec := s.reader.Record()
	s.cur = array.NewRecord(s.schema, rec.Columns(), rec.NumRows())
	s.rows += rec.NumRows()
	return true
}

// firstRow is the 1-based data row number of the batch being decoded.
func (s *batchStream) firstRow() int64 {
	return s.rows + 1
}

func (s *batchStream) mapError(err error) error {
	if err == nil {
		return nil
	}
	// an empty input cannot provide a header row; that is zero rows, not a failure
	if s.header && s.rows == 0 && errors.Is(err, io.EOF) {
		return nil
	}
	if s.src.err != nil && errors.Is(err, s.src.err) {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to read csv input")
	}
	if errors.Is(err, arrowcsv.ErrMismatchFields) || errors.Is(err, stdcsv.ErrFieldCount) {
		e := errors.Wrap(err, errors.ErrorTypeSchemaMismatch,
			fmt.Sprintf("csv row width does not match the %d-column schema", s.schema.NumFields())).
			WithDetail("row", s.firstRow())
		var pe *stdcsv.ParseError
		if errors.As(err, &pe) {
			e.WithDetail("line", pe.Line)
		}
		return e
	}

	e := errors.Wrap(err, errors.ErrorTypeDecode, "failed to decode csv batch")
	var pe *stdcsv.ParseError
	if errors.As(err, &pe) {
		e.WithDetail("line", pe.Line).WithDetail("column", pe.Column)
	} else {
		e.WithDetail("rows_from", s.firstRow())
	}
	return e
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
	s.reader.Release()
}
