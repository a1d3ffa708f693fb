package pipeline

import (
	"bufio"
	"io"
	"os"

	"github.com/ajitpratap0/tabconv/pkg/errors"
)

// outputBufferSize is the write buffer between the columnar writer and the
// output file.
const outputBufferSize = 256 * 1024

// sink is the output file of a run. Writes are buffered and counted; the
// count feeds the bytes-written metric.
type sink struct {
	path    string
	file    *os.File
	buf     *bufio.Writer
	written int64
	onWrite func(n int)
	closed  bool
}

func createSink(path string, onWrite func(n int)) (*sink, error) {
	f, err := os.Create(path) //nolint:gosec // G304: output path is chosen by the user
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to create output file").
			WithDetail("path", path)
	}
	return &sink{
		path:    path,
		file:    f,
		buf:     bufio.NewWriterSize(f, outputBufferSize),
		onWrite: onWrite,
	}, nil
}

var _ io.Writer = (*sink)(nil)

func (s *sink) Write(p []byte) (int, error) {
	n, err := s.buf.Write(p)
	s.written += int64(n)
	if s.onWrite != nil && n > 0 {
		s.onWrite(n)
	}
	if err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeIO, "failed to write output file").
			WithDetail("path", s.path)
	}
	return n, nil
}

// Close flushes buffered bytes and closes the file. Calling it more than
// once is a no-op.
func (s *sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.buf.Flush(); err != nil {
		_ = s.file.Close()
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to flush output file").
			WithDetail("path", s.path)
	}
	if err := s.file.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to close output file").
			WithDetail("path", s.path)
	}
	return nil
}

// Abort closes the file without flushing and, unless keep is set, removes
// it.
func (s *sink) Abort(keep bool) error {
	if !s.closed {
		s.closed = true
		if keep {
			_ = s.buf.Flush()
		}
		_ = s.file.Close()
	}
	if keep {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to remove partial output").
			WithDetail("path", s.path)
	}
	return nil
}
