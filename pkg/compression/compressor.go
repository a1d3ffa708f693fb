// Package compression provides transparent stream decompression for tabconv
// input files.
//
// # Overview
//
// Inputs may be stored compressed. The package maps a configured algorithm
// (or "auto", which inspects the file extension) to a streaming decoder:
//   - Gzip via klauspost/compress/gzip (multi-member streams supported)
//   - Zstd via klauspost/compress/zstd
//   - Snappy (framed) and S2 via klauspost/compress
//   - LZ4 (frame format) via pierrec/lz4
//
// # Basic Usage
//
//	rc, err := compression.Open("events.ndjson.zst", compression.Auto)
//	if err != nil {
//	    return err
//	}
//	defer rc.Close()
//
// Writers for the same algorithms are available through NewWriter, which is
// how compressed fixtures are produced.
package compression

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/tabconv/pkg/errors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// Auto selects the algorithm from the file extension
	Auto Algorithm = "auto"
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents framed snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
)

// bufferSize is the read buffer placed between the file and the decoder.
const bufferSize = 64 * 1024

var extensions = map[string]Algorithm{
	".gz":     Gzip,
	".gzip":   Gzip,
	".zst":    Zstd,
	".zstd":   Zstd,
	".lz4":    LZ4,
	".sz":     Snappy,
	".snappy": Snappy,
	".s2":     S2,
}

// ParseAlgorithm parses an algorithm name case-insensitively.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(s)); a {
	case Auto, None, Gzip, Snappy, LZ4, Zstd, S2:
		return a, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported input compression %q", s)
	}
}

// Detect returns the algorithm implied by the file extension of path, or
// None when the extension is not a known compression suffix.
func Detect(path string) Algorithm {
	if a, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return a
	}
	return None
}

// Resolve turns Auto into a concrete algorithm for path.
func Resolve(alg Algorithm, path string) Algorithm {
	if alg == Auto || alg == "" {
		return Detect(path)
	}
	return alg
}

// TrimExtension strips a known compression suffix from path, so that
// "rows.csv.gz" yields "rows.csv".
func TrimExtension(path string) string {
	ext := filepath.Ext(path)
	if _, ok := extensions[strings.ToLower(ext)]; ok {
		return strings.TrimSuffix(path, ext)
	}
	return path
}

// NewReader wraps r with a decoder for alg. Auto is treated as None because
// there is no file name to inspect.
func NewReader(r io.Reader, alg Algorithm) (io.ReadCloser, error) {
	switch alg {
	case None, Auto, "":
		return io.NopCloser(r), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to open gzip stream")
		}
		return zr, nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to open zstd stream")
		}
		return dec.IOReadCloser(), nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported input compression %q", alg)
	}
}

// NewWriter wraps w with an encoder for alg. Closing the returned writer
// flushes the encoder but does not close w.
func NewWriter(w io.Writer, alg Algorithm) (io.WriteCloser, error) {
	switch alg {
	case None, Auto, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create zstd writer")
		}
		return enc, nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case S2:
		return s2.NewWriter(w), nil
	case LZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported output compression %q", alg)
	}
}

// Open opens the file at path and returns a reader over its decompressed
// contents. Auto resolves the algorithm from the extension.
func Open(path string, alg Algorithm) (io.ReadCloser, error) {
	f, err := os.Open(path) //nolint:gosec // G304: input path is chosen by the user
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to open input file").
			WithDetail("path", path)
	}

	rc, err := NewReader(bufio.NewReaderSize(f, bufferSize), Resolve(alg, path))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileReader{ReadCloser: rc, file: f}, nil
}

type fileReader struct {
	io.ReadCloser
	file *os.File
}

func (r *fileReader) Close() error {
	err := r.ReadCloser.Close()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
