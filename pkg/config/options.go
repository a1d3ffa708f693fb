package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Compression is the columnar codec requested for the output.
type Compression string

const (
	CompressionUncompressed Compression = "UNCOMPRESSED"
	CompressionSnappy       Compression = "SNAPPY"
	CompressionGzip         Compression = "GZIP"
	CompressionLZO          Compression = "LZO"
	CompressionBrotli       Compression = "BROTLI"
	CompressionLZ4          Compression = "LZ4"
	CompressionZstd         Compression = "ZSTD"
)

// Compressions lists the accepted compression names in help order.
var Compressions = []Compression{
	CompressionUncompressed, CompressionSnappy, CompressionGzip, CompressionLZO,
	CompressionBrotli, CompressionLZ4, CompressionZstd,
}

// Encoding is the column value encoding requested for the output.
type Encoding string

const (
	EncodingPlain                Encoding = "PLAIN"
	EncodingRLE                  Encoding = "RLE"
	EncodingBitPacked            Encoding = "BIT_PACKED"
	EncodingDeltaBinaryPacked    Encoding = "DELTA_BINARY_PACKED"
	EncodingDeltaLengthByteArray Encoding = "DELTA_LENGTH_BYTE_ARRAY"
	EncodingDeltaByteArray       Encoding = "DELTA_BYTE_ARRAY"
	EncodingRLEDictionary        Encoding = "RLE_DICTIONARY"
)

// Encodings lists the accepted encoding names in help order.
var Encodings = []Encoding{
	EncodingPlain, EncodingRLE, EncodingBitPacked, EncodingDeltaBinaryPacked,
	EncodingDeltaLengthByteArray, EncodingDeltaByteArray, EncodingRLEDictionary,
}

// Statistics is the granularity at which column statistics are written.
type Statistics string

const (
	StatisticsNone  Statistics = "None"
	StatisticsChunk Statistics = "Chunk"
	StatisticsPage  Statistics = "Page"
)

// StatisticsLevels lists the accepted statistics levels.
var StatisticsLevels = []Statistics{StatisticsNone, StatisticsChunk, StatisticsPage}

var (
	_ pflag.Value = (*Compression)(nil)
	_ pflag.Value = (*Encoding)(nil)
	_ pflag.Value = (*Statistics)(nil)
)

func lookup[T ~string](kind string, allowed []T, s string) (T, error) {
	for _, v := range allowed {
		if strings.EqualFold(string(v), s) {
			return v, nil
		}
	}
	names := make([]string, len(allowed))
	for i, v := range allowed {
		names[i] = string(v)
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q (possible values: %s)", kind, s, strings.Join(names, ", "))
}

// ParseCompression parses a compression name case-insensitively.
func ParseCompression(s string) (Compression, error) {
	return lookup("compression", Compressions, s)
}

// ParseEncoding parses an encoding name case-insensitively.
func ParseEncoding(s string) (Encoding, error) {
	return lookup("encoding", Encodings, s)
}

// ParseStatistics parses a statistics level case-insensitively.
func ParseStatistics(s string) (Statistics, error) {
	return lookup("statistics level", StatisticsLevels, s)
}

func (c Compression) String() string { return string(c) }
func (c *Compression) Type() string  { return "compression" }

// Set implements pflag.Value
func (c *Compression) Set(s string) error {
	v, err := ParseCompression(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// UnmarshalText lets YAML profiles use any letter case
func (c *Compression) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*c = ""
		return nil
	}
	return c.Set(string(b))
}

func (e Encoding) String() string { return string(e) }
func (e *Encoding) Type() string  { return "encoding" }

// Set implements pflag.Value
func (e *Encoding) Set(s string) error {
	v, err := ParseEncoding(s)
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// UnmarshalText lets YAML profiles use any letter case
func (e *Encoding) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*e = ""
		return nil
	}
	return e.Set(string(b))
}

func (s Statistics) String() string { return string(s) }
func (s *Statistics) Type() string  { return "statistics" }

// Set implements pflag.Value
func (s *Statistics) Set(v string) error {
	p, err := ParseStatistics(v)
	if err != nil {
		return err
	}
	*s = p
	return nil
}

// UnmarshalText lets YAML profiles use any letter case
func (s *Statistics) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*s = ""
		return nil
	}
	return s.Set(string(b))
}
