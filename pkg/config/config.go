// Package config provides the configuration model for tabconv.
//
// A single Config carries every option of a conversion run. Values are
// resolved in three layers, lowest precedence first:
//
//   - built-in defaults (NewConfig)
//   - an optional YAML profile (Load), with ${VAR} substitution
//   - flags explicitly set on the command line
//
// Optional writer settings are pointers: nil means "defer to the columnar
// library default", which keeps the property pass in the destinations a
// straight walk over the set fields.
//
// Example profile:
//
//	source: csv
//	destination: parquet
//	csv:
//	  header: true
//	  delimiter: ";"
//	writer:
//	  compression: zstd
//	  max_row_group_size: 65536
//	  data_pagesize_limit: 1MB
package config

import (
	"unicode/utf8"

	"github.com/c2h5oh/datasize"
	"github.com/go-playground/validator/v10"

	"github.com/ajitpratap0/tabconv/pkg/errors"
)

// DefaultBatchSize is the number of rows per record batch read from the input.
const DefaultBatchSize = 1024

// Config is the complete, immutable-after-parse option set of one run.
type Config struct {
	// Source names the input format ("csv" or "json")
	Source string `yaml:"source" json:"source" validate:"required,oneof=csv json"`
	// Destination names the output format ("parquet" or "arrow")
	Destination string `yaml:"destination" json:"destination" validate:"required,oneof=parquet arrow"`

	// InputPath and OutputPath come from positional arguments only
	InputPath  string `yaml:"-" json:"-" validate:"required"`
	OutputPath string `yaml:"-" json:"-" validate:"required"`

	Schema        SchemaConfig        `yaml:"schema" json:"schema"`
	Input         InputConfig         `yaml:"input" json:"input"`
	CSV           CSVConfig           `yaml:"csv" json:"csv"`
	Writer        WriterConfig        `yaml:"writer" json:"writer"`
	Run           RunConfig           `yaml:"run" json:"run"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// SchemaConfig selects between a schema override document and inference.
type SchemaConfig struct {
	// File is the path of an Arrow JSON schema document; inference is skipped when set
	File string `yaml:"file" json:"file"`
	// MaxReadRecords caps inference sampling: nil samples everything, 0 disables inference
	MaxReadRecords *int `yaml:"max_read_records" json:"max_read_records" validate:"omitempty,min=0"`
}

// InputConfig controls how the input stream is read.
type InputConfig struct {
	BatchSize   int    `yaml:"batch_size" json:"batch_size" validate:"min=1"`
	Compression string `yaml:"compression" json:"compression" validate:"oneof=auto none gzip zstd lz4 snappy s2"`
}

// CSVConfig holds CSV dialect options.
type CSVConfig struct {
	// Header is tri-state: nil means the input has a header row
	Header    *bool  `yaml:"header" json:"header"`
	Delimiter string `yaml:"delimiter" json:"delimiter" validate:"required,delimiter"`
}

// WriterConfig holds columnar writer properties.
type WriterConfig struct {
	Compression             Compression        `yaml:"compression" json:"compression" validate:"omitempty,oneof=UNCOMPRESSED SNAPPY GZIP LZO BROTLI LZ4 ZSTD"`
	Encoding                Encoding           `yaml:"encoding" json:"encoding" validate:"omitempty,oneof=PLAIN RLE BIT_PACKED DELTA_BINARY_PACKED DELTA_LENGTH_BYTE_ARRAY DELTA_BYTE_ARRAY RLE_DICTIONARY"`
	DataPageSizeLimit       *datasize.ByteSize `yaml:"data_pagesize_limit" json:"data_pagesize_limit"`
	DictionaryPageSizeLimit *datasize.ByteSize `yaml:"dictionary_pagesize_limit" json:"dictionary_pagesize_limit"`
	WriteBatchSize          *int64             `yaml:"write_batch_size" json:"write_batch_size" validate:"omitempty,min=1"`
	MaxRowGroupSize         *int64             `yaml:"max_row_group_size" json:"max_row_group_size" validate:"omitempty,min=1"`
	CreatedBy               *string            `yaml:"created_by" json:"created_by"`
	Dictionary              bool               `yaml:"dictionary" json:"dictionary"`
	Statistics              Statistics         `yaml:"statistics" json:"statistics" validate:"omitempty,oneof=None Chunk Page"`
	MaxStatisticsSize       *datasize.ByteSize `yaml:"max_statistics_size" json:"max_statistics_size"`
}

// RunConfig holds flow-control switches.
type RunConfig struct {
	PrintSchema bool `yaml:"print_schema" json:"print_schema"`
	DryRun      bool `yaml:"dry" json:"dry"`
	KeepPartial bool `yaml:"keep_partial" json:"keep_partial"`
}

// ObservabilityConfig holds logging, metrics and tracing switches.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`
	LogFormat   string `yaml:"log_format" json:"log_format" validate:"oneof=console json"`
	MetricsFile string `yaml:"metrics_file" json:"metrics_file"`
	Trace       bool   `yaml:"trace" json:"trace"`
}

// NewConfig returns a Config populated with built-in defaults.
func NewConfig() *Config {
	return &Config{
		Input: InputConfig{
			BatchSize:   DefaultBatchSize,
			Compression: "auto",
		},
		CSV: CSVConfig{
			Delimiter: ",",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "warn",
			LogFormat: "console",
		},
	}
}

// HasHeader reports whether the first CSV row names the columns.
func (c CSVConfig) HasHeader() bool {
	return c.Header == nil || *c.Header
}

// Comma returns the delimiter as a rune. The escapes `\t` and the word "tab"
// are accepted for a tab delimiter.
func (c CSVConfig) Comma() rune {
	switch c.Delimiter {
	case `\t`, "tab":
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("delimiter", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == `\t` || s == "tab" {
			return true
		}
		if utf8.RuneCountInString(s) != 1 {
			return false
		}
		r, _ := utf8.DecodeRuneInString(s)
		return r != '\n' && r != '\r' && r != '"' && r != utf8.RuneError
	})
	return v
}

// Validate checks the configuration and returns a config error naming the
// first offending field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.Newf(errors.ErrorTypeConfig, "invalid value %v for %s (%s)", fe.Value(), fe.Namespace(), fe.Tag()).
				WithDetail("field", fe.Namespace()).
				WithDetail("rule", fe.Tag())
		}
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid configuration")
	}
	return nil
}
