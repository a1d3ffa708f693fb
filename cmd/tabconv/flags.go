package main

import (
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/pflag"

	"github.com/ajitpratap0/tabconv/pkg/config"
)

// byteSize is a pflag.Value accepting plain byte counts or sizes with a
// unit such as 512KB or 1MB.
type byteSize struct {
	size datasize.ByteSize
}

var _ pflag.Value = (*byteSize)(nil)

func (b *byteSize) String() string {
	return b.size.String()
}

func (b *byteSize) Set(s string) error {
	return b.size.UnmarshalText([]byte(strings.TrimSpace(s)))
}

func (b *byteSize) Type() string {
	return "size"
}

func (b *byteSize) ptr() *datasize.ByteSize {
	v := b.size
	return &v
}

// boolValue is a boolean flag that requires its value, so both
// "--header false" and "--header=false" are accepted.
type boolValue struct {
	v bool
}

var _ pflag.Value = (*boolValue)(nil)

func (b *boolValue) String() string {
	return strconv.FormatBool(b.v)
}

func (b *boolValue) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	b.v = v
	return nil
}

func (b *boolValue) Type() string {
	return "bool"
}

// runFlags holds the command line options of a conversion. Only flags the
// user set are copied onto the configuration, so a YAML profile keeps its
// values for everything else.
type runFlags struct {
	configFile string
	saveConfig string
	from       string
	to         string

	schemaFile       string
	maxReadRecords   int
	batchSize        int
	inputCompression string

	printSchema bool
	dry         bool
	keepPartial bool

	logLevel    string
	logFormat   string
	metricsFile string
	trace       bool

	header    boolValue
	delimiter string

	compression     config.Compression
	encoding        config.Encoding
	dataPageSize    byteSize
	dictPageSize    byteSize
	writeBatchSize  int64
	maxRowGroupSize int64
	createdBy       string
	dictionary      bool
	statistics      config.Statistics
	maxStatsSize    byteSize
}

func (f *runFlags) registerCommon(fs *pflag.FlagSet) {
	defaults := config.NewConfig()

	fs.StringVar(&f.configFile, "config", "", "YAML profile with default options")
	fs.StringVar(&f.saveConfig, "save-config", "", "Write the effective options as a YAML profile to this file")
	fs.StringVarP(&f.schemaFile, "schema-file", "s", "", "Arrow JSON schema document; disables inference")
	fs.IntVar(&f.maxReadRecords, "max-read-records", 0, "Rows sampled for schema inference (0 infers nothing, all columns become text; default all rows)")
	fs.IntVar(&f.batchSize, "batch-size", defaults.Input.BatchSize, "Rows per record batch")
	fs.StringVar(&f.inputCompression, "input-compression", defaults.Input.Compression, "Input decompression: auto, none, gzip, zstd, lz4, snappy, s2")
	fs.BoolVarP(&f.printSchema, "print-schema", "p", false, "Print the resolved schema before converting")
	fs.BoolVarP(&f.dry, "dry", "n", false, "Print the resolved schema and exit without writing output")
	fs.BoolVar(&f.keepPartial, "keep-partial", false, "Keep the partial output file when a conversion fails")
	fs.StringVar(&f.logLevel, "log-level", defaults.Observability.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", defaults.Observability.LogFormat, "Log format (console, json)")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file")
	fs.BoolVar(&f.trace, "trace", false, "Print OpenTelemetry spans to stderr")
}

func (f *runFlags) registerCSV(fs *pflag.FlagSet) {
	f.header = boolValue{v: true}
	fs.Var(&f.header, "header", "Whether the first CSV row holds column names (true or false)")
	fs.StringVarP(&f.delimiter, "delimiter", "d", ",", `CSV field delimiter (a single character, or \t)`)
}

func (f *runFlags) registerWriter(fs *pflag.FlagSet) {
	fs.VarP(&f.compression, "compression", "c", "Compression codec: "+joinNames(config.Compressions))
	fs.VarP(&f.encoding, "encoding", "e", "Column encoding: "+joinNames(config.Encodings))
	fs.Var(&f.dataPageSize, "data-pagesize-limit", "Data page size limit, e.g. 1MB")
	fs.Var(&f.dictPageSize, "dictionary-pagesize-limit", "Dictionary page size limit, e.g. 1MB")
	fs.Int64Var(&f.writeBatchSize, "write-batch-size", 0, "Rows written to a column chunk at a time")
	fs.Int64Var(&f.maxRowGroupSize, "max-row-group-size", 0, "Maximum rows per row group")
	fs.StringVar(&f.createdBy, "created-by", "", "created_by string stored in the file footer")
	fs.BoolVar(&f.dictionary, "dictionary", false, "Enable dictionary encoding")
	fs.Var(&f.statistics, "statistics", "Statistics level: "+joinNames(config.StatisticsLevels))
	fs.Var(&f.maxStatsSize, "max-statistics-size", "Maximum size of min/max statistics values")
}

func joinNames[T ~string](values []T) string {
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}

// apply copies every flag the user set onto cfg.
func (f *runFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := fs.Changed

	if set("from") {
		cfg.Source = f.from
	}
	if set("to") {
		cfg.Destination = f.to
	}
	if set("schema-file") {
		cfg.Schema.File = f.schemaFile
	}
	if set("max-read-records") {
		n := f.maxReadRecords
		cfg.Schema.MaxReadRecords = &n
	}
	if set("batch-size") {
		cfg.Input.BatchSize = f.batchSize
	}
	if set("input-compression") {
		cfg.Input.Compression = strings.ToLower(f.inputCompression)
	}
	if set("print-schema") {
		cfg.Run.PrintSchema = f.printSchema
	}
	if set("dry") {
		cfg.Run.DryRun = f.dry
	}
	if set("keep-partial") {
		cfg.Run.KeepPartial = f.keepPartial
	}
	if set("log-level") {
		cfg.Observability.LogLevel = strings.ToLower(f.logLevel)
	}
	if set("log-format") {
		cfg.Observability.LogFormat = strings.ToLower(f.logFormat)
	}
	if set("metrics-file") {
		cfg.Observability.MetricsFile = f.metricsFile
	}
	if set("trace") {
		cfg.Observability.Trace = f.trace
	}

	if set("header") {
		h := f.header.v
		cfg.CSV.Header = &h
	}
	if set("delimiter") {
		cfg.CSV.Delimiter = f.delimiter
	}

	w := &cfg.Writer
	if set("compression") {
		w.Compression = f.compression
	}
	if set("encoding") {
		w.Encoding = f.encoding
	}
	if set("data-pagesize-limit") {
		w.DataPageSizeLimit = f.dataPageSize.ptr()
	}
	if set("dictionary-pagesize-limit") {
		w.DictionaryPageSizeLimit = f.dictPageSize.ptr()
	}
	if set("write-batch-size") {
		n := f.writeBatchSize
		w.WriteBatchSize = &n
	}
	if set("max-row-group-size") {
		n := f.maxRowGroupSize
		w.MaxRowGroupSize = &n
	}
	if set("created-by") {
		s := f.createdBy
		w.CreatedBy = &s
	}
	if set("dictionary") {
		w.Dictionary = f.dictionary
	}
	if set("statistics") {
		w.Statistics = f.statistics
	}
	if set("max-statistics-size") {
		w.MaxStatisticsSize = f.maxStatsSize.ptr()
	}
}
