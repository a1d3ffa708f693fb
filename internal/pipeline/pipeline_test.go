package pipeline

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tabconv/pkg/compression"
	"github.com/ajitpratap0/tabconv/pkg/config"
	"github.com/ajitpratap0/tabconv/pkg/connector/core"
	"github.com/ajitpratap0/tabconv/pkg/errors"
)

const abCSV = "a,b\n1,2\n3,4\n"

type fixture struct {
	dir    string
	cfg    *config.Config
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newFixture(t *testing.T, source, destination, input string) *fixture {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "input")
	require.NoError(t, os.WriteFile(in, []byte(input), 0o600))

	cfg := config.NewConfig()
	cfg.Source = source
	cfg.Destination = destination
	cfg.InputPath = in
	cfg.OutputPath = filepath.Join(dir, "output")
	return &fixture{dir: dir, cfg: cfg}
}

func (f *fixture) run(t *testing.T, ctx context.Context) (*Pipeline, *Stats, error) {
	t.Helper()
	p, err := New(f.cfg, WithOutput(&f.stdout, &f.stderr))
	require.NoError(t, err)
	stats, err := p.Run(ctx)
	return p, stats, err
}

func (f *fixture) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func readParquet(t *testing.T, path string) arrow.Table {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	tbl, err := pqarrow.ReadTable(context.Background(), fh, nil, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	require.NoError(t, err)
	return tbl
}

func TestCSVToParquetInfersIntegers(t *testing.T) {
	f := newFixture(t, "csv", "parquet", abCSV)
	p, stats, err := f.run(t, context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, p.State())
	assert.Equal(t, []State{StateConfiguring, StateResolving, StateStreaming, StateClosing, StateDone}, p.Transitions())
	assert.Equal(t, int64(2), stats.RowsWritten)
	assert.Equal(t, int64(1), stats.Batches)
	assert.Equal(t, 2, stats.Columns)
	assert.Positive(t, stats.BytesWritten)

	info, err := os.Stat(f.cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, stats.BytesWritten, info.Size())

	tbl := readParquet(t, f.cfg.OutputPath)
	defer tbl.Release()
	require.Equal(t, int64(2), tbl.NumCols())
	for i, want := range [][]int64{{1, 3}, {2, 4}} {
		col := tbl.Column(i)
		assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, col.DataType()))
		assert.Equal(t, want, col.Data().Chunk(0).(*array.Int64).Int64Values())
	}
	assert.Empty(t, f.stdout.String(), "no schema printed unless asked")
}

func TestZeroInferenceCapYieldsText(t *testing.T) {
	f := newFixture(t, "csv", "parquet", abCSV)
	zero := 0
	f.cfg.Schema.MaxReadRecords = &zero
	_, _, err := f.run(t, context.Background())
	require.NoError(t, err)

	tbl := readParquet(t, f.cfg.OutputPath)
	defer tbl.Release()
	a := tbl.Column(0).Data().Chunk(0).(*array.String)
	b := tbl.Column(1).Data().Chunk(0).(*array.String)
	assert.Equal(t, []string{"1", "3"}, []string{a.Value(0), a.Value(1)})
	assert.Equal(t, []string{"2", "4"}, []string{b.Value(0), b.Value(1)})
}

func TestInferenceCapAtRowCountMatchesUnbounded(t *testing.T) {
	input := "x,y\n1,a\n2.5,b\n"
	unbounded := newFixture(t, "csv", "parquet", input)
	unbounded.cfg.Run.DryRun = true
	_, _, err := unbounded.run(t, context.Background())
	require.NoError(t, err)

	capped := newFixture(t, "csv", "parquet", input)
	capped.cfg.Run.DryRun = true
	two := 2
	capped.cfg.Schema.MaxReadRecords = &two
	_, _, err = capped.run(t, context.Background())
	require.NoError(t, err)

	assert.JSONEq(t, unbounded.stdout.String(), capped.stdout.String())
}

func TestDryRunLeavesOutputUntouched(t *testing.T) {
	f := newFixture(t, "csv", "parquet", abCSV)
	f.cfg.Run.DryRun = true
	f.cfg.Writer.Compression = config.CompressionZstd

	p, stats, err := f.run(t, context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDryExit, stats.State)
	assert.Equal(t, []State{StateConfiguring, StateResolving, StateReporting, StateDryExit}, p.Transitions())

	_, err = os.Stat(f.cfg.OutputPath)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, "Schema:\n", f.stderr.String())
	assert.Contains(t, f.stdout.String(), `"name": "a"`)
	assert.Contains(t, f.stdout.String(), `"bitWidth": 64`)
}

func TestPrintSchemaThenConvert(t *testing.T) {
	f := newFixture(t, "csv", "arrow", abCSV)
	f.cfg.Run.PrintSchema = true
	p, _, err := f.run(t, context.Background())
	require.NoError(t, err)
	assert.Contains(t, p.Transitions(), StateReporting)
	assert.Contains(t, f.stdout.String(), `"fields"`)
	_, err = os.Stat(f.cfg.OutputPath)
	assert.NoError(t, err)
}

func TestMalformedSchemaFileFailsBeforeReading(t *testing.T) {
	f := newFixture(t, "csv", "parquet", abCSV)
	f.cfg.Schema.File = f.writeFile(t, "schema.json", `{"fields": [{"name": "a"`)
	f.cfg.InputPath = filepath.Join(f.dir, "does-not-exist.csv")

	p, stats, err := f.run(t, context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaParse), err.Error())
	assert.Equal(t, StateFailed, p.State())
	assert.Equal(t, StateFailed, stats.State)

	_, err = os.Stat(f.cfg.OutputPath)
	assert.True(t, os.IsNotExist(err))
}

const threeColumns = `{"fields": [
  {"name": "a", "nullable": true, "type": {"name": "int", "bitWidth": 64, "isSigned": true}, "children": []},
  {"name": "b", "nullable": true, "type": {"name": "int", "bitWidth": 64, "isSigned": true}, "children": []},
  {"name": "c", "nullable": true, "type": {"name": "utf8"}, "children": []}
]}`

func TestOverrideWidthMismatchRemovesPartialOutput(t *testing.T) {
	f := newFixture(t, "csv", "parquet", abCSV)
	f.cfg.Schema.File = f.writeFile(t, "schema.json", threeColumns)

	_, _, err := f.run(t, context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaMismatch), err.Error())

	_, err = os.Stat(f.cfg.OutputPath)
	assert.True(t, os.IsNotExist(err), "partial output is removed")
}

func TestKeepPartialOutput(t *testing.T) {
	f := newFixture(t, "csv", "parquet", abCSV)
	f.cfg.Schema.File = f.writeFile(t, "schema.json", threeColumns)
	f.cfg.Run.KeepPartial = true

	_, _, err := f.run(t, context.Background())
	require.Error(t, err)
	_, err = os.Stat(f.cfg.OutputPath)
	assert.NoError(t, err)
}

func TestJSONToArrow(t *testing.T) {
	input := `{"id": 1, "name": "x", "tags": ["a"]}
{"id": 2, "name": null, "tags": []}
{"id": 3}
`
	f := newFixture(t, "json", "arrow", input)
	f.cfg.Input.BatchSize = 2
	f.cfg.Writer.Compression = config.CompressionLZ4

	_, stats, err := f.run(t, context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.RowsWritten)
	assert.Equal(t, int64(2), stats.Batches)

	fh, err := os.Open(f.cfg.OutputPath)
	require.NoError(t, err)
	defer fh.Close()
	r, err := ipc.NewFileReader(fh)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 2, r.NumRecords())
	assert.Equal(t, "tags", r.Schema().Field(2).Name)
	var ids []int64
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		require.NoError(t, err)
		ids = append(ids, rec.Column(0).(*array.Int64).Int64Values()...)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestCompressedInput(t *testing.T) {
	f := newFixture(t, "csv", "arrow", "")
	path := filepath.Join(f.dir, "rows.csv.gz")
	fh, err := os.Create(path)
	require.NoError(t, err)
	zw, err := compression.NewWriter(fh, compression.Gzip)
	require.NoError(t, err)
	_, err = zw.Write([]byte(abCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, fh.Close())

	f.cfg.InputPath = path
	_, stats, err := f.run(t, context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.RowsWritten)
}

func TestDecodeErrorFailsRun(t *testing.T) {
	f := newFixture(t, "json", "parquet", "{\"a\": 1}\n{\"a\": \"x\"}\n")
	f.cfg.Schema.File = f.writeFile(t, "schema.json",
		`{"fields": [{"name": "a", "nullable": true, "type": {"name": "int", "bitWidth": 64, "isSigned": true}}]}`)

	_, stats, err := f.run(t, context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDecode), err.Error())
	assert.Zero(t, stats.RowsWritten)
	_, err = os.Stat(f.cfg.OutputPath)
	assert.True(t, os.IsNotExist(err))
}

func TestCancelledRunCreatesNoOutput(t *testing.T) {
	f := newFixture(t, "csv", "parquet", abCSV)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, _, err := f.run(t, ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StateFailed, p.State())
	_, err = os.Stat(f.cfg.OutputPath)
	assert.True(t, os.IsNotExist(err))
}

func TestMetricsFileWritten(t *testing.T) {
	f := newFixture(t, "csv", "parquet", abCSV)
	f.cfg.Observability.MetricsFile = filepath.Join(f.dir, "run.prom")

	_, _, err := f.run(t, context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(f.cfg.Observability.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `tabconv_rows_written_total{destination="parquet",source="csv"} 2`)
	assert.Contains(t, string(data), `status="success"} 1`)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	f := newFixture(t, "csv", "parquet", abCSV)
	f.cfg.Writer.Compression = config.CompressionLZO
	_, err := New(f.cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	f.cfg.Writer.Compression = ""
	f.cfg.Destination = "orc"
	_, err = New(f.cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRunTwice(t *testing.T) {
	f := newFixture(t, "csv", "arrow", abCSV)
	p, _, err := f.run(t, context.Background())
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
}

// closeFailingDestination wraps a real destination and fails at Close after
// the wrapped footer was written.
type closeFailingDestination struct {
	core.Destination
	gotCloser bool
}

func (d *closeFailingDestination) Open(ctx context.Context, w io.Writer, sch *arrow.Schema) (core.Writer, error) {
	_, d.gotCloser = w.(io.Closer)
	inner, err := d.Destination.Open(ctx, w, sch)
	if err != nil {
		return nil, err
	}
	return &closeFailingWriter{Writer: inner}, nil
}

type closeFailingWriter struct {
	core.Writer
}

func (w *closeFailingWriter) Close() error {
	if err := w.Writer.Close(); err != nil {
		return err
	}
	return errors.New(errors.ErrorTypeEncode, "footer rejected")
}

func TestCloseFailureFailsRunAndRemovesOutput(t *testing.T) {
	f := newFixture(t, "csv", "parquet", abCSV)
	p, err := New(f.cfg, WithOutput(&f.stdout, &f.stderr))
	require.NoError(t, err)
	dest := &closeFailingDestination{Destination: p.destination}
	p.destination = dest

	stats, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeEncode), err.Error())
	assert.Equal(t, StateFailed, p.State())
	assert.Equal(t, int64(2), stats.RowsWritten, "every batch was written before close")
	assert.False(t, dest.gotCloser, "the output file is not handed to the writer as a closer")

	_, err = os.Stat(f.cfg.OutputPath)
	assert.True(t, os.IsNotExist(err), "output is removed after a failed close")
}

func TestParquetOutputSizeMatchesBytesWritten(t *testing.T) {
	f := newFixture(t, "csv", "parquet", abCSV)
	_, stats, err := f.run(t, context.Background())
	require.NoError(t, err)

	info, err := os.Stat(f.cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), stats.BytesWritten)
	tbl := readParquet(t, f.cfg.OutputPath)
	defer tbl.Release()
	assert.Equal(t, int64(2), tbl.NumRows())
}
