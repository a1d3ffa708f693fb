// Package pipeline runs one conversion: resolve the schema, stream record
// batches from the input adapter into the output adapter, and finalize the
// output file.
//
// A run moves through these states:
//
//	configuring -> resolving -> [reporting] -> streaming -> closing -> done
//	                                  \-> dry_exit
//
// Any error moves the run to failed. Once the output file exists, every
// exit path closes the writer; a failed run removes the partial file unless
// KeepPartial is set.
//
// # Basic Usage
//
//	p, err := pipeline.New(cfg)
//	if err != nil {
//	    return err
//	}
//	stats, err := p.Run(ctx)
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tabconv/pkg/compression"
	"github.com/ajitpratap0/tabconv/pkg/config"
	"github.com/ajitpratap0/tabconv/pkg/connector/core"
	"github.com/ajitpratap0/tabconv/pkg/connector/registry"
	"github.com/ajitpratap0/tabconv/pkg/errors"
	"github.com/ajitpratap0/tabconv/pkg/logger"
	"github.com/ajitpratap0/tabconv/pkg/metrics"
	"github.com/ajitpratap0/tabconv/pkg/observability"
	"github.com/ajitpratap0/tabconv/pkg/schema"

	// Register every input and output format
	_ "github.com/ajitpratap0/tabconv/pkg/connector/destinations"
	_ "github.com/ajitpratap0/tabconv/pkg/connector/sources"
)

// Pipeline converts one input file into one output file.
type Pipeline struct {
	cfg         *config.Config
	source      core.Source
	destination core.Destination
	inputAlg    compression.Algorithm

	collector *metrics.Collector
	tracer    *observability.RunTracer
	stdout    io.Writer
	stderr    io.Writer

	state       State
	transitions []State
	stats       Stats
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithOutput sets the streams used for schema reports. The schema document
// goes to stdout and its label line to stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(p *Pipeline) {
		p.stdout = stdout
		p.stderr = stderr
	}
}

// WithCollector replaces the metrics collector created by New.
func WithCollector(c *metrics.Collector) Option {
	return func(p *Pipeline) {
		p.collector = c
	}
}

// New validates cfg and instantiates the source and destination adapters
// it names. Writer options that no schema could satisfy fail here.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	alg, err := compression.ParseAlgorithm(cfg.Input.Compression)
	if err != nil {
		return nil, err
	}
	source, err := registry.CreateSource(cfg.Source, cfg)
	if err != nil {
		return nil, err
	}
	destination, err := registry.CreateDestination(cfg.Destination, cfg)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:         cfg,
		source:      source,
		destination: destination,
		inputAlg:    alg,
		collector:   metrics.NewCollector(cfg.Source, cfg.Destination),
		tracer:      observability.NewRunTracer(cfg.Source, cfg.Destination),
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		state:       StateConfiguring,
		transitions: []State{StateConfiguring},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// State returns the current state of the run.
func (p *Pipeline) State() State {
	return p.state
}

// Transitions returns every state the run has entered, in order.
func (p *Pipeline) Transitions() []State {
	return append([]State(nil), p.transitions...)
}

// Collector returns the metrics collector of the run.
func (p *Pipeline) Collector() *metrics.Collector {
	return p.collector
}

func (p *Pipeline) setState(ctx context.Context, s State) {
	logger.WithContext(ctx).Debug("pipeline state",
		zap.Stringer("from", p.state),
		zap.Stringer("to", s))
	p.state = s
	p.transitions = append(p.transitions, s)
}

// Run executes the conversion. It may be called once.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	if p.state != StateConfiguring {
		return nil, errors.Newf(errors.ErrorTypeInternal, "pipeline already ran (state %s)", p.state)
	}
	ctx = context.WithValue(ctx, logger.SourceKey, p.cfg.Source)
	ctx = context.WithValue(ctx, logger.DestinationKey, p.cfg.Destination)
	log := logger.WithContext(ctx)
	start := time.Now()

	err := p.run(ctx)

	p.stats.State = p.state
	p.stats.Duration = time.Since(start)
	status := metrics.StatusSuccess
	switch {
	case err != nil:
		p.setState(ctx, StateFailed)
		p.stats.State = StateFailed
		status = metrics.StatusFailure
		log.Debug("conversion failed", zap.Error(err))
	case p.state == StateDryExit:
		status = metrics.StatusDry
	default:
		log.Info("conversion finished",
			zap.Int64("rows", p.stats.RowsWritten),
			zap.Int64("batches", p.stats.Batches),
			zap.Int64("bytes", p.stats.BytesWritten),
			zap.Duration("duration", p.stats.Duration))
	}
	p.collector.RecordRun(status, p.stats.RowsWritten, p.stats.Duration)

	if path := p.cfg.Observability.MetricsFile; path != "" {
		if merr := p.collector.WriteTextfile(path); merr != nil && err == nil {
			err = merr
		}
	}

	stats := p.stats
	return &stats, err
}

func (p *Pipeline) run(ctx context.Context) error {
	p.setState(ctx, StateResolving)

	var sch *arrow.Schema
	err := p.tracer.TraceStage(ctx, "resolve", func(ctx context.Context) error {
		var err error
		sch, err = schema.Resolve(ctx, schema.Options{
			SchemaFile:     p.cfg.Schema.File,
			MaxReadRecords: p.cfg.Schema.MaxReadRecords,
		}, p.source, p.openInput)
		return err
	})
	if err != nil {
		return err
	}
	p.stats.Columns = sch.NumFields()

	if p.cfg.Run.PrintSchema || p.cfg.Run.DryRun {
		p.setState(ctx, StateReporting)
		if err := p.report(sch); err != nil {
			return err
		}
		if p.cfg.Run.DryRun {
			p.setState(ctx, StateDryExit)
			return nil
		}
	}

	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}

	p.setState(ctx, StateStreaming)
	err = p.tracer.TraceStage(ctx, "stream", func(ctx context.Context) error {
		return p.stream(ctx, sch)
	})
	if err != nil {
		return err
	}
	p.setState(ctx, StateDone)
	return nil
}

func (p *Pipeline) openInput() (io.ReadCloser, error) {
	return compression.Open(p.cfg.InputPath, p.inputAlg)
}

func (p *Pipeline) report(sch *arrow.Schema) error {
	if _, err := fmt.Fprintln(p.stderr, "Schema:"); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write schema label")
	}
	if err := schema.Write(p.stdout, sch); err != nil {
		return errors.WrapUntyped(err, errors.ErrorTypeIO, "failed to print schema")
	}
	return nil
}

// stream runs the read/write loop. The output file is created only after
// the input and both adapters are ready.
func (p *Pipeline) stream(ctx context.Context, sch *arrow.Schema) (err error) {
	log := logger.WithContext(ctx)

	input, err := p.openInput()
	if err != nil {
		return err
	}
	defer input.Close()

	batches, err := p.source.Open(ctx, sch, input)
	if err != nil {
		return err
	}
	defer batches.Release()

	out, err := createSink(p.cfg.OutputPath, func(n int) { p.collector.AddBytes(int64(n)) })
	if err != nil {
		return err
	}
	var writer core.Writer
	defer func() {
		if err == nil {
			return
		}
		if writer != nil {
			if cerr := writer.Close(); cerr != nil {
				log.Debug("closing writer after failure", zap.Error(cerr))
			}
		}
		if aerr := out.Abort(p.cfg.Run.KeepPartial); aerr != nil {
			log.Warn("could not remove partial output", zap.Error(aerr))
		} else if p.cfg.Run.KeepPartial {
			log.Warn("kept partial output", zap.String("path", p.cfg.OutputPath))
		}
	}()

	// the columnar writers close an io.Closer sink themselves; the
	// pipeline keeps ownership of the file so a failed run can remove it
	writer, err = p.destination.Open(ctx, struct{ io.Writer }{out}, sch)
	if err != nil {
		return err
	}

	for batches.Next() {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		rec := batches.Record()
		timer := metrics.NewTimer()
		if err := writer.Write(rec); err != nil {
			return errors.WrapUntyped(err, errors.ErrorTypeEncode, "failed to write batch")
		}
		p.collector.RecordBatch(rec.NumRows(), timer.Stop())
		p.stats.Batches++
		p.stats.RowsWritten = writer.RowsWritten()
	}
	if err := batches.Err(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}

	return p.finish(ctx, writer, out)
}

// finish closes the writer and then the file. A close failure is the
// result of the run even when every batch was written.
func (p *Pipeline) finish(ctx context.Context, writer core.Writer, out *sink) error {
	p.setState(ctx, StateClosing)
	_, span := p.tracer.StartSpan(ctx, "close")
	err := writer.Close()
	if err == nil {
		err = out.Close()
	}
	span.SetAttribute("bytes", out.written)
	span.End(err)
	if err != nil {
		return err
	}
	p.stats.BytesWritten = out.written
	return nil
}

func cancelled(err error) error {
	return errors.Wrap(err, errors.ErrorTypeInternal, "conversion cancelled")
}
