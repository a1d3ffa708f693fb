package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tabconv/internal/pipeline"
	"github.com/ajitpratap0/tabconv/pkg/compression"
	"github.com/ajitpratap0/tabconv/pkg/config"
	"github.com/ajitpratap0/tabconv/pkg/connector/core"
	"github.com/ajitpratap0/tabconv/pkg/connector/registry"
	"github.com/ajitpratap0/tabconv/pkg/errors"
	"github.com/ajitpratap0/tabconv/pkg/logger"
	"github.com/ajitpratap0/tabconv/pkg/observability"
)

func newConvertCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "convert INPUT OUTPUT",
		Short: "Convert between any supported input and output format",
		Long: `Convert INPUT into OUTPUT. The formats are taken from --from and --to,
or guessed from the file extensions when omitted.

Example:
  tabconv convert --from csv --to parquet -c zstd rows.csv rows.parquet`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConversion(cmd, f, args, "", "")
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.from, "from", "", "Input format ("+strings.Join(registry.ListSources(), ", ")+"); guessed from the extension when omitted")
	fs.StringVar(&f.to, "to", "", "Output format ("+strings.Join(registry.ListDestinations(), ", ")+"); guessed from the extension when omitted")
	f.registerCommon(fs)
	f.registerCSV(fs)
	f.registerWriter(fs)
	return cmd
}

// newPairCmd builds one of the fixed-pair commands such as csv2parquet.
func newPairCmd(source, destination string) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s2%s INPUT OUTPUT", source, destination),
		Short: fmt.Sprintf("Convert a %s file to %s", strings.ToUpper(source), titleFormat(destination)),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConversion(cmd, f, args, source, destination)
		},
	}
	fs := cmd.Flags()
	f.registerCommon(fs)
	if source == "csv" {
		f.registerCSV(fs)
	}
	f.registerWriter(fs)
	return cmd
}

func titleFormat(name string) string {
	if name == "arrow" {
		return "Arrow IPC"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// buildConfig layers the profile, the fixed format pair and the flags the
// user set, in that order.
func buildConfig(cmd *cobra.Command, f *runFlags, args []string, source, destination string) (*config.Config, error) {
	cfg := config.NewConfig()
	if f.configFile != "" {
		if err := config.Load(f.configFile, cfg); err != nil {
			return nil, err
		}
	}
	if source != "" {
		cfg.Source = source
	}
	if destination != "" {
		cfg.Destination = destination
	}
	cfg.InputPath, cfg.OutputPath = args[0], args[1]
	f.apply(cmd.Flags(), cfg)

	if cfg.Source == "" {
		cfg.Source = guessFormat(core.ConnectorTypeSource, compression.TrimExtension(cfg.InputPath))
	}
	if cfg.Destination == "" {
		cfg.Destination = guessFormat(core.ConnectorTypeDestination, cfg.OutputPath)
	}
	if err := checkFormat("input", "--from", cfg.Source, cfg.InputPath, registry.HasSource, registry.ListSources); err != nil {
		return nil, err
	}
	if err := checkFormat("output", "--to", cfg.Destination, cfg.OutputPath, registry.HasDestination, registry.ListDestinations); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if f.saveConfig != "" {
		if err := config.Save(f.saveConfig, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// checkFormat reports a format that is unknown or could not be guessed,
// listing the registered alternatives.
func checkFormat(kind, flag, name, path string, has func(string) bool, list func() []string) error {
	available := strings.Join(list(), ", ")
	if name == "" {
		return errors.Newf(errors.ErrorTypeConfig, "cannot guess the %s format of %q; set %s (%s)", kind, path, flag, available).
			WithDetail("path", path)
	}
	if !has(name) {
		return errors.Newf(errors.ErrorTypeConfig, "unknown %s format %q (available: %s)", kind, name, available).
			WithDetail("format", name)
	}
	return nil
}

// guessFormat returns the registered format claiming the extension of
// path, or "" when none does.
func guessFormat(t core.ConnectorType, path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return ""
	}
	for _, info := range registry.ListConnectorInfo() {
		if info.Type != t {
			continue
		}
		for _, e := range info.Extensions {
			if e == ext {
				return info.Name
			}
		}
	}
	return ""
}

func runConversion(cmd *cobra.Command, f *runFlags, args []string, source, destination string) error {
	cfg, err := buildConfig(cmd, f, args, source, destination)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogFormat,
	}); err != nil {
		return err
	}

	shutdown, err := observability.InitTracing(observability.TracingConfig{
		Enabled:        cfg.Observability.Trace,
		ServiceName:    "tabconv",
		ServiceVersion: version,
		Output:         cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	ctx := context.WithValue(cmd.Context(), logger.RunIDKey, uuid.NewString())
	logger.WithContext(ctx).Debug("starting conversion",
		zap.String("source", cfg.Source),
		zap.String("destination", cfg.Destination),
		zap.String("input", cfg.InputPath),
		zap.String("output", cfg.OutputPath))

	p, err := pipeline.New(cfg, pipeline.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	_, err = p.Run(ctx)
	return err
}
