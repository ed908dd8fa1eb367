package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/erp/stocksync/internal/infrastructure/config"
	"github.com/erp/stocksync/internal/infrastructure/logger"
	"github.com/erp/stocksync/internal/infrastructure/telemetry"
)

// telemetryStack owns the OTel providers and the profiler for the life of the process
type telemetryStack struct {
	tracer   *telemetry.TracerProvider
	meters   *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
}

// setupTelemetry builds the providers and the application logger. The logger is built twice:
// a bootstrap logger reports provider setup, then the final one also feeds the OTLP log bridge.
func setupTelemetry(ctx context.Context, cfg *config.Config) (*telemetryStack, *zap.Logger, error) {
	logCfg := &logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.Telemetry.ServiceName,
	}
	bootstrap, err := logger.New(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}

	t := &telemetryStack{}
	t.logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.Telemetry.ServiceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootstrap)
	if err != nil {
		return nil, nil, err
	}

	log := bootstrap
	if t.logs.IsEnabled() {
		level, err := logger.ParseLevel(cfg.Log.Level)
		if err != nil {
			level = zapcore.InfoLevel
		}
		log, err = logger.New(logCfg, t.logs.ZapCore(level))
		if err != nil {
			return nil, nil, fmt.Errorf("logger: %w", err)
		}
	}

	t.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.Telemetry.ServiceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, nil, err
	}

	t.meters, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.Telemetry.ServiceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, nil, err
	}

	t.profiler, err = telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.ProfilingEnabled,
		ServerAddress:     cfg.Telemetry.ProfilingServerAddress,
		ApplicationName:   cfg.Telemetry.ServiceName,
		BasicAuthUser:     cfg.Telemetry.ProfilingAuthUser,
		BasicAuthPassword: cfg.Telemetry.ProfilingAuthPassword,
		ProfileTypes:      cfg.Telemetry.ProfilingProfileTypes,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	if t.profiler.IsEnabled() && t.tracer.IsEnabled() {
		t.tracer.EnableSpanProfiles()
	}

	return t, log, nil
}

// Shutdown flushes in reverse order of setup; failures are logged, not returned
func (t *telemetryStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if err := t.profiler.Stop(); err != nil {
		log.Warn("Profiler stop failed", zap.Error(err))
	}
	if err := t.meters.Shutdown(ctx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := t.tracer.Shutdown(ctx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}
	if err := t.logs.Shutdown(ctx); err != nil {
		log.Warn("Logger provider shutdown failed", zap.Error(err))
	}
}
