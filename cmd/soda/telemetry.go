package main

import (
	"context"
	"log/slog"

	"github.com/soda-recon/soda/pkg/config"
	"github.com/soda-recon/soda/pkg/duration"
	"github.com/soda-recon/soda/pkg/telemetry"
)

// startTelemetry starts the metrics endpoint and the trace exporter the
// config asks for. Metrics are nil when no endpoint is configured. The
// returned stop func flushes and shuts both down.
func startTelemetry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*telemetry.Metrics, func(), error) {
	var stops []func(context.Context)
	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), duration.TelemetryShutdown)
		defer cancel()
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i](shutdownCtx)
		}
	}

	var metrics *telemetry.Metrics
	if cfg.MetricsAddr != "" {
		metrics = telemetry.NewMetrics()
		srv, err := metrics.Serve(telemetry.ServerOptions{Addr: cfg.MetricsAddr, Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("metrics endpoint listening", slog.String("url", srv.URL()))
		stops = append(stops, func(context.Context) {
			if err := srv.Close(); err != nil {
				logger.Warn("metrics server close", slog.String("error", err.Error()))
			}
		})
	}

	if cfg.OTelEndpoint != "" {
		shutdown, err := telemetry.SetupTracing(ctx, telemetry.TracingOptions{
			Endpoint: cfg.OTelEndpoint,
			Insecure: true,
		})
		if err != nil {
			stop()
			return nil, nil, err
		}
		logger.Debug("trace export enabled", slog.String("endpoint", cfg.OTelEndpoint))
		stops = append(stops, func(ctx context.Context) {
			if err := shutdown(ctx); err != nil {
				logger.Warn("trace flush", slog.String("error", err.Error()))
			}
		})
	}
	return metrics, stop, nil
}
