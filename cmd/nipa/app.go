package main

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/nipa/internal/bea"
	"github.com/JonMunkholm/nipa/internal/config"
	"github.com/JonMunkholm/nipa/internal/core"
	"github.com/JonMunkholm/nipa/internal/ingest"
	"github.com/JonMunkholm/nipa/internal/metrics"
	"github.com/JonMunkholm/nipa/internal/pipeline"
	"github.com/JonMunkholm/nipa/internal/publish"
	"github.com/JonMunkholm/nipa/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// app holds the wired components shared by every command.
type app struct {
	pipeline *pipeline.Pipeline
	ingester *ingest.Runner // nil without a BEA API key
	catalog  publish.Catalog
	metrics  *metrics.PipelineMetrics
	close    func()
}

func newApp(ctx context.Context, cfg *config.Config, refresh bool) (*app, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		return nil, err
	}

	raw := store.NewRawStore(cfg.Storage.RawDir)

	target, closeTarget, err := publish.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("publish target ready", "target", cfg.Publish.Target)

	a := &app{catalog: target, metrics: m, close: closeTarget}

	// A nil *ingest.Runner must not reach the pipeline as a non-nil interface
	var ingester pipeline.Ingester
	if cfg.BEA.APIKey != "" {
		client, err := bea.NewClient(bea.Config{
			APIKey:          cfg.BEA.APIKey,
			BaseURL:         cfg.BEA.BaseURL,
			Timeout:         cfg.BEA.Timeout,
			RequestInterval: cfg.BEA.RequestInterval,
			CacheTTL:        cfg.BEA.CacheTTL,
			MaxRetries:      bea.DefaultConfig().MaxRetries,
		}, nil)
		if err != nil {
			closeTarget()
			return nil, err
		}
		client.SetObserver(m)

		a.ingester = ingest.NewRunner(client, raw, ingest.Options{
			StateFile: cfg.Storage.StateFile,
			Year:      cfg.BEA.Year,
			Refresh:   refresh,
		})
		ingester = a.ingester
	}

	transformer := core.NewTransformer(raw, target, core.Options{
		Prefix:     cfg.Transform.Prefix,
		CutoffYear: cfg.Transform.CutoffYear,
		Workers:    cfg.Transform.Workers,
		Mode:       core.ModeOverwrite,
		Recorder:   m,
	})

	a.pipeline = pipeline.New(ingester, transformer)
	return a, nil
}

// Close releases the publish target.
func (a *app) Close() {
	a.close()
}
