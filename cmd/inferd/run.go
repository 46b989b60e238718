package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"inferd/internal/config"
	"inferd/internal/diag"
	"inferd/internal/model"
	"inferd/internal/scheduler"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Load a model and a plugin and run the pipeline until signalled",
		Example: "  inferd run --model ~/models/yolov8n.onnx --plugin template --diagnostics",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return runPipeline(cmd.Context(), cfg, log)
		},
	}
	modelFlags(cmd, opts)
	f := cmd.Flags()
	f.StringVar(&opts.flags.Plugin, "plugin", "", "Plugin name (defaults INFERD_PLUGIN)")
	f.BoolVar(&opts.flags.Diagnostics, "diagnostics", false, "Log tensor attributes at load and stage statistics at shutdown")
	f.BoolVar(&opts.flags.ReleaseOnInferFailure, "release-on-infer-failure", false, "Release the input unit back to the plugin when inference fails")
	f.StringVar(&opts.flags.MetricsAddr, "metrics-addr", "", "Serve /metrics, /healthz and /status on this address")
	f.StringSliceVar(&opts.flags.CORSOrigins, "cors-origin", nil, "Allowed CORS origin for the diagnostics server (repeatable)")
	return cmd
}

func runPipeline(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	if cfg.Model == "" {
		return errors.New("no model given (--model, config model or INFERD_MODEL)")
	}
	if cfg.Plugin == "" {
		return errors.New("no plugin given (--plugin, config plugin or INFERD_PLUGIN)")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	backend, err := model.OpenBackend(cfg.Backend, model.BackendOptions{ORTLibraryPath: cfg.ORTLibraryPath})
	if err != nil {
		return err
	}
	reg, err := newRegistry(cfg, &log)
	if err != nil {
		_ = backend.Close()
		return err
	}
	s, err := scheduler.New(ctx, scheduler.Config{
		Registry:              reg,
		Plugin:                cfg.Plugin,
		ModelURI:              cfg.Model,
		Backend:               backend,
		Source:                model.DefaultSource(&log),
		Diagnostics:           cfg.Diagnostics,
		ShowModel:             cfg.ShowModel,
		ReleaseOnInferFailure: cfg.ReleaseOnInferFailure,
		Publisher:             scheduler.NewLogPublisher(&log),
		Logger:                &log,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := s.Start(gctx); err != nil {
		s.Stop()
		return err
	}
	if cfg.MetricsAddr != "" {
		mux := diag.NewMux(s, diag.Options{CORSOrigins: cfg.CORSOrigins, Logger: &log})
		g.Go(func() error { return diag.Serve(gctx, cfg.MetricsAddr, mux, &log) })
	}
	g.Go(func() error {
		s.Wait()
		log.Info().Msg("shutting down")
		s.Stop()
		return nil
	})
	return g.Wait()
}
