package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	transporthttp "github.com/flowproc/bpmnengine/transport/http"
	"github.com/flowproc/bpmnengine/transport/webhook"
	"github.com/flowproc/bpmnengine/transport/ws"
	"github.com/flowproc/bpmnengine/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the execution, observation, and webhook HTTP surfaces",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := initTracing()
	defer func() { _ = shutdownTracing(context.Background()) }()

	cfg, err := configFromEnv()
	if err != nil {
		return err
	}

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}

	httpServer := transporthttp.NewServer(rt.engineFactory(), rt.broadcaster, logger, cfg.WorkflowsDir)
	wsHub := ws.NewHub(rt.broadcaster, rt.store, rt.bus, logger)
	webhookServer := webhook.NewServer(rt.bus, logger)

	errCh := make(chan error, 3)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("execution HTTP surface listening")
		mux := http.NewServeMux()
		mux.Handle("/metrics", workflow.MetricsHandler())
		mux.Handle("/", httpServer.Handler())
		srv := &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		}
		errCh <- srv.ListenAndServe()
	}()
	go func() {
		logger.Info().Str("addr", cfg.WSAddr).Msg("observer websocket surface listening")
		mux := http.NewServeMux()
		mux.Handle("/ws", wsHub)
		wsServer := &http.Server{Addr: cfg.WSAddr, Handler: mux}
		errCh <- wsServer.ListenAndServe()
	}()
	go func() {
		logger.Info().Str("addr", cfg.WebhookAddr).Msg("webhook surface listening")
		errCh <- webhookServer.ListenAndServe(cfg.WebhookAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutdown signal received")
		return nil
	case err := <-errCh:
		return err
	}
}
