package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/api"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/app"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/config"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/logging"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/scheduler"
)

func main() {
	configPath := flag.String("config", "config/app.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	log := logging.Component("server")

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(ctx, a.Processor, cfg.Scheduler.Spec, cfg.Scheduler.Tickers)
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
		if cfg.Scheduler.RunOnStart {
			go sched.RunNow(ctx)
		}
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.NewRouter(api.Deps{
			Companies: a.Repos.Companies,
			Analysis:  a.Analysis,
			Filings:   a.EDGAR,
			Syncer:    a.Processor,
			Gatherer:  a.Registry,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("API server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
